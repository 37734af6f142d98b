package replay

import "errors"

// ErrChronologyViolation is returned when an input sequence goes back in time.
// Inputs are never re-sorted to repair it.
var ErrChronologyViolation = errors.New("input is not in chronological order")
