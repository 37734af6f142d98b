package risk

import "errors"

// Drawdown monitor errors.
var (
	// ErrOperatorRequired is returned when safe mode is reset without naming who acknowledged it.
	ErrOperatorRequired = errors.New("safe mode reset requires an operator")

	// ErrNotInSafeMode is returned when a reset is attempted outside safe mode.
	ErrNotInSafeMode = errors.New("drawdown monitor is not in safe mode")
)
