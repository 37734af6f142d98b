package storage

import "errors"

// Sentinels shared by the memory, postgres and clickhouse stores. Stores may
// wrap them with detail; callers match with errors.Is.
var (
	// ErrNotFound means no run exists for the requested id.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey means a run, fill, equity point, tick or signal with
	// the same key is already stored. Runs are immutable once written.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput means a record is missing its key or fails validation.
	ErrInvalidInput = errors.New("invalid input")
)
