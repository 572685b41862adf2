package process

import "errors"

var (
	// ErrNotFound is returned when the binary cannot be resolved.
	ErrNotFound = errors.New("process: executable not found")

	// ErrExit is returned when the program exits with a non-zero status.
	ErrExit = errors.New("process: non-zero exit")

	// ErrCancelled is returned when the context ends before the program does.
	ErrCancelled = errors.New("process: cancelled")
)
