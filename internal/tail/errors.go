package tail

import "errors"

var (
	// ErrReadFailed marks a change event dropped because the file could not be read.
	ErrReadFailed = errors.New("file read failed")
	// ErrEngineStopped is returned when a command is issued after the engine has shut down.
	ErrEngineStopped = errors.New("tail engine stopped")
)
