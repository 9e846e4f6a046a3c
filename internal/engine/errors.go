package engine

import "errors"

var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("engine: already started")

	// ErrClosed is returned by Loop methods after the loop stopped.
	ErrClosed = errors.New("engine: closed")
)
