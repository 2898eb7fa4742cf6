package engine

import "errors"

var (
	ErrClosed      = errors.New("engine is closed")
	ErrInvalidTick = errors.New("engine tick must be positive")

	ErrListenerPanic = errors.New("engine listener panicked")
)
