package supersocket

import "errors"

var (
	ErrNotConnected     = errors.New("supersocket: not connected")
	ErrAlreadyConnected = errors.New("supersocket: already connected")
	ErrClosed           = errors.New("supersocket: closed")
	ErrUnknownTransport = errors.New("supersocket: unknown transport")
	ErrFrameTooLarge    = errors.New("supersocket: frame too large")
	ErrNoAddress        = errors.New("supersocket: no address configured")
)
