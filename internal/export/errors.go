package export

import "errors"

var (
	// ErrClosed reports a write attempted after Close.
	ErrClosed = errors.New("exporter already closed")

	// ErrUnknownFormat reports a format New does not recognize.
	ErrUnknownFormat = errors.New("unknown export format")
)
