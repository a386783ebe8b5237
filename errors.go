package geostamp

import "errors"

// Error categories. Every error returned by this package wraps one of these,
// so callers can branch with errors.Is.
var (
	// ErrInvalidInput reports a stamp request rejected before any pixel work.
	ErrInvalidInput = errors.New("geostamp: invalid input")
	// ErrResourceMissing reports a font or marker asset that could not be loaded.
	ErrResourceMissing = errors.New("geostamp: resource missing")
	// ErrTransport reports a failed call to a location or map provider.
	ErrTransport = errors.New("geostamp: transport failure")
	// ErrIO reports a read, decode, encode or write failure.
	ErrIO = errors.New("geostamp: i/o failure")
)
