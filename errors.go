package sparsemap

import "errors"

var (
	// ErrUnsupported is returned when the platform or the filesystem holding
	// the file cannot report sparse layout. Callers should fall back to
	// treating the whole file as data.
	ErrUnsupported = errors.New("sparse detection not supported")

	// ErrInvalidTransition is returned when the operating system reports an
	// extent transition that cannot be part of a valid layout, such as a
	// zero length or non advancing extent. It indicates a broken platform
	// query layer rather than an I/O failure.
	ErrInvalidTransition = errors.New("invalid extent transition")
)
