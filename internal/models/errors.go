package models

import "errors"

// Error kinds shared by every stage. Callers wrap them with context and
// test with errors.Is.
var (
	// ErrInvalidArguments covers a wrong argument count, a malformed or even
	// filter width, and images too small for the requested window.
	ErrInvalidArguments = errors.New("invalid arguments")

	// ErrDirectoryNotFound means an input or output path is unusable.
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrDecodeFailure means a file is unreadable or not a supported image.
	ErrDecodeFailure = errors.New("decode failure")

	// ErrAllocationFailure means a buffer could not be obtained.
	ErrAllocationFailure = errors.New("allocation failure")
)
