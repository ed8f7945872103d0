// Package wipe implements irrecoverable file destruction: multi-pass
// pattern overwrites, durable flushes between passes, and post-order
// directory traversal.
package wipe

import "errors"

var (
	// ErrInvalidPath indicates a user-supplied path was rejected before any
	// destructive action (empty, absolute, traversal, or outside the base directory).
	ErrInvalidPath = errors.New("invalid path")
	// ErrWipeIO indicates a single-item overwrite or delete failure. It is
	// isolated to that item and never fatal to the surrounding run.
	ErrWipeIO = errors.New("wipe I/O failure")
	// ErrDirectoryRead indicates a directory listing could not be enumerated.
	ErrDirectoryRead = errors.New("directory read failure")
)
