package statecache

import "errors"

var (
	// ErrClosed is returned by Publish after the cache has been closed.
	ErrClosed = errors.New("statecache: cache closed")

	// ErrNotFound is returned when no cache is registered for a device id.
	ErrNotFound = errors.New("statecache: device not found")
)
