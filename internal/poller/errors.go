package poller

import "errors"

var (
	// ErrAlreadyRunning is returned by Start on a running engine.
	ErrAlreadyRunning = errors.New("poller: already running")

	// ErrStopped is returned after Stop.
	ErrStopped = errors.New("poller: stopped")
)
