package transport

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTransport matches every error returned by a Port.
	ErrTransport = errors.New("transport: device unreachable")

	// ErrUnknownDevice is returned for a device id with no registered endpoint.
	ErrUnknownDevice = errors.New("transport: unknown device")

	// ErrRejected is returned when the gateway answers with success=false.
	ErrRejected = errors.New("transport: request rejected")

	// ErrGatewayClosed is returned for requests made after Stop.
	ErrGatewayClosed = errors.New("transport: gateway closed")
)

// Error is a failed fetch or send.
type Error struct {
	Op       string // "fetch" or "send"
	DeviceID string
	Err      error

	timeout bool
}

// NewError wraps err for op on deviceID. Context deadline errors are
// reported as timeouts.
func NewError(op, deviceID string, err error) *Error {
	return &Error{
		Op:       op,
		DeviceID: deviceID,
		Err:      err,
		timeout:  errors.Is(err, context.DeadlineExceeded),
	}
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.DeviceID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every Error match ErrTransport.
func (e *Error) Is(target error) bool {
	return target == ErrTransport
}

// Timeout reports whether the device did not answer in time.
func (e *Error) Timeout() bool {
	return e.timeout
}
