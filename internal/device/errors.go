package device

import (
	"errors"

	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
)

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID is not registered.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when registering an ID twice.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when a vacuum configuration is unusable.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrDeviceUnavailable is returned for commands to a device that was
	// registered without a working model or address.
	ErrDeviceUnavailable = errors.New("device: unavailable")

	// ErrMissingAddress is returned when a vacuum has no IP address.
	ErrMissingAddress = errors.New("device: ip address missing")

	// ErrModelNotSupported is the catalogue's unsupported model error.
	ErrModelNotSupported = robovac.ErrModelNotSupported

	// ErrSnapshotNotFound is returned when no snapshot has been stored.
	ErrSnapshotNotFound = errors.New("device: snapshot not found")
)
