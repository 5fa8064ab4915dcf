package transport

import (
	"context"

	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
)

// Port is the boundary between the sync engine and the device protocol.
// Timeouts are carried by ctx.
type Port interface {
	// FetchPayload reads the device's full DPS map.
	FetchPayload(ctx context.Context, deviceID string) (robovac.RawPayload, error)

	// SendPayload writes the given DPS keys.
	SendPayload(ctx context.Context, deviceID string, payload robovac.RawPayload) error
}

// Endpoint is what the gateway needs to reach one device.
type Endpoint struct {
	DeviceID string
	Host     string

	// LocalKey is the device access token.
	// WARNING: Never log this value.
	LocalKey string
}
