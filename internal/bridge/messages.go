package bridge

import (
	"time"

	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
)

// Availability payloads.
const (
	AvailabilityOnline  = "online"
	AvailabilityOffline = "offline"
)

// CommandMessage is received from the broker to drive a vacuum.
// Topic: robovac/command/{device_id}
type CommandMessage struct {
	// ID correlates the command with its acknowledgement. Generated when
	// empty.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Command is the intent name (e.g., "start", "set_fan_speed").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"fan_speed": "Turbo"} for set_fan_speed
	//   {"room_ids": [2, 3], "count": 1} for room_clean
	//   {"dps": "160", "value": true} for send_command
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated ("mqtt", "api").
	Source string `json:"source,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the device accepted the write.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the device did not respond within the timeout.
	AckTimeout AckStatus = "timeout"
)

// AckMessage reports the outcome of a command.
// Topic: robovac/ack/{device_id}
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	DeviceID string    `json:"device_id"`
	Command  string    `json:"command"`
	Status   AckStatus `json:"status"`

	// Error contains details if status is "failed" or "timeout".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "DEVICE_UNREACHABLE", "UNSUPPORTED_COMMAND").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceUnreachable  = "DEVICE_UNREACHABLE"
	ErrCodeDeviceUnavailable  = "DEVICE_UNAVAILABLE"
	ErrCodeUnsupportedCommand = "UNSUPPORTED_COMMAND"
	ErrCodeInvalidParameters  = "INVALID_PARAMETERS"
	ErrCodeInvalidMessage     = "INVALID_MESSAGE"
	ErrCodeTimeout            = "TIMEOUT"
	ErrCodeNotConfigured      = "NOT_CONFIGURED"
)

// StateMessage mirrors one cache entry.
// Topic: robovac/state/{device_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	DeviceID  string           `json:"device_id"`
	Timestamp time.Time        `json:"timestamp"`
	Reachable bool             `json:"reachable"`
	Version   uint64           `json:"version"`
	State     robovac.Snapshot `json:"state"`
}

// HealthStatus represents the operational status of the service.
type HealthStatus string

const (
	// HealthHealthy indicates every vacuum is reachable.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the broker link is down or a vacuum is
	// unreachable.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the service is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the service is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports operational status.
// Topic: robovac/health
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// DevicesManaged is the number of attached vacuums.
	DevicesManaged int `json:"devices_managed"`

	// DevicesReachable is how many of them are currently reachable.
	DevicesReachable int `json:"devices_reachable"`

	// Reason explains the status (especially for degraded).
	Reason string `json:"reason,omitempty"`
}

// NewHealthMessage creates a health message stamped now.
func NewHealthMessage(version string, status HealthStatus, managed, reachable int, startTime time.Time) HealthMessage {
	now := time.Now().UTC()
	return HealthMessage{
		Timestamp:        now,
		Status:           status,
		Version:          version,
		UptimeSeconds:    int64(now.Sub(startTime).Seconds()),
		DevicesManaged:   managed,
		DevicesReachable: reachable,
	}
}
