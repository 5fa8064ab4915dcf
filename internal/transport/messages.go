package transport

import (
	"time"

	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
)

// Gateway actions.
const (
	ActionGet = "get"
	ActionSet = "set"
)

// RequestMessage is published to the gateway for one device operation.
// Topic: {prefix}/request/{device_id}
type RequestMessage struct {
	RequestID string             `json:"request_id"`
	Action    string             `json:"action"`
	DeviceID  string             `json:"device_id"`
	Host      string             `json:"host"`
	LocalKey  string             `json:"local_key"`
	DPS       robovac.RawPayload `json:"dps,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// ResponseMessage is the gateway's answer to a RequestMessage.
// Topic: {prefix}/response/{device_id}/{request_id}
type ResponseMessage struct {
	RequestID string             `json:"request_id"`
	Success   bool               `json:"success"`
	DPS       robovac.RawPayload `json:"dps,omitempty"`
	Error     string             `json:"error,omitempty"`
}
