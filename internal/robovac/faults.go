package robovac

// NoError is the fault code for a device reporting no fault.
const NoError = "no_error"

// Fault codes raised by the service itself rather than the device.
const (
	FaultConnectionFailed = "CONNECTION_FAILED"
	FaultIPAddress        = "IP_ADDRESS"
	FaultUnsupportedModel = "UNSUPPORTED_MODEL"
)

var faultMessages = map[string]string{
	FaultConnectionFailed: "Connection to the vacuum failed",
	FaultIPAddress:        "IP address not set",
	FaultUnsupportedModel: "This model is not supported",

	"side_brush_stuck":    "Side brush stuck",
	"rolling_brush_stuck": "Rolling brush stuck",
	"robot_stuck":         "Robot stuck",
	"wheel_stuck":         "Wheel stuck",
	"crash_bar_stuck":     "Crash bar stuck",
	"sensor_dirty":        "Sensors dirty",
	"battery_low":         "Battery too low",
	"fan_stuck":           "Suction fan stuck",
	"dustbin_missing":     "Dust bin not installed",
}

// FaultMessage returns the human message for a fault code. Unrecognised
// codes are returned unchanged so a new firmware fault is still visible.
func FaultMessage(code string) string {
	if msg, ok := faultMessages[code]; ok {
		return msg
	}
	return code
}

// FaultSnapshot builds a snapshot carrying only a service-raised fault,
// used for vacuums that cannot be polled at all.
func FaultSnapshot(code string) Snapshot {
	return Snapshot{
		Activity:     ActivityError,
		ErrorCode:    ptr(code),
		ErrorMessage: ptr(FaultMessage(code)),
	}
}
