package robovac

import (
	"maps"
	"time"
)

// RawPayload is one poll's datapoints keyed by DPS index ("152", "163").
// It is decoded immediately and then discarded.
type RawPayload map[string]any

// Activity is the high-level state shown to users.
type Activity string

const (
	ActivityUnknown   Activity = "unknown"
	ActivityIdle      Activity = "idle"
	ActivityCleaning  Activity = "cleaning"
	ActivityPaused    Activity = "paused"
	ActivityReturning Activity = "returning"
	ActivityDocked    Activity = "docked"
	ActivityError     Activity = "error"
)

// Consumables holds remaining life in percent per component.
// Known is false when the device has not reported a parseable value.
type Consumables struct {
	Known     bool           `json:"known"`
	Remaining map[string]int `json:"remaining,omitempty"`
}

// Snapshot is the typed state of one vacuum. A nil pointer means the field
// is unknown: never reported, or reported in a form that could not be parsed.
type Snapshot struct {
	Activity Activity `json:"activity"`

	// StatusCode is the normalised status ("CHARGING"); Status is its
	// human text ("Charging"). They are always set together.
	StatusCode *string `json:"status_code"`
	Status     *string `json:"status"`

	// Battery is clamped to [0, 100].
	Battery     *int        `json:"battery"`
	Consumables Consumables `json:"consumables"`

	// ErrorCode is NoError when the device reports no fault. ErrorMessage
	// is nil in that case.
	ErrorCode    *string `json:"error_code"`
	ErrorMessage *string `json:"error_message"`

	Mode         *string `json:"mode"`
	FanSpeed     *string `json:"fan_speed"`
	CleaningArea *int    `json:"cleaning_area"`
	CleaningTime *int    `json:"cleaning_time"`
	AutoReturn   *bool   `json:"auto_return"`
	DoNotDisturb *bool   `json:"do_not_disturb"`
	BoostIQ      *bool   `json:"boost_iq"`
	Locating     *bool   `json:"locating"`
}

// HasFault reports whether a fault other than NoError is known.
func (s Snapshot) HasFault() bool {
	return s.ErrorCode != nil && *s.ErrorCode != NoError
}

// Clone returns a copy that shares no mutable state with s.
// Pointer fields are shared: the values behind them are never mutated.
func (s Snapshot) Clone() Snapshot {
	cpy := s
	if s.Consumables.Remaining != nil {
		cpy.Consumables.Remaining = maps.Clone(s.Consumables.Remaining)
	}
	return cpy
}

// Merge overlays next on s field by field. A field known in next replaces
// the value in s; a field unknown in next keeps the value from s. Activity
// is then derived again from the merged status and fault.
func (s Snapshot) Merge(next Snapshot) Snapshot {
	out := s.Clone()

	if next.StatusCode != nil {
		out.StatusCode, out.Status = next.StatusCode, next.Status
	}
	if next.ErrorCode != nil {
		out.ErrorCode, out.ErrorMessage = next.ErrorCode, next.ErrorMessage
	}
	if next.Consumables.Known {
		out.Consumables = Consumables{Known: true, Remaining: maps.Clone(next.Consumables.Remaining)}
	}
	keep(&out.Battery, next.Battery)
	keep(&out.Mode, next.Mode)
	keep(&out.FanSpeed, next.FanSpeed)
	keep(&out.CleaningArea, next.CleaningArea)
	keep(&out.CleaningTime, next.CleaningTime)
	keep(&out.AutoReturn, next.AutoReturn)
	keep(&out.DoNotDisturb, next.DoNotDisturb)
	keep(&out.BoostIQ, next.BoostIQ)
	keep(&out.Locating, next.Locating)

	if derived := DeriveActivity(out.StatusCode, out.ErrorCode); derived != ActivityUnknown {
		out.Activity = derived
	} else if next.Activity != ActivityUnknown && next.Activity != "" {
		out.Activity = next.Activity
	}
	if out.Activity == "" {
		out.Activity = ActivityUnknown
	}
	return out
}

func keep[T any](dst **T, next *T) {
	if next != nil {
		*dst = next
	}
}

// DeriveActivity maps a status code and fault code to an Activity.
// A fault takes priority over any status.
func DeriveActivity(statusCode, errorCode *string) Activity {
	if errorCode != nil && *errorCode != NoError {
		return ActivityError
	}
	if statusCode == nil {
		return ActivityUnknown
	}
	switch *statusCode {
	case StatusCharging, StatusCompleted:
		return ActivityDocked
	case StatusGoingToCharge:
		return ActivityReturning
	case StatusSleeping, StatusStandby:
		return ActivityIdle
	case StatusPause, StatusRoomPause, StatusSpotPause:
		return ActivityPaused
	default:
		return ActivityCleaning
	}
}

// Reading pairs a snapshot with when it was taken. It is what the decode
// command prints.
type Reading struct {
	Model    string    `json:"model"`
	At       time.Time `json:"at"`
	Snapshot Snapshot  `json:"snapshot"`
}

func ptr[T any](v T) *T { return &v }
