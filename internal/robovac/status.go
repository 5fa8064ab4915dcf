package robovac

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalised status codes. Each model maps its raw status values onto these.
const (
	StatusAuto          = "AUTO"
	StatusPosition      = "POSITION"
	StatusPause         = "PAUSE"
	StatusRoom          = "ROOM"
	StatusRoomPosition  = "ROOM_POSITION"
	StatusRoomPause     = "ROOM_PAUSE"
	StatusSpot          = "SPOT"
	StatusSpotPosition  = "SPOT_POSITION"
	StatusSpotPause     = "SPOT_PAUSE"
	StatusStartManual   = "START_MANUAL"
	StatusGoingToCharge = "GOING_TO_CHARGE"
	StatusCharging      = "CHARGING"
	StatusCompleted     = "COMPLETED"
	StatusStandby       = "STANDBY"
	StatusSleeping      = "SLEEPING"
)

var statusText = map[string]string{
	StatusAuto:          "Auto cleaning",
	StatusPosition:      "Positioning",
	StatusPause:         "Cleaning paused",
	StatusRoom:          "Cleaning room",
	StatusRoomPosition:  "Positioning room",
	StatusRoomPause:     "Cleaning room paused",
	StatusSpot:          "Spot cleaning",
	StatusSpotPosition:  "Positioning spot",
	StatusSpotPause:     "Cleaning spot paused",
	StatusStartManual:   "Manual mode",
	StatusGoingToCharge: "Recharge",
	StatusCharging:      "Charging",
	StatusCompleted:     "Completed",
	StatusStandby:       "Standby",
	StatusSleeping:      "Sleeping",
}

// StatusText returns the human text for a status code, and false for an
// unrecognised code.
func StatusText(code string) (string, bool) {
	text, ok := statusText[code]
	return text, ok
}

// modeNames describes the encoded work-mode values newer models report.
var modeNames = map[string]string{
	"AggO":     "Auto cleaning",
	"BBoCCAE=": "Start auto",
	"AggN":     "Pause",
	"AggG":     "Stop / Go to charge",
	"AA==":     "Standby",
	"BBICGAE=": "Empty dust",
	"BBICIAE=": "Wash mop",
	"BBICEAE=": "Dry mop",
}

// ModeName returns the description of an encoded mode, or the raw value
// when it is already readable ("Edge", "SmallRoom").
func ModeName(raw string) string {
	if name, ok := modeNames[raw]; ok {
		return name
	}
	return raw
}

// FriendlyText turns a raw identifier into display text:
// "boost_iq" becomes "Boost Iq", "Boost_IQ" becomes "Boost IQ".
func FriendlyText(raw string) string {
	words := strings.Fields(strings.ReplaceAll(raw, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
