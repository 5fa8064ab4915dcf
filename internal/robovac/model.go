package robovac

import (
	"fmt"
	"slices"
	"sort"
)

// Field names a snapshot field a model can map to a DPS key.
type Field string

const (
	FieldMode         Field = "mode"
	FieldStatus       Field = "status"
	FieldFanSpeed     Field = "fan_speed"
	FieldLocating     Field = "locating"
	FieldBattery      Field = "battery"
	FieldConsumables  Field = "consumables"
	FieldError        Field = "error"
	FieldCleaningArea Field = "cleaning_area"
	FieldCleaningTime Field = "cleaning_time"
	FieldAutoReturn   Field = "auto_return"
	FieldDoNotDisturb Field = "do_not_disturb"
	FieldBoostIQ      Field = "boost_iq"
)

// Feature gates optional fields and attributes.
type Feature string

const (
	FeatureCleaningArea Feature = "cleaning_area"
	FeatureCleaningTime Feature = "cleaning_time"
	FeatureAutoReturn   Feature = "auto_return"
	FeatureDoNotDisturb Feature = "do_not_disturb"
	FeatureBoostIQ      Feature = "boost_iq"
	FeatureConsumables  Feature = "consumables"
)

// gatedFields are only decoded when the model declares the feature.
var gatedFields = map[Field]Feature{
	FieldCleaningArea: FeatureCleaningArea,
	FieldCleaningTime: FeatureCleaningTime,
	FieldAutoReturn:   FeatureAutoReturn,
	FieldDoNotDisturb: FeatureDoNotDisturb,
	FieldBoostIQ:      FeatureBoostIQ,
	FieldConsumables:  FeatureConsumables,
}

// Command names an abstract vacuum command.
type Command string

const (
	CommandStart              Command = "start"
	CommandPause              Command = "pause"
	CommandStop               Command = "stop"
	CommandReturnToBase       Command = "return_to_base"
	CommandSetFanSpeed        Command = "set_fan_speed"
	CommandLocate             Command = "locate"
	CommandCleanSpot          Command = "clean_spot"
	CommandEdgeClean          Command = "edge_clean"
	CommandSmallRoomClean     Command = "small_room_clean"
	CommandAutoClean          Command = "auto_clean"
	CommandToggleAutoReturn   Command = "toggle_auto_return"
	CommandToggleDoNotDisturb Command = "toggle_do_not_disturb"
	CommandToggleBoostIQ      Command = "toggle_boost_iq"
	CommandRoomClean          Command = "room_clean"
	CommandSendCommand        Command = "send_command"
)

// Step parameters filled in from the intent.
const (
	ParamFanSpeed = "fan_speed"
	ParamRooms    = "rooms"
)

// CommandStep is one DPS write. Exactly one of Value, Param or Toggle
// decides what is written.
type CommandStep struct {
	DPS string `yaml:"dps" json:"dps"`

	// Value is written as is.
	Value any `yaml:"value,omitempty" json:"value,omitempty"`

	// Param names an intent argument to encode (ParamFanSpeed, ParamRooms).
	Param string `yaml:"param,omitempty" json:"param,omitempty"`

	// Toggle names a boolean snapshot field. Off is written when the field
	// is currently true, On otherwise. On and Off default to true and false.
	Toggle Field `yaml:"toggle,omitempty" json:"toggle,omitempty"`
	On     any   `yaml:"on,omitempty" json:"on,omitempty"`
	Off    any   `yaml:"off,omitempty" json:"off,omitempty"`
}

// Model is the capability record for one hardware generation.
type Model struct {
	Code      string           `yaml:"-" json:"code"`
	Name      string           `yaml:"name" json:"name"`
	DPS       map[Field]string `yaml:"dps" json:"dps"`
	Features  []Feature        `yaml:"features" json:"features"`
	FanSpeeds []string         `yaml:"fan_speeds" json:"fan_speeds"`

	// StatusValues maps raw status values to normalised status codes.
	StatusValues map[string]string `yaml:"status_values" json:"-"`

	// FaultValues maps raw error values to fault codes.
	FaultValues map[string]string `yaml:"fault_values" json:"-"`

	// ConsumableLifetimes is the rated life in hours per component.
	ConsumableLifetimes map[string]int `yaml:"consumable_lifetimes" json:"consumable_lifetimes,omitempty"`

	Commands map[Command][]CommandStep `yaml:"commands" json:"-"`
}

// HasFeature reports whether the model declares f.
func (m *Model) HasFeature(f Feature) bool {
	return slices.Contains(m.Features, f)
}

// Key returns the DPS key carrying field, if the model maps it.
func (m *Model) Key(field Field) (string, bool) {
	key, ok := m.DPS[field]
	return key, ok && key != ""
}

// DeclaresKey reports whether key is one of the model's mapped DPS keys
// or is written by one of its commands.
func (m *Model) DeclaresKey(key string) bool {
	for _, k := range m.DPS {
		if k == key {
			return true
		}
	}
	for _, steps := range m.Commands {
		for _, s := range steps {
			if s.DPS == key {
				return true
			}
		}
	}
	return false
}

// SupportedCommands lists the commands the model can execute, sorted.
// send_command is included whenever the model maps at least one key.
func (m *Model) SupportedCommands() []Command {
	cmds := make([]Command, 0, len(m.Commands)+1)
	for c := range m.Commands {
		cmds = append(cmds, c)
	}
	if len(m.DPS) > 0 {
		cmds = append(cmds, CommandSendCommand)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i] < cmds[j] })
	return slices.Compact(cmds)
}

// FriendlyFanSpeeds returns the fan speeds as display text.
func (m *Model) FriendlyFanSpeeds() []string {
	out := make([]string, len(m.FanSpeeds))
	for i, s := range m.FanSpeeds {
		out[i] = FriendlyText(s)
	}
	return out
}

// validate checks the invariants the decoder and dispatcher rely on.
func (m *Model) validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: %s: name is required", ErrInvalidModel, m.Code)
	}
	for cmd, steps := range m.Commands {
		if len(steps) == 0 {
			return fmt.Errorf("%w: %s: command %s has no steps", ErrInvalidModel, m.Code, cmd)
		}
		for i, s := range steps {
			if s.DPS == "" {
				return fmt.Errorf("%w: %s: command %s step %d has no dps", ErrInvalidModel, m.Code, cmd, i)
			}
			set := 0
			if s.Value != nil {
				set++
			}
			if s.Param != "" {
				set++
			}
			if s.Toggle != "" {
				set++
			}
			if set != 1 {
				return fmt.Errorf("%w: %s: command %s step %d must set exactly one of value, param, toggle",
					ErrInvalidModel, m.Code, cmd, i)
			}
			if s.Param != "" && s.Param != ParamFanSpeed && s.Param != ParamRooms {
				return fmt.Errorf("%w: %s: command %s step %d: unknown param %q",
					ErrInvalidModel, m.Code, cmd, i, s.Param)
			}
		}
	}
	for raw, code := range m.StatusValues {
		if _, ok := statusText[code]; !ok {
			return fmt.Errorf("%w: %s: status value %q maps to unknown status %q", ErrInvalidModel, m.Code, raw, code)
		}
	}
	for f, lifetime := range m.ConsumableLifetimes {
		if lifetime <= 0 {
			return fmt.Errorf("%w: %s: consumable %s lifetime must be positive", ErrInvalidModel, m.Code, f)
		}
	}
	return nil
}
