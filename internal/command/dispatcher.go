package command

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
	"github.com/nerrad567/gray-logic-robovac/internal/statecache"
	"github.com/nerrad567/gray-logic-robovac/internal/transport"
)

// Intent is a request to make the vacuum do something.
type Intent struct {
	Command robovac.Command `json:"command"`

	// FanSpeed is required by set_fan_speed. Raw and display forms are
	// both accepted ("Boost_IQ", "Boost Iq").
	FanSpeed string `json:"fan_speed,omitempty"`

	// RoomIDs and Count are used by room_clean and default to [1] and 1.
	RoomIDs []int `json:"room_ids,omitempty"`
	Count   int   `json:"count,omitempty"`

	// DPS and Value are used by send_command.
	DPS   string `json:"dps,omitempty"`
	Value any    `json:"value,omitempty"`
}

// StateReader gives the dispatcher the cached state toggles are based on.
type StateReader interface {
	Get() statecache.Entry
}

// Triggerer asks for a poll after a command is accepted.
type Triggerer interface {
	Trigger()
}

// Logger is the logging interface used by the dispatcher.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(l Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithTimeout bounds each Send. Zero leaves the caller's context alone.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = t }
}

// Dispatcher sends intents to one device.
type Dispatcher struct {
	deviceID string
	model    *robovac.Model
	commands map[robovac.Command][]robovac.CommandStep
	port     transport.Port
	state    StateReader
	trigger  Triggerer
	timeout  time.Duration
	logger   Logger
	now      func() time.Time
}

// New creates a dispatcher for deviceID. trigger may be nil.
func New(deviceID string, model *robovac.Model, port transport.Port, state StateReader, trigger Triggerer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		deviceID: deviceID,
		model:    model,
		commands: model.Commands,
		port:     port,
		state:    state,
		trigger:  trigger,
		logger:   noopLogger{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Supports reports whether the model can perform cmd.
func (d *Dispatcher) Supports(cmd robovac.Command) bool {
	if cmd == robovac.CommandSendCommand {
		return len(d.model.DPS) > 0
	}
	_, ok := d.commands[cmd]
	return ok
}

// SupportedCommands lists the commands the device accepts.
func (d *Dispatcher) SupportedCommands() []robovac.Command {
	return d.model.SupportedCommands()
}

// Send encodes and transmits the intent.
//
// Steps are written in order and the first failure stops the sequence.
// The cache is never written here; a poll is triggered once the device
// has accepted at least one write so the outcome shows up in state.
//
// Parameters:
//   - ctx: bounds the whole sequence, further limited by WithTimeout
//   - in: the intent to send
//
// Returns:
//   - error: *UnsupportedCommandError before any write, *CommandError if
//     a write fails, nil when every write was accepted
func (d *Dispatcher) Send(ctx context.Context, in Intent) error {
	// Resolve payloads first so an unsupported intent never reaches the device.
	payloads, err := d.encode(in)
	if err != nil {
		return err
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	accepted := 0
	for _, p := range payloads {
		if err := d.port.SendPayload(ctx, d.deviceID, p); err != nil {
			d.logger.Warn("command failed",
				"device_id", d.deviceID,
				"command", in.Command,
				"accepted_writes", accepted,
				"timeout", transport.IsTimeout(err),
				"error", err,
			)
			// Earlier steps already changed the device.
			if accepted > 0 {
				d.refresh()
			}
			return &CommandError{Command: in.Command, DeviceID: d.deviceID, Err: err}
		}
		accepted++
	}

	d.logger.Info("command sent", "device_id", d.deviceID, "command", in.Command, "writes", accepted)
	d.refresh()
	return nil
}

func (d *Dispatcher) refresh() {
	if d.trigger != nil {
		d.trigger.Trigger()
	}
}

// encode resolves the intent to the payloads to write.
func (d *Dispatcher) encode(in Intent) ([]robovac.RawPayload, error) {
	if in.Command == robovac.CommandSendCommand {
		if in.DPS == "" || !d.model.DeclaresKey(in.DPS) {
			return nil, &UnsupportedCommandError{Command: in.Command, Model: d.model.Code}
		}
		value := in.Value
		if value == nil {
			value = ""
		}
		return []robovac.RawPayload{{in.DPS: value}}, nil
	}

	steps, ok := d.commands[in.Command]
	if !ok {
		return nil, &UnsupportedCommandError{Command: in.Command, Model: d.model.Code}
	}

	var snap robovac.Snapshot
	if d.state != nil {
		snap = d.state.Get().Snapshot
	}

	out := make([]robovac.RawPayload, 0, len(steps))
	for _, s := range steps {
		var value any
		switch {
		case s.Param == robovac.ParamFanSpeed:
			raw, err := d.fanSpeed(in.FanSpeed)
			if err != nil {
				return nil, err
			}
			value = raw
		case s.Param == robovac.ParamRooms:
			v, err := d.roomClean(in.RoomIDs, in.Count)
			if err != nil {
				return nil, err
			}
			value = v
		case s.Toggle != "":
			value = toggle(s, snap)
		default:
			value = s.Value
		}
		out = append(out, robovac.RawPayload{s.DPS: value})
	}
	return out, nil
}

// fanSpeed maps the requested level to the model's raw value.
func (d *Dispatcher) fanSpeed(level string) (string, error) {
	if level == "" {
		return "", fmt.Errorf("%w: fan speed is required", ErrInvalidArgument)
	}
	for _, raw := range d.model.FanSpeeds {
		if strings.EqualFold(raw, level) || strings.EqualFold(robovac.FriendlyText(raw), level) {
			return raw, nil
		}
	}
	return "", fmt.Errorf("%w: unknown fan speed %q (supported: %s)",
		ErrInvalidArgument, level, strings.Join(d.model.FriendlyFanSpeeds(), ", "))
}

type roomCleanCall struct {
	Method    string        `json:"method"`
	Data      roomCleanData `json:"data"`
	Timestamp int64         `json:"timestamp"`
}

type roomCleanData struct {
	RoomIDs    []int `json:"roomIds"`
	CleanTimes int   `json:"cleanTimes"`
}

// roomClean builds the base64 encoded selectRoomsClean method call.
func (d *Dispatcher) roomClean(rooms []int, count int) (string, error) {
	if len(rooms) == 0 {
		rooms = []int{1}
	}
	if count == 0 {
		count = 1
	}
	if count < 0 {
		return "", fmt.Errorf("%w: clean count %d", ErrInvalidArgument, count)
	}
	body, err := json.Marshal(roomCleanCall{
		Method:    "selectRoomsClean",
		Data:      roomCleanData{RoomIDs: rooms, CleanTimes: count},
		Timestamp: d.now().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding room clean: %w", err)
	}
	return base64.StdEncoding.EncodeToString(body), nil
}

// toggle writes the opposite of the cached value. An unknown value is
// treated as off.
func toggle(s robovac.CommandStep, snap robovac.Snapshot) any {
	on, off := s.On, s.Off
	if on == nil {
		on = true
	}
	if off == nil {
		off = false
	}
	if current := toggleField(snap, s.Toggle); current != nil && *current {
		return off
	}
	return on
}

func toggleField(snap robovac.Snapshot, f robovac.Field) *bool {
	switch f {
	case robovac.FieldLocating:
		return snap.Locating
	case robovac.FieldAutoReturn:
		return snap.AutoReturn
	case robovac.FieldDoNotDisturb:
		return snap.DoNotDisturb
	case robovac.FieldBoostIQ:
		return snap.BoostIQ
	default:
		return nil
	}
}
