package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-robovac/internal/command"
	"github.com/nerrad567/gray-logic-robovac/internal/device"
	"github.com/nerrad567/gray-logic-robovac/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
	"github.com/nerrad567/gray-logic-robovac/internal/statecache"
	"github.com/nerrad567/gray-logic-robovac/internal/transport"
)

const (
	// minTopicParts is robovac/command/{device}.
	minTopicParts = 3

	// commandTimeout bounds one command including every write it needs.
	commandTimeout = 10 * time.Second

	publishQoS = 1
)

// MQTTClient is the interface for MQTT operations.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// Commander executes intents. *device.Manager satisfies it.
type Commander interface {
	SendCommand(ctx context.Context, id string, in command.Intent) error
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// MQTTClient is the broker connection. Required.
	MQTTClient MQTTClient

	// Commander runs commands received from the broker. Required.
	Commander Commander

	// Version is reported in health messages.
	Version string

	// HealthInterval is how often health is published. Zero uses the
	// reporter default.
	HealthInterval time.Duration

	// CommandTimeout overrides the per-command deadline.
	CommandTimeout time.Duration

	// Logger is optional structured logger.
	Logger Logger
}

// attachment tracks what has been sent for one device. mu serialises
// broker writes so a newer entry is never overwritten by an older one.
type attachment struct {
	sub *statecache.Subscription

	mu        sync.Mutex
	version   uint64
	reachable bool
	known     bool
}

// Bridge mirrors cache state to MQTT and turns MQTT commands into intents.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt      MQTTClient
	commander Commander
	topics    mqtt.Topics
	health    *HealthReporter
	timeout   time.Duration
	now       func() time.Time

	mu       sync.Mutex
	attached map[string]*attachment

	// Shutdown coordination
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger Logger
}

// New creates a bridge. Call Start to subscribe to commands.
func New(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("%w: MQTT client", ErrMissingDependency)
	}
	if opts.Commander == nil {
		return nil, fmt.Errorf("%w: commander", ErrMissingDependency)
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = commandTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		mqtt:      opts.MQTTClient,
		commander: opts.Commander,
		timeout:   timeout,
		now:       time.Now,
		attached:  make(map[string]*attachment),
		ctx:       ctx,
		ctxCancel: cancel,
		logger:    logger,
	}
	b.health = NewHealthReporter(HealthReporterConfig{
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Devices:   b.deviceCounts,
	})
	b.health.SetLogger(logger)
	return b, nil
}

// Start subscribes to command topics and begins health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Warn("failed to publish starting status", "error", err)
	}

	topic := b.topics.AllCommands()
	if err := b.mqtt.Subscribe(topic, publishQoS, b.handleMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", topic)

	b.health.Start(ctx)
	return nil
}

// Stop unsubscribes, detaches every cache and waits for in-flight commands.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if err := b.mqtt.Unsubscribe(b.topics.AllCommands()); err != nil {
			b.logger.Debug("unsubscribe commands failed", "error", err)
		}
		b.ctxCancel()
		b.health.Stop()

		b.mu.Lock()
		for id, a := range b.attached {
			a.sub.Unsubscribe()
			delete(b.attached, id)
		}
		b.mu.Unlock()

		b.wg.Wait()
		b.logger.Info("bridge stopped")
	})
}

// Attach mirrors cache onto the device's state and availability topics.
// Attaching a device twice replaces the earlier subscription.
func (b *Bridge) Attach(cache *statecache.Cache) {
	id := cache.DeviceID()
	a := &attachment{}

	b.mu.Lock()
	if old, ok := b.attached[id]; ok {
		old.sub.Unsubscribe()
	}
	b.attached[id] = a
	a.sub = cache.Subscribe(func(e statecache.Entry) { b.publishState(id, a, e) })
	b.mu.Unlock()

	// A publish may land between Subscribe and Get; publishState drops
	// whichever of the two arrives second with the older version.
	if e := cache.Get(); e.Version > 0 {
		b.publishState(id, a, e)
	}
}

// Detach stops mirroring a device and marks it offline.
func (b *Bridge) Detach(deviceID string) {
	b.mu.Lock()
	a, ok := b.attached[deviceID]
	delete(b.attached, deviceID)
	b.mu.Unlock()
	if !ok {
		return
	}
	a.sub.Unsubscribe()
	b.publish(b.topics.Availability(deviceID), []byte(AvailabilityOffline), true)
}

func (b *Bridge) publishState(deviceID string, a *attachment, e statecache.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if e.Version <= a.version {
		b.logger.Debug("skipping stale state", "device_id", deviceID, "version", e.Version, "sent", a.version)
		return
	}

	msg := StateMessage{
		DeviceID:  deviceID,
		Timestamp: e.LastUpdatedAt.UTC(),
		Reachable: e.Reachable,
		Version:   e.Version,
		State:     e.Snapshot,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to marshal state", "device_id", deviceID, "error", err)
		return
	}
	b.publish(b.topics.State(deviceID), payload, true)

	changed := !a.known || a.reachable != e.Reachable
	a.version = e.Version
	a.known = true
	a.reachable = e.Reachable

	if changed {
		status := AvailabilityOffline
		if e.Reachable {
			status = AvailabilityOnline
		}
		b.publish(b.topics.Availability(deviceID), []byte(status), true)
	}
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	if err := b.mqtt.Publish(topic, payload, publishQoS, retained); err != nil {
		b.logger.Warn("publish failed", "topic", topic, "error", err)
	}
}

// deviceCounts feeds the health reporter.
func (b *Bridge) deviceCounts() (managed, reachable int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.attached {
		managed++
		a.mu.Lock()
		if a.reachable {
			reachable++
		}
		a.mu.Unlock()
	}
	return managed, reachable
}

func (b *Bridge) handleMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts || parts[1] != "command" {
		b.logger.Warn("ignoring message on unexpected topic", "topic", topic)
		return nil
	}
	b.handleCommand(parts[len(parts)-1], payload)
	return nil
}

func (b *Bridge) handleCommand(deviceID string, payload []byte) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.logger.Warn("failed to parse command", "device_id", deviceID, "error", err)
		b.publishAck(deviceID, CommandMessage{ID: uuid.NewString()}, AckFailed,
			&AckError{Code: ErrCodeInvalidMessage, Message: err.Error()})
		return
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	b.logger.Info("received command",
		"command_id", cmd.ID,
		"device_id", deviceID,
		"command", cmd.Command,
		"source", cmd.Source)

	intent, err := intentFrom(cmd)
	if err != nil {
		b.publishAck(deviceID, cmd, AckFailed, &AckError{Code: ErrCodeInvalidParameters, Message: err.Error()})
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
		defer cancel()

		if err := b.commander.SendCommand(ctx, deviceID, intent); err != nil {
			status, ackErr := classify(err)
			b.logger.Warn("command failed",
				"command_id", cmd.ID,
				"device_id", deviceID,
				"command", cmd.Command,
				"error", err)
			b.publishAck(deviceID, cmd, status, ackErr)
			return
		}
		b.publishAck(deviceID, cmd, AckAccepted, nil)
	}()
}

func (b *Bridge) publishAck(deviceID string, cmd CommandMessage, status AckStatus, ackErr *AckError) {
	ack := AckMessage{
		CommandID: cmd.ID,
		Timestamp: b.now().UTC(),
		DeviceID:  deviceID,
		Command:   cmd.Command,
		Status:    status,
		Error:     ackErr,
	}
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("failed to marshal ack", "error", err)
		return
	}
	b.publish(b.topics.Ack(deviceID), payload, false)
}

// classify maps a command error onto an ack status and code.
func classify(err error) (AckStatus, *AckError) {
	code := ErrCodeDeviceUnreachable
	status := AckFailed
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		code = ErrCodeNotConfigured
	case errors.Is(err, device.ErrDeviceUnavailable):
		code = ErrCodeDeviceUnavailable
	case errors.Is(err, command.ErrUnsupportedCommand):
		code = ErrCodeUnsupportedCommand
	case errors.Is(err, command.ErrInvalidArgument):
		code = ErrCodeInvalidParameters
	case transport.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeTimeout
		status = AckTimeout
	}
	return status, &AckError{Code: code, Message: err.Error()}
}

// intentFrom converts decoded JSON parameters into an intent.
func intentFrom(cmd CommandMessage) (command.Intent, error) {
	in := command.Intent{Command: robovac.Command(cmd.Command)}
	if cmd.Command == "" {
		return in, fmt.Errorf("%w: command is required", ErrInvalidParameters)
	}
	p := cmd.Parameters

	if v, ok := p["fan_speed"]; ok {
		s, ok := v.(string)
		if !ok {
			return in, invalidParam("fan_speed", v)
		}
		in.FanSpeed = s
	}
	if v, ok := p["room_ids"]; ok {
		list, ok := v.([]any)
		if !ok {
			return in, invalidParam("room_ids", v)
		}
		for _, item := range list {
			n, ok := wholeNumber(item)
			if !ok {
				return in, invalidParam("room_ids", v)
			}
			in.RoomIDs = append(in.RoomIDs, n)
		}
	}
	if v, ok := p["count"]; ok {
		n, ok := wholeNumber(v)
		if !ok {
			return in, invalidParam("count", v)
		}
		in.Count = n
	}
	if v, ok := p["dps"]; ok {
		switch d := v.(type) {
		case string:
			in.DPS = d
		case float64:
			n, ok := wholeNumber(d)
			if !ok {
				return in, invalidParam("dps", v)
			}
			in.DPS = fmt.Sprint(n)
		default:
			return in, invalidParam("dps", v)
		}
	}
	if v, ok := p["value"]; ok {
		in.Value = v
	}
	return in, nil
}

func wholeNumber(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}
