package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-robovac/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
)

// requestQoS is used for both requests and the response subscription.
const requestQoS = 1

// MQTTClient is the subset of the MQTT client the gateway uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Logger is the logging interface used by the gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Gateway implements Port over MQTT request/response.
//
// Thread Safety: All methods are safe for concurrent use.
type Gateway struct {
	client MQTTClient
	topics mqtt.GatewayTopics
	now    func() time.Time

	mu        sync.Mutex
	endpoints map[string]Endpoint
	pending   map[string]chan ResponseMessage
	started   bool
	closed    bool

	logger   Logger
	loggerMu sync.RWMutex
}

// NewGateway creates a gateway publishing under prefix. An empty prefix
// uses the default. Call Start before issuing requests.
func NewGateway(client MQTTClient, prefix string) *Gateway {
	return &Gateway{
		client:    client,
		topics:    mqtt.GatewayTopics{Prefix: prefix},
		now:       time.Now,
		endpoints: make(map[string]Endpoint),
		pending:   make(map[string]chan ResponseMessage),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the gateway.
func (g *Gateway) SetLogger(logger Logger) {
	g.loggerMu.Lock()
	defer g.loggerMu.Unlock()
	g.logger = logger
}

func (g *Gateway) getLogger() Logger {
	g.loggerMu.RLock()
	defer g.loggerMu.RUnlock()
	return g.logger
}

// AddDevice registers the endpoint for a device, replacing any previous one.
func (g *Gateway) AddDevice(ep Endpoint) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.endpoints[ep.DeviceID] = ep
}

// RemoveDevice forgets a device's endpoint.
func (g *Gateway) RemoveDevice(deviceID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.endpoints, deviceID)
}

// Start subscribes to gateway responses.
func (g *Gateway) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrGatewayClosed
	}
	if g.started {
		return nil
	}
	if err := g.client.Subscribe(g.topics.AllResponses(), requestQoS, g.handleResponse); err != nil {
		return fmt.Errorf("subscribing to gateway responses: %w", err)
	}
	g.started = true
	return nil
}

// Stop unsubscribes and fails every outstanding request.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	started := g.started
	for id, ch := range g.pending {
		close(ch)
		delete(g.pending, id)
	}
	g.mu.Unlock()

	if !started {
		return nil
	}
	return g.client.Unsubscribe(g.topics.AllResponses())
}

// FetchPayload asks the gateway for the device's DPS map.
func (g *Gateway) FetchPayload(ctx context.Context, deviceID string) (robovac.RawPayload, error) {
	resp, err := g.request(ctx, ActionGet, deviceID, nil)
	if err != nil {
		return nil, NewError("fetch", deviceID, err)
	}
	if resp.DPS == nil {
		return robovac.RawPayload{}, nil
	}
	return resp.DPS, nil
}

// SendPayload asks the gateway to write the given DPS keys.
func (g *Gateway) SendPayload(ctx context.Context, deviceID string, payload robovac.RawPayload) error {
	if _, err := g.request(ctx, ActionSet, deviceID, payload); err != nil {
		return NewError("send", deviceID, err)
	}
	return nil
}

func (g *Gateway) request(ctx context.Context, action, deviceID string, dps robovac.RawPayload) (ResponseMessage, error) {
	reqID := uuid.NewString()
	ch := make(chan ResponseMessage, 1)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ResponseMessage{}, ErrGatewayClosed
	}
	ep, ok := g.endpoints[deviceID]
	if !ok {
		g.mu.Unlock()
		return ResponseMessage{}, ErrUnknownDevice
	}
	g.pending[reqID] = ch
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.pending, reqID)
		g.mu.Unlock()
	}()

	payload, err := json.Marshal(RequestMessage{
		RequestID: reqID,
		Action:    action,
		DeviceID:  deviceID,
		Host:      ep.Host,
		LocalKey:  ep.LocalKey,
		DPS:       dps,
		Timestamp: g.now().UTC(),
	})
	if err != nil {
		return ResponseMessage{}, fmt.Errorf("encoding request: %w", err)
	}
	if err := g.client.Publish(g.topics.Request(deviceID), payload, requestQoS, false); err != nil {
		return ResponseMessage{}, fmt.Errorf("publishing request: %w", err)
	}

	select {
	case <-ctx.Done():
		return ResponseMessage{}, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return ResponseMessage{}, ErrGatewayClosed
		}
		if !resp.Success {
			reason := resp.Error
			if reason == "" {
				reason = "no reason given"
			}
			return ResponseMessage{}, fmt.Errorf("%w: %s", ErrRejected, reason)
		}
		return resp, nil
	}
}

// handleResponse routes a gateway response to the waiting request. Late
// responses for requests that already gave up are dropped.
func (g *Gateway) handleResponse(topic string, payload []byte) error {
	var resp ResponseMessage
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		g.getLogger().Warn("invalid gateway response", "topic", topic, "error", err)
		return fmt.Errorf("decoding gateway response: %w", err)
	}
	if resp.RequestID == "" {
		resp.RequestID = topic[strings.LastIndex(topic, "/")+1:]
	}

	g.mu.Lock()
	ch, ok := g.pending[resp.RequestID]
	if ok {
		delete(g.pending, resp.RequestID)
	}
	g.mu.Unlock()

	if !ok {
		g.getLogger().Debug("dropping unmatched gateway response", "request_id", resp.RequestID)
		return nil
	}
	ch <- resp
	return nil
}

// PendingCount returns the number of requests awaiting a response.
func (g *Gateway) PendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

var _ Port = (*Gateway)(nil)

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Timeout()
}
