package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nerrad567/gray-logic-robovac/internal/availability"
	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
	"github.com/nerrad567/gray-logic-robovac/internal/statecache"
	"github.com/nerrad567/gray-logic-robovac/internal/transport"
)

// Defaults applied to zero Config fields.
const (
	DefaultInterval = 15 * time.Second
	DefaultTimeout  = 5 * time.Second
)

// Config holds the engine schedule.
type Config struct {
	// Interval between scheduled polls.
	Interval time.Duration

	// Timeout bounds a single fetch.
	Timeout time.Duration
}

// Cache is the state holder the engine writes to. *statecache.Cache
// satisfies it.
type Cache interface {
	Get() statecache.Entry
	Publish(e statecache.Entry) (statecache.Entry, error)
}

// Logger is the logging interface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Stats are counters for one engine.
type Stats struct {
	Cycles       uint64    `json:"cycles"`
	Failures     uint64    `json:"failures"`
	SkippedTicks uint64    `json:"skipped_ticks"`
	LastPollAt   time.Time `json:"last_poll_at"`
}

// Engine polls one device and publishes into its cache.
//
// Thread Safety: All methods are safe for concurrent use.
type Engine struct {
	deviceID string
	port     transport.Port
	decoder  *robovac.Decoder
	machine  *availability.Machine
	cache    Cache
	cfg      Config
	logger   Logger

	sem     *semaphore.Weighted
	trigger chan struct{}
	closed  atomic.Bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	statsMu      sync.Mutex
	stats        Stats
	lastCycleEnd time.Time
}

// New creates an engine for one device.
//
// Parameters:
//   - deviceID: Device the engine polls, used in logs and errors
//   - port: Transport used to fetch raw values
//   - decoder: Turns raw values into a snapshot
//   - machine: Availability state machine fed with every poll outcome
//   - cache: Destination for decoded snapshots
//   - cfg: Interval and timeout; zero values take the package defaults
//   - opts: Optional overrides such as WithLogger
//
// Returns:
//   - *Engine: Idle engine (call Start to begin polling)
func New(deviceID string, port transport.Port, decoder *robovac.Decoder, machine *availability.Machine, cache Cache, cfg Config, opts ...Option) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	e := &Engine{
		deviceID: deviceID,
		port:     port,
		decoder:  decoder,
		machine:  machine,
		cache:    cache,
		cfg:      cfg,
		logger:   noopLogger{},
		sem:      semaphore.NewWeighted(1),
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DeviceID returns the polled device id.
func (e *Engine) DeviceID() string {
	return e.deviceID
}

// Start runs the first poll immediately and then polls on the interval
// until ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Load() {
		return ErrStopped
	}
	if e.running {
		return ErrAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.run(loopCtx, e.done)

	e.logger.Info("polling started", "device_id", e.deviceID, "interval", e.cfg.Interval)
	return nil
}

// Stop cancels the loop and waits for it to exit. A poll that finishes
// after Stop is discarded. Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.closed.Swap(true) {
		e.mu.Unlock()
		return
	}
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	e.logger.Info("polling stopped", "device_id", e.deviceID)
}

// Trigger requests a poll as soon as possible without resetting the
// schedule. Triggers received before the pending one runs are merged.
func (e *Engine) Trigger() {
	if e.closed.Load() {
		return
	}
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// PollNow runs one cycle on the caller's goroutine, waiting for any cycle
// already in flight. Transport failures are absorbed; only cancellation
// and ErrStopped are returned.
func (e *Engine) PollNow(ctx context.Context) error {
	if e.closed.Load() {
		return ErrStopped
	}
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer e.sem.Release(1)
	e.cycle(ctx)
	return nil
}

// Availability returns the device's availability status.
func (e *Engine) Availability() availability.Status {
	return e.machine.Status()
}

// Stats returns a copy of the engine counters.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return
	}
	e.cycle(ctx)
	e.sem.Release(1)

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case tick := <-ticker.C:
			if tick.Before(e.lastEnd()) || !e.sem.TryAcquire(1) {
				e.skipTick()
				continue
			}
			e.cycle(ctx)
			e.sem.Release(1)

		case <-e.trigger:
			if err := e.sem.Acquire(ctx, 1); err != nil {
				return
			}
			e.cycle(ctx)
			e.sem.Release(1)
		}
	}
}

// cycle performs one fetch-decode-publish. Callers hold the semaphore.
func (e *Engine) cycle(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	payload, err := e.port.FetchPayload(fetchCtx, e.deviceID)
	cancel()
	defer e.endCycle(err != nil)

	if e.closed.Load() {
		e.logger.Debug("discarding poll result after stop", "device_id", e.deviceID)
		return
	}
	if err != nil {
		e.handleFailure(err)
		return
	}

	decoded := e.decoder.Decode(payload)
	before := e.machine.Status()
	after := e.machine.Success()

	prev := e.cache.Get()
	next := statecache.Entry{
		Snapshot:  prev.Snapshot.Merge(decoded),
		Reachable: after.Reachable,
	}
	if _, err := e.cache.Publish(next); err != nil {
		e.logger.Debug("publish rejected", "device_id", e.deviceID, "error", err)
		return
	}

	if before.State != after.State {
		e.logger.Info("device availability changed",
			"device_id", e.deviceID,
			"from", before.State,
			"to", after.State,
		)
	}
}

func (e *Engine) handleFailure(err error) {
	before := e.machine.Status()
	after := e.machine.Failure()

	e.logger.Debug("poll failed",
		"device_id", e.deviceID,
		"state", after.State,
		"consecutive_failures", after.ConsecutiveFailures,
		"timeout", transport.IsTimeout(err),
		"error", err,
	)

	if before.State != after.State {
		e.logger.Warn("device availability changed",
			"device_id", e.deviceID,
			"from", before.State,
			"to", after.State,
			"error", err,
		)
	}
	// Consumers only hear about failures that change reachability.
	prev := e.cache.Get()
	if prev.Version > 0 && prev.Reachable == after.Reachable {
		return
	}
	if _, err := e.cache.Publish(statecache.Entry{Snapshot: prev.Snapshot, Reachable: after.Reachable}); err != nil {
		e.logger.Debug("publish rejected", "device_id", e.deviceID, "error", err)
	}
}

func (e *Engine) endCycle(failed bool) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	now := time.Now()
	e.stats.Cycles++
	if failed {
		e.stats.Failures++
	}
	e.stats.LastPollAt = now
	e.lastCycleEnd = now
}

func (e *Engine) skipTick() {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.stats.SkippedTicks++
}

func (e *Engine) lastEnd() time.Time {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.lastCycleEnd
}
