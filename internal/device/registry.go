package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-robovac/internal/availability"
	"github.com/nerrad567/gray-logic-robovac/internal/command"
	"github.com/nerrad567/gray-logic-robovac/internal/entity"
	"github.com/nerrad567/gray-logic-robovac/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-robovac/internal/poller"
	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
	"github.com/nerrad567/gray-logic-robovac/internal/statecache"
	"github.com/nerrad567/gray-logic-robovac/internal/transport"
)

// Logger defines the logging interface used by the Manager.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport is a Port that also tracks device endpoints.
// *transport.Gateway satisfies it.
type Transport interface {
	transport.Port
	AddDevice(ep transport.Endpoint)
	RemoveDevice(deviceID string)
}

// Handle bundles everything the service runs for one vacuum. Engine and
// Dispatcher are nil when the device is parked because its model is not
// supported or it has no address.
type Handle struct {
	ID     string
	Name   string
	Config config.VacuumConfig

	// Model is nil for an unsupported model.
	Model *robovac.Model

	// Fault is the integration fault code of a parked device.
	Fault string

	Cache      *statecache.Cache
	Engine     *poller.Engine
	Dispatcher *command.Dispatcher
	Vacuum     *entity.Vacuum
	Battery    *entity.BatterySensor

	persister *persister
}

// Parked reports whether the device is registered without polling.
func (h *Handle) Parked() bool {
	return h.Engine == nil
}

// ManagerOptions holds the dependencies of a Manager.
type ManagerOptions struct {
	// Registry resolves device caches. Required.
	Registry *statecache.Registry

	// Transport reaches the devices. Required.
	Transport Transport

	// Catalogue supplies model capabilities. Defaults to the built-in table.
	Catalogue *robovac.Catalogue

	// Store persists snapshots and history. Optional.
	Store Store

	// Polling is the global polling policy.
	Polling config.PollingConfig

	// Logger is optional.
	Logger Logger
}

// Manager owns the per-device engines, dispatchers and entities.
//
// All public methods are thread-safe.
type Manager struct {
	registry  *statecache.Registry
	transport Transport
	catalogue *robovac.Catalogue
	store     Store
	polling   config.PollingConfig
	logger    Logger

	mu      sync.RWMutex
	devices map[string]*Handle
	closed  bool
}

// NewManager creates a manager.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("cache registry is required")
	}
	if opts.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if opts.Catalogue == nil {
		opts.Catalogue = robovac.DefaultCatalogue()
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Manager{
		registry:  opts.Registry,
		transport: opts.Transport,
		catalogue: opts.Catalogue,
		store:     opts.Store,
		polling:   opts.Polling,
		logger:    opts.Logger,
		devices:   make(map[string]*Handle),
	}, nil
}

// Register sets up a vacuum and starts polling it. The engine outlives
// ctx; it runs until Remove or Close.
//
// A vacuum whose model is unsupported or that has no IP address is still
// registered, unreachable and carrying the matching fault code, and the
// returned error wraps ErrModelNotSupported or ErrMissingAddress. Callers
// may treat those as warnings.
func (m *Manager) Register(ctx context.Context, cfg config.VacuumConfig) (*Handle, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("%w: manager closed", ErrInvalidDevice)
	}
	if _, ok := m.devices[cfg.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceExists, cfg.ID)
	}

	name := cfg.Name
	if name == "" {
		name = cfg.ID
	}
	h := &Handle{ID: cfg.ID, Name: name, Config: cfg, Cache: m.registry.Acquire(cfg.ID)}

	model, err := m.catalogue.Lookup(cfg.Model)
	switch {
	case err != nil:
		m.park(h, robovac.FaultUnsupportedModel)
		return h, fmt.Errorf("registering %s: %w", cfg.ID, err)
	case cfg.IPAddress == "":
		h.Model = model
		m.park(h, robovac.FaultIPAddress)
		return h, fmt.Errorf("registering %s: %w", cfg.ID, ErrMissingAddress)
	}
	h.Model = model

	policy := cfg.EffectivePolling(m.polling)
	machine := newMachine(policy)

	m.restore(ctx, h, machine.Reachable())

	m.transport.AddDevice(transport.Endpoint{DeviceID: cfg.ID, Host: cfg.IPAddress, LocalKey: cfg.AccessToken})

	h.Engine = poller.New(cfg.ID, m.transport, robovac.NewDecoder(model, m.logger), machine, h.Cache,
		poller.Config{Interval: policy.Interval, Timeout: policy.Timeout},
		poller.WithLogger(m.logger),
	)
	h.Dispatcher = command.New(cfg.ID, model, m.transport, h.Cache, h.Engine,
		command.WithLogger(m.logger),
		command.WithTimeout(policy.CommandTimeout),
	)
	if m.store != nil {
		h.persister = newPersister(h.Cache, model.Code, m.store, m.logger)
	}
	h.Vacuum = entity.NewVacuum(m.registry, cfg.ID, name, cfg.Model, model)
	h.Battery = entity.NewBatterySensor(m.registry, cfg.ID, name)

	if err := h.Engine.Start(context.WithoutCancel(ctx)); err != nil {
		m.teardown(h)
		return nil, fmt.Errorf("starting poller for %s: %w", cfg.ID, err)
	}

	m.devices[cfg.ID] = h
	m.logger.Info("vacuum registered", "device_id", cfg.ID, "model", model.Code, "name", model.Name)
	return h, nil
}

// newMachine builds the availability machine for policy. A warm-up budget
// of zero is a deliberate setting (config.Default supplies the usual 5),
// so it must not fall back to the package default.
func newMachine(policy config.PollingConfig) *availability.Machine {
	if policy.WarmupPolls == 0 {
		return availability.NewWithoutWarmup(policy.FailureThreshold)
	}
	return availability.New(availability.Config{
		WarmupPolls:      policy.WarmupPolls,
		FailureThreshold: policy.FailureThreshold,
	})
}

// park registers h without polling and publishes the fault.
// Caller must hold m.mu.
func (m *Manager) park(h *Handle, fault string) {
	h.Fault = fault
	if _, err := h.Cache.Publish(statecache.Entry{Snapshot: robovac.FaultSnapshot(fault)}); err != nil {
		m.logger.Warn("failed to publish fault", "device_id", h.ID, "error", err)
	}
	h.Vacuum = entity.NewVacuum(m.registry, h.ID, h.Name, h.Config.Model, h.Model)
	h.Battery = entity.NewBatterySensor(m.registry, h.ID, h.Name)
	m.devices[h.ID] = h
	m.logger.Warn("vacuum registered as unavailable",
		"device_id", h.ID,
		"model", h.Config.Model,
		"fault", fault,
	)
}

// restore seeds the cache with the last persisted snapshot.
func (m *Manager) restore(ctx context.Context, h *Handle, reachable bool) {
	if m.store == nil {
		return
	}
	stored, err := m.store.LoadSnapshot(ctx, h.ID)
	if errors.Is(err, ErrSnapshotNotFound) {
		return
	}
	if err != nil {
		m.logger.Warn("failed to load snapshot", "device_id", h.ID, "error", err)
		return
	}
	if stored.Model != h.Model.Code {
		m.logger.Info("ignoring snapshot from a different model", "device_id", h.ID, "stored_model", stored.Model)
		return
	}
	entry := statecache.Entry{Snapshot: stored.Entry.Snapshot, Reachable: reachable, LastUpdatedAt: stored.Entry.LastUpdatedAt}
	if _, err := h.Cache.Publish(entry); err != nil {
		m.logger.Warn("failed to restore snapshot", "device_id", h.ID, "error", err)
		return
	}
	m.logger.Debug("restored last known state", "device_id", h.ID, "activity", entry.Snapshot.Activity)
}

// Get returns the handle for id.
func (m *Manager) Get(id string) (*Handle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return h, nil
}

// List returns all handles ordered by id.
func (m *Manager) List() []*Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Handle, 0, len(m.devices))
	for _, h := range m.devices {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SendCommand dispatches an intent to the device.
func (m *Manager) SendCommand(ctx context.Context, id string, in command.Intent) error {
	h, err := m.Get(id)
	if err != nil {
		return err
	}
	if h.Dispatcher == nil {
		return fmt.Errorf("%w: %s (%s)", ErrDeviceUnavailable, id, h.Fault)
	}
	return h.Dispatcher.Send(ctx, in)
}

// Refresh requests an immediate poll.
func (m *Manager) Refresh(id string) error {
	h, err := m.Get(id)
	if err != nil {
		return err
	}
	if h.Engine == nil {
		return fmt.Errorf("%w: %s (%s)", ErrDeviceUnavailable, id, h.Fault)
	}
	h.Engine.Trigger()
	return nil
}

// History returns recorded state changes for the device.
func (m *Manager) History(ctx context.Context, id string, limit int) ([]HistoryEntry, error) {
	if _, err := m.Get(id); err != nil {
		return nil, err
	}
	if m.store == nil {
		return []HistoryEntry{}, nil
	}
	return m.store.History(ctx, id, limit)
}

// Remove stops the device's engine, then closes its cache.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	h, ok := m.devices[id]
	delete(m.devices, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	m.teardown(h)
	m.logger.Info("vacuum removed", "device_id", id)
	return nil
}

func (m *Manager) teardown(h *Handle) {
	if h.Engine != nil {
		h.Engine.Stop()
	}
	if h.persister != nil {
		h.persister.close()
	}
	if h.Vacuum != nil {
		h.Vacuum.Close()
	}
	if h.Battery != nil {
		h.Battery.Close()
	}
	m.transport.RemoveDevice(h.ID)
	m.registry.Remove(h.ID)
}

// Close removes every device. Register fails afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	handles := make([]*Handle, 0, len(m.devices))
	for _, h := range m.devices {
		handles = append(handles, h)
	}
	m.devices = make(map[string]*Handle)
	m.mu.Unlock()

	for _, h := range handles {
		m.teardown(h)
	}
}

// Count returns the number of registered devices.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.devices)
}
