package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-robovac/internal/availability"
	"github.com/nerrad567/gray-logic-robovac/internal/command"
	"github.com/nerrad567/gray-logic-robovac/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
	"github.com/nerrad567/gray-logic-robovac/internal/statecache"
	"github.com/nerrad567/gray-logic-robovac/internal/transport"
)

// MockTransport is a test implementation of Transport.
type MockTransport struct {
	mu        sync.Mutex
	endpoints map[string]transport.Endpoint
	removed   []string
	sent      []robovac.RawPayload
	payload   robovac.RawPayload
	fetchErr  error
	gate      chan struct{}
}

func NewMockTransport() *MockTransport {
	return &MockTransport{
		endpoints: make(map[string]transport.Endpoint),
		payload:   robovac.RawPayload{"15": "Charging", "104": 80, "106": "no_error"},
	}
}

func (m *MockTransport) FetchPayload(ctx context.Context, deviceID string) (robovac.RawPayload, error) {
	m.mu.Lock()
	gate, payload, err := m.gate, m.payload, m.fetchErr
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, transport.NewError("fetch", deviceID, ctx.Err())
		}
	}
	if err != nil {
		return nil, transport.NewError("fetch", deviceID, err)
	}
	return payload, nil
}

func (m *MockTransport) SendPayload(_ context.Context, _ string, p robovac.RawPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, p)
	return nil
}

func (m *MockTransport) AddDevice(ep transport.Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endpoints[ep.DeviceID] = ep
}

func (m *MockTransport) RemoveDevice(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.endpoints, id)
	m.removed = append(m.removed, id)
}

func (m *MockTransport) endpoint(id string) (transport.Endpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.endpoints[id]
	return ep, ok
}

func newTestManager(t *testing.T, tr *MockTransport, store Store) (*Manager, *statecache.Registry) {
	t.Helper()
	reg := statecache.NewRegistry()
	m, err := NewManager(ManagerOptions{
		Registry:  reg,
		Transport: tr,
		Store:     store,
		Polling: config.PollingConfig{
			Interval:         time.Hour,
			Timeout:          time.Second,
			CommandTimeout:   time.Second,
			WarmupPolls:      5,
			FailureThreshold: 3,
		},
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(m.Close)
	return m, reg
}

func hallway() config.VacuumConfig {
	return config.VacuumConfig{
		ID:          "hallway",
		Name:        "Hallway",
		Model:       "T2118",
		IPAddress:   "192.168.1.40",
		AccessToken: "secret",
	}
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewManager_RequiresDependencies(t *testing.T) {
	if _, err := NewManager(ManagerOptions{Transport: NewMockTransport()}); err == nil {
		t.Error("NewManager() without registry should fail")
	}
	if _, err := NewManager(ManagerOptions{Registry: statecache.NewRegistry()}); err == nil {
		t.Error("NewManager() without transport should fail")
	}
}

func TestManager_Register(t *testing.T) {
	tr := NewMockTransport()
	m, reg := newTestManager(t, tr, nil)

	h, err := m.Register(context.Background(), hallway())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if h.Parked() || h.Dispatcher == nil || h.Model.Code != "T2118" {
		t.Fatalf("handle = %+v", h)
	}
	if ep, ok := tr.endpoint("hallway"); !ok || ep.Host != "192.168.1.40" || ep.LocalKey != "secret" {
		t.Errorf("endpoint = %+v", ep)
	}

	cache, ok := reg.Lookup("hallway")
	if !ok || cache != h.Cache {
		t.Fatal("handle cache is not the registry cache")
	}
	waitFor(t, "first poll", func() bool { return cache.Get().Version > 0 })

	if b := h.Battery.State(); !b.Available || *b.Value != 80 {
		t.Errorf("battery = %+v", b)
	}
	if v := h.Vacuum.State(); v.Activity != robovac.ActivityDocked || !v.Available {
		t.Errorf("vacuum = %+v", v)
	}

	if _, err := m.Register(context.Background(), hallway()); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("duplicate Register() error = %v, want ErrDeviceExists", err)
	}
	if _, err := m.Register(context.Background(), config.VacuumConfig{}); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("Register() without id error = %v, want ErrInvalidDevice", err)
	}
}

func TestManager_RegisterParksUnusableDevices(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*config.VacuumConfig)
		wantErr   error
		wantFault string
	}{
		{"unsupported model", func(c *config.VacuumConfig) { c.Model = "T9999" }, ErrModelNotSupported, robovac.FaultUnsupportedModel},
		{"missing address", func(c *config.VacuumConfig) { c.IPAddress = "" }, ErrMissingAddress, robovac.FaultIPAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewMockTransport()
			m, _ := newTestManager(t, tr, nil)
			cfg := hallway()
			tt.mutate(&cfg)

			h, err := m.Register(context.Background(), cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Register() error = %v, want %v", err, tt.wantErr)
			}
			if h == nil || !h.Parked() || h.Fault != tt.wantFault {
				t.Fatalf("handle = %+v", h)
			}

			entry := h.Cache.Get()
			if entry.Reachable || entry.Snapshot.ErrorCode == nil || *entry.Snapshot.ErrorCode != tt.wantFault {
				t.Errorf("entry = %+v", entry)
			}
			if st := h.Vacuum.State(); st.Available || st.ErrorCode != tt.wantFault {
				t.Errorf("vacuum = %+v", st)
			}
			if _, ok := tr.endpoint("hallway"); ok {
				t.Error("parked device was given a transport endpoint")
			}

			err = m.SendCommand(context.Background(), "hallway", command.Intent{Command: robovac.CommandStart})
			if !errors.Is(err, ErrDeviceUnavailable) {
				t.Errorf("SendCommand() error = %v, want ErrDeviceUnavailable", err)
			}
			if err := m.Refresh("hallway"); !errors.Is(err, ErrDeviceUnavailable) {
				t.Errorf("Refresh() error = %v, want ErrDeviceUnavailable", err)
			}
			if got, err := m.Get("hallway"); err != nil || got != h {
				t.Errorf("Get() = %v, %v", got, err)
			}
		})
	}
}

func TestManager_SendCommand(t *testing.T) {
	tr := NewMockTransport()
	m, _ := newTestManager(t, tr, nil)
	if _, err := m.Register(context.Background(), hallway()); err != nil {
		t.Fatal(err)
	}

	if err := m.SendCommand(context.Background(), "hallway", command.Intent{Command: robovac.CommandCleanSpot}); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	tr.mu.Lock()
	sent := tr.sent
	tr.mu.Unlock()
	if len(sent) != 1 || sent[0]["5"] != "Spot" {
		t.Errorf("sent = %v", sent)
	}

	err := m.SendCommand(context.Background(), "hallway", command.Intent{Command: robovac.CommandRoomClean})
	if !errors.Is(err, command.ErrUnsupportedCommand) {
		t.Errorf("SendCommand(room_clean) error = %v", err)
	}
	if err := m.SendCommand(context.Background(), "garage", command.Intent{Command: robovac.CommandStart}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("SendCommand() to unknown device error = %v", err)
	}
}

func TestManager_Remove(t *testing.T) {
	tr := NewMockTransport()
	m, reg := newTestManager(t, tr, nil)
	h, err := m.Register(context.Background(), hallway())
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Remove("hallway"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if !h.Cache.Closed() {
		t.Error("cache still open after Remove")
	}
	if _, ok := reg.Lookup("hallway"); ok {
		t.Error("registry still holds the cache")
	}
	if _, ok := tr.endpoint("hallway"); ok {
		t.Error("transport endpoint not removed")
	}
	if _, err := m.Get("hallway"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get() after Remove error = %v", err)
	}
	if err := m.Remove("hallway"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second Remove() error = %v", err)
	}

	// The id can be registered again with a fresh cache.
	h2, err := m.Register(context.Background(), hallway())
	if err != nil || h2.Cache == h.Cache {
		t.Errorf("re-Register() = %v, %v", h2, err)
	}
}

func TestManager_RestoresSnapshotBeforeFirstPoll(t *testing.T) {
	tr := NewMockTransport()
	tr.gate = make(chan struct{})
	defer close(tr.gate)

	store := NewSQLiteStore(setupStoreDB(t).DB)
	err := store.SaveSnapshot(context.Background(), StoredSnapshot{
		DeviceID: "hallway",
		Model:    "T2118",
		Entry: statecache.Entry{
			Reachable: false,
			Snapshot:  robovac.Snapshot{Activity: robovac.ActivityDocked, Battery: num(42)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	m, _ := newTestManager(t, tr, store)
	h, err := m.Register(context.Background(), hallway())
	if err != nil {
		t.Fatal(err)
	}

	got := h.Cache.Get()
	if got.Snapshot.Battery == nil || *got.Snapshot.Battery != 42 {
		t.Fatalf("restored battery = %v", got.Snapshot.Battery)
	}
	if !got.Reachable {
		t.Error("restored entry should be reachable while warming up")
	}
	if h.Battery.State().Value == nil {
		t.Error("battery sensor did not see the restored state")
	}
}

func TestManager_PersistsPublishes(t *testing.T) {
	tr := NewMockTransport()
	store := NewSQLiteStore(setupStoreDB(t).DB)
	m, _ := newTestManager(t, tr, store)

	if _, err := m.Register(context.Background(), hallway()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "snapshot persisted", func() bool {
		_, err := store.LoadSnapshot(context.Background(), "hallway")
		return err == nil
	})

	// Remove flushes the persister before the cache goes away.
	if err := m.Remove("hallway"); err != nil {
		t.Fatal(err)
	}
	history, err := store.History(context.Background(), "hallway", 10)
	if err != nil || len(history) == 0 {
		t.Fatalf("History() = %v, %v", history, err)
	}
	if history[0].Activity != robovac.ActivityDocked {
		t.Errorf("history[0] = %+v", history[0])
	}
}

func TestManager_Close(t *testing.T) {
	m, _ := newTestManager(t, NewMockTransport(), nil)
	for _, id := range []string{"a", "b"} {
		cfg := hallway()
		cfg.ID = id
		if _, err := m.Register(context.Background(), cfg); err != nil {
			t.Fatal(err)
		}
	}
	if ids := m.List(); len(ids) != 2 || ids[0].ID != "a" {
		t.Errorf("List() = %v", ids)
	}

	m.Close()
	if m.Count() != 0 {
		t.Errorf("Count() = %d after Close", m.Count())
	}
	if _, err := m.Register(context.Background(), hallway()); err == nil {
		t.Error("Register() after Close should fail")
	}
}

func TestManager_Register_ZeroWarmupHonoured(t *testing.T) {
	tests := []struct {
		name   string
		warmup int
		want   availability.State
	}{
		{"zero warm-up degrades on first failure", 0, availability.Degraded},
		{"configured warm-up absorbs first failure", 2, availability.WarmingUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewMockTransport()
			tr.fetchErr = errors.New("no route to host")

			m, err := NewManager(ManagerOptions{
				Registry:  statecache.NewRegistry(),
				Transport: tr,
				Polling: config.PollingConfig{
					Interval:         time.Hour,
					Timeout:          time.Second,
					CommandTimeout:   time.Second,
					WarmupPolls:      tt.warmup,
					FailureThreshold: 3,
				},
			})
			if err != nil {
				t.Fatalf("NewManager() error = %v", err)
			}
			t.Cleanup(m.Close)

			h, err := m.Register(context.Background(), hallway())
			if err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			waitFor(t, "first poll", func() bool { return h.Engine.Stats().Cycles >= 1 })

			st := h.Engine.Availability()
			if st.State != tt.want {
				t.Errorf("State = %v, want %v (%+v)", st.State, tt.want, st)
			}
			if !st.Reachable {
				t.Error("Reachable = false after a single failure")
			}
		})
	}
}
