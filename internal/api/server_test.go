package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-robovac/internal/device"
	"github.com/nerrad567/gray-logic-robovac/internal/entity"
	"github.com/nerrad567/gray-logic-robovac/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-robovac/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-robovac/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
	"github.com/nerrad567/gray-logic-robovac/internal/statecache"
	"github.com/nerrad567/gray-logic-robovac/internal/transport"
)

// mockTransport answers every fetch with a fixed charging payload.
type mockTransport struct {
	mu      sync.Mutex
	sent    []robovac.RawPayload
	sendErr error
}

func (m *mockTransport) FetchPayload(_ context.Context, _ string) (robovac.RawPayload, error) {
	return robovac.RawPayload{"15": "Charging", "104": 80, "106": "no_error", "118": false}, nil
}

func (m *mockTransport) SendPayload(_ context.Context, id string, p robovac.RawPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return transport.NewError("send", id, m.sendErr)
	}
	m.sent = append(m.sent, p)
	return nil
}

func (m *mockTransport) AddDevice(transport.Endpoint) {}
func (m *mockTransport) RemoveDevice(string)          {}

func (m *mockTransport) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// testServer creates a Server over a real manager with one polled vacuum
// ("hallway") and one parked vacuum ("garage").
func testServer(t *testing.T) (*Server, *device.Manager, *mockTransport) {
	t.Helper()

	tr := &mockTransport{}
	mgr, err := device.NewManager(device.ManagerOptions{
		Registry:  statecache.NewRegistry(),
		Transport: tr,
		Polling: config.PollingConfig{
			Interval:         time.Hour,
			Timeout:          time.Second,
			CommandTimeout:   time.Second,
			WarmupPolls:      5,
			FailureThreshold: 3,
		},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(mgr.Close)

	h, err := mgr.Register(context.Background(), config.VacuumConfig{
		ID: "hallway", Name: "Hallway", Model: "T2118", IPAddress: "192.168.1.40",
	})
	if err != nil {
		t.Fatalf("Register hallway: %v", err)
	}
	if _, err := mgr.Register(context.Background(), config.VacuumConfig{
		ID: "garage", Name: "Garage", Model: "T9999", IPAddress: "192.168.1.41",
	}); !errors.Is(err, device.ErrModelNotSupported) {
		t.Fatalf("Register garage: err = %v", err)
	}
	waitFor(t, "first poll", func() bool { return h.Cache.Get().Reachable && h.Cache.Get().Snapshot.Battery != nil })

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	srv, err := New(Deps{
		Config: config.APIConfig{Host: "127.0.0.1", Port: 0},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:  log,
		Manager: mgr,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, mgr, tr
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("expected error without logger")
	}
	if _, err := New(Deps{Logger: logging.Default()}); err == nil {
		t.Error("expected error without manager")
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "degraded" || body["vacuums"] != 2.0 || body["available"] != 1.0 {
		t.Errorf("health = %v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

type fakeBroker struct{ up bool }

func (f fakeBroker) IsConnected() bool { return f.up }

func TestHealth_Components(t *testing.T) {
	srv, mgr, _ := testServer(t)
	if err := mgr.Remove("garage"); err != nil {
		t.Fatal(err)
	}

	db, err := database.Open(context.Background(), config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "health.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	srv.db = db

	tests := []struct {
		name       string
		brokerUp   bool
		wantStatus string
		wantMQTT   string
	}{
		{"all up", true, "ok", "connected"},
		{"broker down", false, "degraded", "disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv.mqtt = fakeBroker{up: tt.brokerUp}
			body := decode[struct {
				Status     string            `json:"status"`
				Components map[string]string `json:"components"`
			}](t, do(t, srv, http.MethodGet, "/api/v1/health", ""))

			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if body.Components["mqtt"] != tt.wantMQTT || body.Components["database"] != "ok" {
				t.Errorf("components = %v", body.Components)
			}
		})
	}
}

func TestListVacuums(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/vacuums", "")
	body := decode[struct {
		Vacuums []entity.VacuumState `json:"vacuums"`
		Count   int                  `json:"count"`
	}](t, rec)

	if body.Count != 2 || body.Vacuums[0].UniqueID != "garage" || body.Vacuums[1].UniqueID != "hallway" {
		t.Fatalf("list = %+v", body)
	}
	if body.Vacuums[0].Available || body.Vacuums[0].ErrorCode != robovac.FaultUnsupportedModel {
		t.Errorf("garage = %+v", body.Vacuums[0])
	}
	if !body.Vacuums[1].Available || body.Vacuums[1].Activity != robovac.ActivityDocked {
		t.Errorf("hallway = %+v", body.Vacuums[1])
	}
}

func TestGetVacuum(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/vacuums/hallway", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	v := decode[vacuumResponse](t, rec)
	if v.Parked || v.Model != "T2118" || len(v.SupportedCommands) == 0 {
		t.Errorf("hallway = %+v", v)
	}
	if v.Battery == nil || *v.Battery != 80 {
		t.Errorf("battery = %v", v.Battery)
	}

	v = decode[vacuumResponse](t, do(t, srv, http.MethodGet, "/api/v1/vacuums/garage", ""))
	if !v.Parked || v.Fault != robovac.FaultUnsupportedModel || len(v.SupportedCommands) != 0 {
		t.Errorf("garage = %+v", v)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/vacuums/kitchen", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown vacuum status = %d", rec.Code)
	}
}

func TestGetStateAndBattery(t *testing.T) {
	srv, _, _ := testServer(t)

	body := decode[struct {
		DeviceID string           `json:"device_id"`
		State    statecache.Entry `json:"state"`
	}](t, do(t, srv, http.MethodGet, "/api/v1/vacuums/hallway/state", ""))
	if body.DeviceID != "hallway" || !body.State.Reachable || body.State.Version == 0 {
		t.Errorf("state = %+v", body)
	}

	battery := decode[entity.BatteryState](t, do(t, srv, http.MethodGet, "/api/v1/vacuums/hallway/battery", ""))
	if battery.UniqueID != "hallway_battery" || battery.Value == nil || *battery.Value != 80 || battery.Unit != "%" {
		t.Errorf("battery = %+v", battery)
	}
}

func TestGetHistory_WithoutStore(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/vacuums/hallway/history?limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decode[map[string]any](t, rec); body["count"] != 0.0 {
		t.Errorf("history = %v", body)
	}

	for _, q := range []string{"limit=0", "limit=abc", "since=yesterday"} {
		if rec := do(t, srv, http.MethodGet, "/api/v1/vacuums/hallway/history?"+q, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", q, rec.Code)
		}
	}
}

func TestSendCommand(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		body    string
		sendErr error
		want    int
		code    string
	}{
		{"accepted", "hallway", `{"command":"start"}`, nil, http.StatusAccepted, ""},
		{"fan speed", "hallway", `{"command":"set_fan_speed","fan_speed":"max"}`, nil, http.StatusAccepted, ""},
		{"unknown fan speed", "hallway", `{"command":"set_fan_speed","fan_speed":"Turbo"}`, nil, http.StatusBadRequest, ErrCodeValidation},
		{"unsupported", "hallway", `{"command":"room_clean"}`, nil, http.StatusUnprocessableEntity, ErrCodeUnsupportedCommand},
		{"parked", "garage", `{"command":"start"}`, nil, http.StatusConflict, ErrCodeDeviceUnavailable},
		{"unknown vacuum", "kitchen", `{"command":"start"}`, nil, http.StatusNotFound, ErrCodeNotFound},
		{"bad json", "hallway", `{`, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing command", "hallway", `{}`, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"device timeout", "hallway", `{"command":"start"}`, context.DeadlineExceeded, http.StatusGatewayTimeout, ErrCodeDeviceTimeout},
		{"device rejected", "hallway", `{"command":"start"}`, transport.ErrRejected, http.StatusBadGateway, ErrCodeDeviceError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, tr := testServer(t)
			tr.sendErr = tt.sendErr

			rec := do(t, srv, http.MethodPost, "/api/v1/vacuums/"+tt.id+"/commands", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.code != "" {
				if e := decode[Error](t, rec); e.Code != tt.code {
					t.Errorf("code = %s, want %s", e.Code, tt.code)
				}
			}
			if tt.want == http.StatusAccepted && tr.sentCount() != 1 {
				t.Errorf("sent = %d, want 1", tr.sentCount())
			}
		})
	}
}

func TestSendCommand_DoesNotWriteCache(t *testing.T) {
	srv, mgr, _ := testServer(t)
	h, _ := mgr.Get("hallway")
	before := h.Cache.Get()

	rec := do(t, srv, http.MethodPost, "/api/v1/vacuums/hallway/commands", `{"command":"toggle_boost_iq"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	// The only publish allowed is the triggered poll, which reads the same
	// payload again.
	waitFor(t, "triggered poll", func() bool { return h.Cache.Get().Version > before.Version })
	if got := h.Cache.Get().Snapshot.BoostIQ; got == nil || *got {
		t.Errorf("boost_iq = %v, want false from the device", got)
	}
}

func TestRefresh(t *testing.T) {
	srv, mgr, _ := testServer(t)
	h, _ := mgr.Get("hallway")
	before := h.Cache.Get().Version

	if rec := do(t, srv, http.MethodPost, "/api/v1/vacuums/hallway/refresh", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	waitFor(t, "refresh poll", func() bool { return h.Cache.Get().Version > before })

	if rec := do(t, srv, http.MethodPost, "/api/v1/vacuums/garage/refresh", ""); rec.Code != http.StatusConflict {
		t.Errorf("parked refresh status = %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv, _, _ := testServer(t)

	m := decode[SystemMetrics](t, do(t, srv, http.MethodGet, "/api/v1/metrics", ""))
	if m.Vacuums.Total != 2 || m.Vacuums.Parked != 1 || m.Vacuums.Polls == 0 {
		t.Errorf("vacuums = %+v", m.Vacuums)
	}
	if m.Vacuums.ByAvailability["AVAILABLE"] != 1 || m.Vacuums.ByAvailability["UNAVAILABLE"] != 1 {
		t.Errorf("by availability = %v", m.Vacuums.ByAvailability)
	}
	if m.Database != nil {
		t.Error("database metrics without a database")
	}
}

func TestCORS(t *testing.T) {
	srv, _, _ := testServer(t)
	srv.cfg.CORS.AllowedOrigins = []string{"http://panel.local"}

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/vacuums", nil)
	req.Header.Set("Origin", "http://panel.local")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://panel.local" {
		t.Errorf("preflight = %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin got CORS headers")
	}
}

func TestWebSocket_BroadcastsVacuumState(t *testing.T) {
	srv, mgr, _ := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx)
	h, _ := mgr.Get("hallway")
	srv.relay(h)

	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?channels=" + EventVacuumState
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, "client registered", func() bool { return srv.hub.ClientCount() == 1 })

	if err := mgr.Refresh("hallway"); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	var msg struct {
		Type      string             `json:"type"`
		EventType string             `json:"event_type"`
		Payload   entity.VacuumState `json:"payload"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != WSTypeEvent || msg.EventType != EventVacuumState || msg.Payload.UniqueID != "hallway" {
		t.Errorf("message = %+v", msg)
	}
	if !msg.Payload.Available {
		t.Error("broadcast state not available")
	}
}

func dialWS(t *testing.T, srv *Server, channels string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	if channels != "" {
		url += "?channels=" + channels
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocket_DeviceChannel(t *testing.T) {
	srv, mgr, _ := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx)
	h, _ := mgr.Get("hallway")
	srv.relay(h)

	conn := dialWS(t, srv, EventVacuumState+":hallway")
	waitFor(t, "client registered", func() bool { return srv.hub.ClientCount() == 1 })

	srv.hub.Broadcast(EventVacuumState, "garage", "ignored")
	if err := mgr.Refresh("hallway"); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.DeviceID != "hallway" {
		t.Errorf("first event for %q, want hallway", msg.DeviceID)
	}
}

func TestWebSocket_SubscribeAndPing(t *testing.T) {
	srv, _, _ := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx)

	conn := dialWS(t, srv, "")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck

	if err := conn.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "1", Channels: []string{" vacuum.state ", ""}}); err != nil {
		t.Fatal(err)
	}
	var resp struct {
		Type    string `json:"type"`
		ID      string `json:"id"`
		Payload struct {
			Subscribed []string `json:"subscribed"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Type != WSTypeResponse || resp.ID != "1" || len(resp.Payload.Subscribed) != 1 || resp.Payload.Subscribed[0] != EventVacuumState {
		t.Errorf("subscribe response = %+v", resp)
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "2"}); err != nil {
		t.Fatal(err)
	}
	var pong WSMessage
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read: %v", err)
	}
	if pong.Type != WSTypePong || pong.ID != "2" {
		t.Errorf("pong = %+v", pong)
	}

	if err := conn.WriteJSON(WSMessage{Type: "bogus", ID: "3"}); err != nil {
		t.Fatal(err)
	}
	var bad WSMessage
	if err := conn.ReadJSON(&bad); err != nil {
		t.Fatalf("read: %v", err)
	}
	if bad.Type != WSTypeError {
		t.Errorf("unknown type reply = %+v", bad)
	}
}
