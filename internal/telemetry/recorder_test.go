package telemetry

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
	"github.com/nerrad567/gray-logic-robovac/internal/statecache"
)

type sample struct {
	deviceID string
	activity string
	fields   map[string]any
	ts       time.Time
}

type mockWriter struct {
	mu      sync.Mutex
	samples []sample
}

func (m *mockWriter) WriteVacuumState(deviceID, activity string, fields map[string]any, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, sample{deviceID, activity, fields, ts})
}

func num(n int) *int { return &n }

func TestRecorder_WritesOnPublish(t *testing.T) {
	w := &mockWriter{}
	rec := NewRecorder(w)
	cache := statecache.New("hallway")
	rec.Attach(cache)

	at := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	cache.Publish(statecache.Entry{ //nolint:errcheck
		Reachable:     true,
		LastUpdatedAt: at,
		Snapshot: robovac.Snapshot{
			Activity:    robovac.ActivityCleaning,
			Battery:     num(66),
			Consumables: robovac.Consumables{Known: true, Remaining: map[string]int{"side_brush": 90}},
		},
	})

	if len(w.samples) != 1 {
		t.Fatalf("samples = %d, want 1", len(w.samples))
	}
	got := w.samples[0]
	if got.deviceID != "hallway" || got.activity != "cleaning" || !got.ts.Equal(at) {
		t.Errorf("sample = %+v", got)
	}
	want := map[string]any{"reachable": true, "battery": 66, "consumable_side_brush": 90}
	if !reflect.DeepEqual(got.fields, want) {
		t.Errorf("fields = %v, want %v", got.fields, want)
	}
}

func TestFields_SkipsUnknown(t *testing.T) {
	fields := Fields(statecache.Entry{Snapshot: robovac.Snapshot{Activity: robovac.ActivityUnknown}})
	if !reflect.DeepEqual(fields, map[string]any{"reachable": false}) {
		t.Errorf("Fields() = %v", fields)
	}
}

func TestRecorder_AttachReplacesAndDetach(t *testing.T) {
	w := &mockWriter{}
	rec := NewRecorder(w)
	cache := statecache.New("hallway")

	rec.Attach(cache)
	rec.Attach(cache)
	if n := cache.SubscriberCount(); n != 1 {
		t.Errorf("SubscriberCount() = %d after re-attach, want 1", n)
	}

	rec.Detach("hallway")
	rec.Detach("hallway")
	cache.Publish(statecache.Entry{}) //nolint:errcheck
	if len(w.samples) != 0 {
		t.Error("detached recorder still writes")
	}

	rec.Attach(cache)
	rec.Close()
	if n := cache.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount() = %d after Close", n)
	}
}
