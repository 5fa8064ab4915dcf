// Package telemetry writes vacuum state samples to the time-series
// database on every cache publish.
package telemetry

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-robovac/internal/statecache"
)

// Writer accepts vacuum state samples. *influxdb.Client satisfies it.
type Writer interface {
	WriteVacuumState(deviceID, activity string, fields map[string]any, ts time.Time)
}

// Recorder attaches to device caches and writes one sample per publish.
type Recorder struct {
	writer Writer

	mu   sync.Mutex
	subs map[string]*statecache.Subscription
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w Writer) *Recorder {
	return &Recorder{writer: w, subs: make(map[string]*statecache.Subscription)}
}

// Attach starts recording publishes of cache. Attaching the same device
// twice replaces the earlier subscription.
func (r *Recorder) Attach(cache *statecache.Cache) {
	id := cache.DeviceID()
	sub := cache.Subscribe(func(e statecache.Entry) { r.record(id, e) })

	r.mu.Lock()
	old := r.subs[id]
	r.subs[id] = sub
	r.mu.Unlock()

	old.Unsubscribe()
}

// Detach stops recording the device.
func (r *Recorder) Detach(deviceID string) {
	r.mu.Lock()
	sub := r.subs[deviceID]
	delete(r.subs, deviceID)
	r.mu.Unlock()

	sub.Unsubscribe()
}

// Close detaches every device.
func (r *Recorder) Close() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[string]*statecache.Subscription)
	r.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

func (r *Recorder) record(deviceID string, e statecache.Entry) {
	ts := e.LastUpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	r.writer.WriteVacuumState(deviceID, string(e.Snapshot.Activity), Fields(e), ts)
}

// Fields flattens an entry into sample fields. Unknown values are left out.
func Fields(e statecache.Entry) map[string]any {
	snap := e.Snapshot
	fields := map[string]any{"reachable": e.Reachable}

	if snap.Battery != nil {
		fields["battery"] = *snap.Battery
	}
	if snap.CleaningArea != nil {
		fields["cleaning_area"] = *snap.CleaningArea
	}
	if snap.CleaningTime != nil {
		fields["cleaning_time"] = *snap.CleaningTime
	}
	if snap.ErrorCode != nil {
		fields["error_code"] = *snap.ErrorCode
	}
	if snap.Consumables.Known {
		for name, pct := range snap.Consumables.Remaining {
			fields["consumable_"+name] = pct
		}
	}
	return fields
}
