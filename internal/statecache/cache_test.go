package statecache

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
)

func battery(n int) robovac.Snapshot {
	return robovac.Snapshot{Activity: robovac.ActivityDocked, Battery: &n}
}

func TestCache_GetBeforePublish(t *testing.T) {
	c := New("hallway")
	e := c.Get()
	if e.Version != 0 || e.Snapshot.Activity != robovac.ActivityUnknown || e.Snapshot.Battery != nil {
		t.Errorf("initial entry = %+v", e)
	}
	if c.DeviceID() != "hallway" {
		t.Errorf("DeviceID() = %q", c.DeviceID())
	}
}

func TestCache_PublishAssignsVersion(t *testing.T) {
	c := New("hallway")

	first, err := c.Publish(Entry{Snapshot: battery(40), Reachable: true})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	second, _ := c.Publish(Entry{Snapshot: battery(41), Reachable: true, Version: 99})

	if first.Version != 1 || second.Version != 2 {
		t.Errorf("versions = %d, %d, want 1, 2", first.Version, second.Version)
	}
	if first.LastUpdatedAt.IsZero() {
		t.Error("LastUpdatedAt not set")
	}
	got := c.Get()
	if got.Version != 2 || *got.Snapshot.Battery != 41 {
		t.Errorf("Get() = version %d battery %d", got.Version, *got.Snapshot.Battery)
	}
}

func TestCache_NotifiesInRegistrationOrder(t *testing.T) {
	c := New("hallway")
	var order []int
	for i := 1; i <= 3; i++ {
		c.Subscribe(func(Entry) { order = append(order, i) })
	}

	c.Publish(Entry{Snapshot: battery(10)}) //nolint:errcheck

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestCache_TwoConsumersSeeSameEntry(t *testing.T) {
	reg := NewRegistry()

	// Constructed independently; they only share the device id.
	var a, b Entry
	reg.Acquire("hallway").Subscribe(func(e Entry) { a = e })
	reg.Acquire("hallway").Subscribe(func(e Entry) { b = e })

	published, _ := reg.Acquire("hallway").Publish(Entry{Snapshot: battery(42), Reachable: true})

	if a.Version != published.Version || b.Version != published.Version {
		t.Fatalf("versions a=%d b=%d published=%d", a.Version, b.Version, published.Version)
	}
	if *a.Snapshot.Battery != 42 || *b.Snapshot.Battery != 42 || a.Reachable != b.Reachable {
		t.Errorf("consumers diverged: a=%+v b=%+v", a, b)
	}
}

func TestCache_UnsubscribeDuringPublish(t *testing.T) {
	c := New("hallway")
	var calls atomic.Int32

	var self *Subscription
	self = c.Subscribe(func(Entry) {
		calls.Add(1)
		self.Unsubscribe()
	})
	c.Subscribe(func(Entry) { calls.Add(1) })

	c.Publish(Entry{}) //nolint:errcheck
	c.Publish(Entry{}) //nolint:errcheck

	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
	if got := c.SubscriberCount(); got != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", got)
	}
	self.Unsubscribe()
}

func TestCache_SubscribersCannotMutateState(t *testing.T) {
	c := New("hallway")
	c.Subscribe(func(e Entry) {
		e.Snapshot.Consumables.Remaining["sensor"] = 0
	})

	c.Publish(Entry{Snapshot: robovac.Snapshot{ //nolint:errcheck
		Consumables: robovac.Consumables{Known: true, Remaining: map[string]int{"sensor": 70}},
	}})

	if got := c.Get().Snapshot.Consumables.Remaining["sensor"]; got != 70 {
		t.Errorf("Remaining[sensor] = %d, subscriber mutated the cache", got)
	}
}

type watcher struct {
	name string
	seen []uint64
}

func watchTemporary(c *Cache, hits *atomic.Int32) {
	w := &watcher{name: "temporary"}
	Watch(c, w, func(w *watcher, e Entry) {
		w.seen = append(w.seen, e.Version)
		hits.Add(1)
	})
}

func TestWatch_DoesNotKeepConsumerAlive(t *testing.T) {
	c := New("hallway")
	var hits atomic.Int32

	kept := &watcher{name: "kept"}
	Watch(c, kept, func(w *watcher, e Entry) { w.seen = append(w.seen, e.Version) })
	watchTemporary(c, &hits)

	c.Publish(Entry{}) //nolint:errcheck
	if hits.Load() != 1 {
		t.Fatalf("temporary watcher hits = %d, want 1", hits.Load())
	}

	for i := 0; i < 5 && c.SubscriberCount() > 1; i++ {
		runtime.GC()
		c.Publish(Entry{}) //nolint:errcheck
	}

	if got := c.SubscriberCount(); got != 1 {
		t.Errorf("SubscriberCount() = %d, want 1 after the temporary consumer was collected", got)
	}
	if len(kept.seen) < 2 {
		t.Errorf("kept watcher saw %v", kept.seen)
	}
	runtime.KeepAlive(kept)
}

func TestCache_Close(t *testing.T) {
	c := New("hallway")
	c.Publish(Entry{Snapshot: battery(55)}) //nolint:errcheck
	c.Subscribe(func(Entry) { t.Error("notified after Close") })

	c.Close()

	if _, err := c.Publish(Entry{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after Close error = %v, want ErrClosed", err)
	}
	if !c.Closed() || c.SubscriberCount() != 0 {
		t.Error("Close did not drop subscriptions")
	}
	if got := c.Get(); got.Snapshot.Battery == nil || *got.Snapshot.Battery != 55 {
		t.Error("last entry should stay readable after Close")
	}
}

func TestCache_ConcurrentReadersDuringPublish(t *testing.T) {
	c := New("hallway")
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				e := c.Get()
				if e.Version > 0 && (e.Snapshot.Battery == nil || uint64(*e.Snapshot.Battery) != e.Version) {
					t.Errorf("torn entry: version %d battery %v", e.Version, e.Snapshot.Battery)
					return
				}
			}
		}()
	}

	for i := 1; i <= 100; i++ {
		c.Publish(Entry{Snapshot: battery(i)}) //nolint:errcheck
	}
	close(stop)
	wg.Wait()
}
