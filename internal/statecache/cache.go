package statecache

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
	"weak"

	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
)

// Entry is the state shared by every consumer of one device.
type Entry struct {
	Snapshot      robovac.Snapshot `json:"snapshot"`
	Reachable     bool             `json:"reachable"`
	LastUpdatedAt time.Time        `json:"last_updated_at"`

	// Version increases by one on every publish; zero means nothing has
	// been published yet.
	Version uint64 `json:"version"`
}

// Cache is the single shared state holder for one device.
type Cache struct {
	deviceID string
	entry    atomic.Pointer[Entry]
	closed   atomic.Bool
	now      func() time.Time

	// pubMu serialises Publish so versions and notification order agree.
	pubMu sync.Mutex

	subMu  sync.Mutex
	subs   []*Subscription
	nextID uint64
}

// Subscription is a registration for change notification.
type Subscription struct {
	id     uint64
	cache  *Cache
	notify func(Entry) bool // false once the consumer is gone
}

// New creates an empty cache for deviceID. Most callers obtain caches
// through Registry.Acquire instead.
func New(deviceID string) *Cache {
	c := &Cache{deviceID: deviceID, now: time.Now}
	c.entry.Store(&Entry{Snapshot: robovac.Snapshot{Activity: robovac.ActivityUnknown}})
	return c
}

// DeviceID returns the id the cache belongs to.
func (c *Cache) DeviceID() string {
	return c.deviceID
}

// Get returns the latest entry. It never blocks on a poll. The returned
// snapshot is a private copy.
func (c *Cache) Get() Entry {
	e := *c.entry.Load()
	e.Snapshot = e.Snapshot.Clone()
	return e
}

// Publish atomically replaces the entry and then notifies subscribers
// synchronously in registration order.
//
// Parameters:
//   - e: The new entry. Version is ignored; a zero LastUpdatedAt is set to
//     the current time.
//
// Returns:
//   - Entry: The stored entry with its assigned Version
//   - error: ErrClosed after Close
func (c *Cache) Publish(e Entry) (Entry, error) {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	if c.closed.Load() {
		return Entry{}, ErrClosed
	}

	// Step 1: Stamp and swap. Readers see either the old or the new entry.
	e.Snapshot = e.Snapshot.Clone()
	e.Version = c.entry.Load().Version + 1
	if e.LastUpdatedAt.IsZero() {
		e.LastUpdatedAt = c.now()
	}
	stored := e
	c.entry.Store(&stored)

	// Step 2: Copy the subscriber list so callbacks may unsubscribe.
	c.subMu.Lock()
	subs := slices.Clone(c.subs)
	c.subMu.Unlock()

	// Step 3: Notify, dropping watchers whose consumer was collected.
	for _, s := range subs {
		view := stored
		view.Snapshot = stored.Snapshot.Clone()
		if !s.notify(view) {
			s.Unsubscribe()
		}
	}
	return stored, nil
}

// Subscribe registers fn to be called after every publish. fn runs on the
// publisher's goroutine and must not block for long.
func (c *Cache) Subscribe(fn func(Entry)) *Subscription {
	return c.add(func(e Entry) bool {
		fn(e)
		return true
	})
}

// Watch registers fn for consumer without keeping consumer alive. Once
// consumer has been collected the subscription is dropped on the next
// publish. fn must not capture consumer itself.
func Watch[T any](c *Cache, consumer *T, fn func(*T, Entry)) *Subscription {
	wp := weak.Make(consumer)
	return c.add(func(e Entry) bool {
		target := wp.Value()
		if target == nil {
			return false
		}
		fn(target, e)
		return true
	})
}

func (c *Cache) add(notify func(Entry) bool) *Subscription {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	c.nextID++
	s := &Subscription{id: c.nextID, cache: c, notify: notify}
	if !c.closed.Load() {
		c.subs = append(c.subs, s)
	}
	return s
}

// Unsubscribe removes the subscription. It is safe to call more than once
// and from inside a notification.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.cache == nil {
		return
	}
	c := s.cache
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subs = slices.DeleteFunc(c.subs, func(x *Subscription) bool { return x.id == s.id })
}

// SubscriberCount returns the number of live registrations.
func (c *Cache) SubscriberCount() int {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	return len(c.subs)
}

// Close rejects further publishes and drops all subscriptions. The last
// entry remains readable.
func (c *Cache) Close() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.closed.Store(true)
	c.subMu.Lock()
	c.subs = nil
	c.subMu.Unlock()
}

// Closed reports whether Close has been called.
func (c *Cache) Closed() bool {
	return c.closed.Load()
}
