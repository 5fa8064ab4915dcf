package device

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-robovac/internal/statecache"
)

const (
	persistQueueSize = 64
	persistTimeout   = 5 * time.Second
)

// persister writes every publish of one cache to the store on its own
// goroutine, so the polling engine never waits on SQLite.
type persister struct {
	deviceID string
	model    string
	store    Store
	logger   Logger

	queue    chan statecache.Entry
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	sub      *statecache.Subscription

	last *statecache.Entry // last entry written to history
}

func newPersister(cache *statecache.Cache, model string, store Store, logger Logger) *persister {
	p := &persister{
		deviceID: cache.DeviceID(),
		model:    model,
		store:    store,
		logger:   logger,
		queue:    make(chan statecache.Entry, persistQueueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	p.sub = cache.Subscribe(p.enqueue)
	return p
}

func (p *persister) enqueue(e statecache.Entry) {
	select {
	case <-p.stop:
		return
	default:
	}
	select {
	case p.queue <- e:
	default:
		p.logger.Warn("persist queue full, dropping update", "device_id", p.deviceID, "version", e.Version)
	}
}

func (p *persister) run() {
	defer close(p.done)
	for {
		select {
		case e := <-p.queue:
			p.write(e)
		case <-p.stop:
			for {
				select {
				case e := <-p.queue:
					p.write(e)
				default:
					return
				}
			}
		}
	}
}

func (p *persister) write(e statecache.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := p.store.SaveSnapshot(ctx, StoredSnapshot{DeviceID: p.deviceID, Model: p.model, Entry: e}); err != nil {
		p.logger.Error("failed to save snapshot", "device_id", p.deviceID, "error", err)
	}
	if !historyChanged(p.last, e) {
		return
	}
	if err := p.store.RecordHistory(ctx, p.deviceID, e); err != nil {
		p.logger.Error("failed to record state history", "device_id", p.deviceID, "error", err)
		return
	}
	p.last = &e
}

// close stops listening and flushes what was already queued.
func (p *persister) close() {
	p.stopOnce.Do(func() {
		p.sub.Unsubscribe()
		close(p.stop)
	})
	<-p.done
}

// historyChanged reports whether e differs from prev in activity, fault or
// reachability.
func historyChanged(prev *statecache.Entry, e statecache.Entry) bool {
	if prev == nil {
		return true
	}
	return prev.Snapshot.Activity != e.Snapshot.Activity ||
		prev.Reachable != e.Reachable ||
		deref(prev.Snapshot.ErrorCode) != deref(e.Snapshot.ErrorCode)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
