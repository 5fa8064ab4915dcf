package entity

import (
	"sync/atomic"

	"github.com/nerrad567/gray-logic-robovac/internal/statecache"
)

// BatteryState is the presentable state of a battery sensor.
type BatteryState struct {
	UniqueID  string `json:"unique_id"`
	Name      string `json:"name"`
	Value     *int   `json:"value"`
	Unit      string `json:"unit"`
	Available bool   `json:"available"`
}

// BatterySensor reports battery percentage for one device.
type BatterySensor struct {
	deviceID string
	name     string
	sub      *statecache.Subscription
	state    atomic.Pointer[BatteryState]
}

// NewBatterySensor creates the sensor for deviceID. It shares the cache
// the vacuum entity uses but is otherwise independent of it.
func NewBatterySensor(reg *statecache.Registry, deviceID, deviceName string) *BatterySensor {
	b := &BatterySensor{deviceID: deviceID, name: deviceName + " Battery"}
	cache := reg.Acquire(deviceID)
	b.update(cache.Get())
	b.sub = statecache.Watch(cache, b, (*BatterySensor).update)
	return b
}

// UniqueID never equals the vacuum entity id.
func (b *BatterySensor) UniqueID() string {
	return b.deviceID + "_battery"
}

// State returns the latest battery state.
func (b *BatterySensor) State() BatteryState {
	return *b.state.Load()
}

// Close stops watching the cache.
func (b *BatterySensor) Close() {
	b.sub.Unsubscribe()
}

func (b *BatterySensor) update(e statecache.Entry) {
	b.state.Store(&BatteryState{
		UniqueID:  b.UniqueID(),
		Name:      b.name,
		Value:     e.Snapshot.Battery,
		Unit:      "%",
		Available: e.Reachable && e.Snapshot.Battery != nil,
	})
}
