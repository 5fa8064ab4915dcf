// Package device runs the configured vacuums.
//
// The Manager owns one Handle per vacuum: its shared state cache (resolved
// through the statecache.Registry), polling engine, command dispatcher and
// the vacuum and battery entities. Register restores the last known
// snapshot from the Store before the first poll, so consumers see the
// previous state immediately after a restart.
//
// # Parked devices
//
// A vacuum whose model is not in the capability table, or that has no IP
// address, is still registered. It is never polled, its cache carries the
// matching fault code and is unreachable, and commands to it fail with
// ErrDeviceUnavailable.
//
// # Persistence
//
// With a Store configured, every publish is written to vacuum_snapshots
// and changes of activity, fault or reachability are appended to
// state_history. Writes happen on a per-device goroutine so the engine
// never waits on SQLite.
package device
