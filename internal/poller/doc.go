// Package poller keeps a vacuum's cached state fresh.
//
// One Engine runs per device. A single goroutine serves the fixed interval
// and on-demand triggers; a weighted semaphore of size one guarantees at
// most one fetch-decode-publish cycle is in flight. Ticks that fired while
// a cycle was running are skipped, and triggers coalesce into at most one
// pending run.
//
// Transport failures never leave the engine. They feed the availability
// machine, and the cached snapshot is kept as the last known good state.
package poller
