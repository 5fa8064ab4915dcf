// Package statecache holds the latest state of each vacuum and fans every
// update out to its consumers.
//
// One Cache exists per device id, resolved through a Registry so that
// independently constructed consumers (the vacuum entity, its battery
// sensor, the MQTT bridge, the API) share the same instance. The polling
// engine is the only writer.
//
// Readers never block on a poll: Get returns the entry stored by the last
// Publish, and Publish replaces the whole entry at once, so a reader never
// observes a half-applied update.
//
// Subscriptions do not own their consumer. Watch holds the consumer through
// a weak pointer and drops the subscription once the consumer has been
// garbage collected; Subscribe registrations are released with Unsubscribe.
package statecache
