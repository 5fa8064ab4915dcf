// Package entity presents a vacuum's cached state the way a home
// automation front end consumes it: one vacuum entity and one battery
// sensor per device.
//
// Entities are independent consumers. Each resolves the device's cache
// through the statecache.Registry by id and watches it without keeping
// itself alive, so a dropped entity simply stops receiving updates.
package entity
