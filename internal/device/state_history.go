package device

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
	"github.com/nerrad567/gray-logic-robovac/internal/statecache"
)

// HistoryEntry is one recorded change of activity, fault or reachability.
type HistoryEntry struct {
	ID         int64            `json:"id"`
	DeviceID   string           `json:"device_id"`
	RecordedAt time.Time        `json:"recorded_at"`
	Activity   robovac.Activity `json:"activity"`
	ErrorCode  *string          `json:"error_code,omitempty"`
	Battery    *int             `json:"battery,omitempty"`
	Reachable  bool             `json:"reachable"`
}

// StoredSnapshot is the last known state persisted for a device.
type StoredSnapshot struct {
	DeviceID string
	Model    string
	Entry    statecache.Entry
}

// Store persists last-known snapshots and state history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Store interface {
	// SaveSnapshot replaces the stored snapshot for the device.
	SaveSnapshot(ctx context.Context, s StoredSnapshot) error

	// LoadSnapshot returns the stored snapshot, or ErrSnapshotNotFound.
	LoadSnapshot(ctx context.Context, deviceID string) (StoredSnapshot, error)

	// RecordHistory appends a history row built from the entry.
	RecordHistory(ctx context.Context, deviceID string, e statecache.Entry) error

	// History returns recent entries for the device, newest first.
	History(ctx context.Context, deviceID string, limit int) ([]HistoryEntry, error)
}
