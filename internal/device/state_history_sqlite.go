package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
	"github.com/nerrad567/gray-logic-robovac/internal/statecache"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// timestampLayout is fixed width so stored values sort as text.
	timestampLayout = "2006-01-02T15:04:05.000000Z"
)

// SQLiteStore implements Store using SQLite.
//
// Snapshots are stored as JSON in vacuum_snapshots; history rows go to
// state_history.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates a store on an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// SaveSnapshot upserts the device's last known snapshot.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap StoredSnapshot) error {
	if snap.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}

	body, err := json.Marshal(snap.Entry.Snapshot)
	if err != nil {
		return fmt.Errorf("marshalling snapshot: %w", err)
	}

	updatedAt := snap.Entry.LastUpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vacuum_snapshots (device_id, model, snapshot, reachable, version, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET
		     model = excluded.model,
		     snapshot = excluded.snapshot,
		     reachable = excluded.reachable,
		     version = excluded.version,
		     updated_at = excluded.updated_at`,
		snap.DeviceID,
		snap.Model,
		string(body),
		boolToInt(snap.Entry.Reachable),
		int64(snap.Entry.Version), //nolint:gosec // versions stay far below MaxInt64
		updatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the stored snapshot for deviceID.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, deviceID string) (StoredSnapshot, error) {
	var (
		out       = StoredSnapshot{DeviceID: deviceID}
		body      string
		reachable int
		version   int64
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT model, snapshot, reachable, version, updated_at
		 FROM vacuum_snapshots WHERE device_id = ?`,
		deviceID,
	).Scan(&out.Model, &body, &reachable, &version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredSnapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return StoredSnapshot{}, fmt.Errorf("loading snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(body), &out.Entry.Snapshot); err != nil {
		return StoredSnapshot{}, fmt.Errorf("unmarshalling snapshot: %w", err)
	}
	ts, err := parseHistoryTimestamp(updatedAt)
	if err != nil {
		return StoredSnapshot{}, err
	}
	out.Entry.Reachable = reachable != 0
	out.Entry.Version = uint64(version) //nolint:gosec // stored from a uint64
	out.Entry.LastUpdatedAt = ts
	return out, nil
}

// RecordHistory inserts a history row for the entry.
func (s *SQLiteStore) RecordHistory(ctx context.Context, deviceID string, e statecache.Entry) error {
	if deviceID == "" {
		return fmt.Errorf("device id is required")
	}
	at := e.LastUpdatedAt
	if at.IsZero() {
		at = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state_history (device_id, recorded_at, activity, error_code, battery, reachable)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		deviceID,
		at.UTC().Format(timestampLayout),
		string(e.Snapshot.Activity),
		e.Snapshot.ErrorCode,
		e.Snapshot.Battery,
		boolToInt(e.Reachable),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	return nil
}

// History returns recent history entries, newest first.
// limit defaults to 50 and is capped at 200.
func (s *SQLiteStore) History(ctx context.Context, deviceID string, limit int) ([]HistoryEntry, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_id, recorded_at, activity, error_code, battery, reachable
		 FROM state_history
		 WHERE device_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			entry      HistoryEntry
			recordedAt string
			activity   string
			errorCode  sql.NullString
			battery    sql.NullInt64
			reachable  int
		)
		if err := rows.Scan(&entry.ID, &entry.DeviceID, &recordedAt, &activity, &errorCode, &battery, &reachable); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}

		ts, err := parseHistoryTimestamp(recordedAt)
		if err != nil {
			return nil, err
		}
		entry.RecordedAt = ts
		entry.Activity = robovac.Activity(activity)
		entry.Reachable = reachable != 0
		if errorCode.Valid {
			entry.ErrorCode = &errorCode.String
		}
		if battery.Valid {
			b := int(battery.Int64)
			entry.Battery = &b
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// PruneHistory deletes history entries older than the given duration.
func (s *SQLiteStore) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := s.now().UTC().Add(-olderThan).Format(timestampLayout)
	result, err := s.db.ExecContext(ctx, "DELETE FROM state_history WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseHistoryTimestamp parses a timestamp stored in SQLite.
func parseHistoryTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("timestamp is empty")
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp: %w", err)
	}
	return ts, nil
}

var _ Store = (*SQLiteStore)(nil)
