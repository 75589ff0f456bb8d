package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
	"github.com/deepalweb/travelbuddy-sub001/ports"
)

// UsageEventStore implements ports.UsageEventStore using SQLite.
type UsageEventStore struct {
	db *DB
}

// NewUsageEventStore creates a new SQLite usage event store.
func NewUsageEventStore(db *DB) *UsageEventStore {
	return &UsageEventStore{db: db}
}

// Record stores a single event. Meta is stored as JSON.
func (s *UsageEventStore) Record(ctx context.Context, e usage.Event) error {
	var meta []byte
	if len(e.Meta) > 0 {
		var err error
		meta, err = json.Marshal(e.Meta)
		if err != nil {
			return err
		}
	}

	// Store timestamp in UTC for consistent querying
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_events (id, timestamp, api, action, status, duration_ms, meta)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Timestamp.UTC(), string(e.API), e.Action, string(e.Status), e.DurationMs, nullableString(meta))
	return err
}

// List returns events matching the query, oldest first.
// Since/Until compare at second resolution: sub-second bound components
// are truncated. Callers with finer windows must re-filter in memory
// (usage.Query.Matches is exact).
func (s *UsageEventStore) List(ctx context.Context, q usage.Query) ([]usage.Event, error) {
	var conditions []string
	var args []any

	if !q.Since.IsZero() {
		conditions = append(conditions, "datetime(timestamp) >= datetime(?)")
		args = append(args, q.Since.UTC().Format("2006-01-02 15:04:05"))
	}
	if !q.Until.IsZero() {
		conditions = append(conditions, "datetime(timestamp) < datetime(?)")
		args = append(args, q.Until.UTC().Format("2006-01-02 15:04:05"))
	}
	if q.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(q.Status))
	}
	if len(q.APIs) > 0 {
		placeholders := make([]string, len(q.APIs))
		for i, api := range q.APIs {
			placeholders[i] = "?"
			args = append(args, string(api))
		}
		conditions = append(conditions, "api IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `
		SELECT id, timestamp, api, action, status, duration_ms, meta
		FROM usage_events`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp ASC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []usage.Event
	for rows.Next() {
		var e usage.Event
		var api, status string
		var action, meta sql.NullString

		if err := rows.Scan(&e.ID, &e.Timestamp, &api, &action, &status, &e.DurationMs, &meta); err != nil {
			return nil, err
		}

		e.API = usage.API(api)
		e.Status = usage.Status(status)
		if action.Valid {
			e.Action = action.String
		}
		if meta.Valid && meta.String != "" {
			// Meta is opaque; a corrupt row degrades to no metadata.
			_ = json.Unmarshal([]byte(meta.String), &e.Meta)
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// Cleanup removes events recorded before the cutoff.
func (s *UsageEventStore) Cleanup(ctx context.Context, before string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM usage_events WHERE datetime(timestamp) < datetime(?)
	`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// Ensure interface compliance.
var _ ports.UsageEventStore = (*UsageEventStore)(nil)
