package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
	"github.com/deepalweb/travelbuddy-sub001/ports"
)

// QuotaStore implements ports.QuotaStore using SQLite for persistence.
// This is the authoritative backend: the upsert-and-increment is atomic at
// the storage layer, so two racing requests from the same user never both
// slip past the limit undetected.
type QuotaStore struct {
	db *DB
}

// NewQuotaStore creates a new SQLite quota store.
func NewQuotaStore(db *DB) *QuotaStore {
	return &QuotaStore{db: db}
}

// GetDailyCount returns the counter value; 0 for missing keys.
func (s *QuotaStore) GetDailyCount(ctx context.Context, userKey string, api usage.API, day string) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT count FROM daily_quotas
		WHERE user_key = ? AND api = ? AND day = ?
	`, userKey, string(api), day)

	var count int64
	err := row.Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Increment atomically adds one and returns the new count.
// The tier column is written only on row creation: the conflict branch
// leaves it untouched, so the first writer's tier wins for that day.
func (s *QuotaStore) Increment(ctx context.Context, userKey string, api usage.API, day, tier string) (int64, error) {
	now := time.Now().UTC()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO daily_quotas (user_key, api, day, tier, count, updated_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(user_key, api, day) DO UPDATE SET
			count = count + 1,
			updated_at = excluded.updated_at
		RETURNING count
	`, userKey, string(api), day, tier, now)

	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Decrement subtracts one, flooring at 0.
func (s *QuotaStore) Decrement(ctx context.Context, userKey string, api usage.API, day string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE daily_quotas
		SET count = MAX(count - 1, 0), updated_at = ?
		WHERE user_key = ? AND api = ? AND day = ?
	`, time.Now().UTC(), userKey, string(api), day)
	return err
}

// CleanupOldDays removes counter rows older than the given day key.
// This should be called periodically to prevent unbounded table growth.
func (s *QuotaStore) CleanupOldDays(ctx context.Context, beforeDay string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM daily_quotas WHERE day < ?
	`, beforeDay)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Ensure interface compliance.
var _ ports.QuotaStore = (*QuotaStore)(nil)
