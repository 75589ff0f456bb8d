package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/deepalweb/travelbuddy-sub001/ports"
)

// SubscriberStore implements ports.SubscriberStore using SQLite.
type SubscriberStore struct {
	db *DB
}

// NewSubscriberStore creates a new SQLite subscriber store.
func NewSubscriberStore(db *DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

// GetTier returns the stored tier for a user key, or ErrNotFound.
func (s *SubscriberStore) GetTier(ctx context.Context, userKey string) (string, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tier FROM subscribers WHERE user_key = ?
	`, userKey)

	var tier string
	err := row.Scan(&tier)
	if err == sql.ErrNoRows {
		return "", ports.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return tier, nil
}

// SetTier stores or replaces a user's tier.
func (s *SubscriberStore) SetTier(ctx context.Context, userKey, tier string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscribers (user_key, tier, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_key) DO UPDATE SET
			tier = excluded.tier,
			updated_at = excluded.updated_at
	`, userKey, tier, time.Now().UTC())
	return err
}

// Ensure interface compliance.
var _ ports.SubscriberStore = (*SubscriberStore)(nil)
