package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/deepalweb/travelbuddy-sub001/domain/cost"
	"github.com/deepalweb/travelbuddy-sub001/domain/usage"
	"github.com/deepalweb/travelbuddy-sub001/ports"
)

// CostConfigStore implements ports.CostConfigStore using SQLite.
// The config is a single row; rates are stored as JSON.
type CostConfigStore struct {
	db *DB
}

// NewCostConfigStore creates a new SQLite cost config store.
func NewCostConfigStore(db *DB) *CostConfigStore {
	return &CostConfigStore{db: db}
}

// Load returns the stored config, or ErrNotFound when never saved.
func (s *CostConfigStore) Load(ctx context.Context) (cost.Config, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT include_errors, rates FROM cost_config WHERE id = 1
	`)

	var includeErrors int
	var rates string
	err := row.Scan(&includeErrors, &rates)
	if err == sql.ErrNoRows {
		return cost.Config{}, ports.ErrNotFound
	}
	if err != nil {
		return cost.Config{}, err
	}

	cfg := cost.Config{
		IncludeErrors: includeErrors != 0,
		Rates:         make(map[usage.API]float64),
	}
	if err := json.Unmarshal([]byte(rates), &cfg.Rates); err != nil {
		return cost.Config{}, err
	}
	return cfg, nil
}

// Save persists the config, replacing any previous value.
func (s *CostConfigStore) Save(ctx context.Context, cfg cost.Config) error {
	rates, err := json.Marshal(cfg.Rates)
	if err != nil {
		return err
	}

	includeErrors := 0
	if cfg.IncludeErrors {
		includeErrors = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cost_config (id, include_errors, rates, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			include_errors = excluded.include_errors,
			rates = excluded.rates,
			updated_at = excluded.updated_at
	`, includeErrors, string(rates), time.Now().UTC())
	return err
}

// Ensure interface compliance.
var _ ports.CostConfigStore = (*CostConfigStore)(nil)
