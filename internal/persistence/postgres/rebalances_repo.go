package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/banditlabs/stratcore/internal/persistence"
)

// rebalancesRepo implements RebalancesRepo for PostgreSQL.
type rebalancesRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRebalancesRepo creates a PostgreSQL rebalance history repository.
func NewRebalancesRepo(db *sqlx.DB, timeout time.Duration) persistence.RebalancesRepo {
	return &rebalancesRepo{
		db:      db,
		timeout: timeout,
	}
}

// Insert appends one rebalance record; the allocation and fitness maps land
// in JSONB columns.
func (r *rebalancesRepo) Insert(ctx context.Context, rec persistence.RebalanceRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocationsJSON, err := json.Marshal(rec.Allocations)
	if err != nil {
		return fmt.Errorf("failed to marshal allocations: %w", err)
	}
	fitnessJSON, err := json.Marshal(rec.Fitness)
	if err != nil {
		return fmt.Errorf("failed to marshal fitness: %w", err)
	}

	query := `
		INSERT INTO rebalance_events (id, number, ts, allocations, fitness)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.Number, rec.Timestamp, allocationsJSON, fitnessJSON); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate rebalance record %s: %w", rec.ID, err)
		}
		return fmt.Errorf("failed to insert rebalance record: %w", err)
	}
	return nil
}

// ListRecent returns the most recent rebalance records, newest first.
func (r *rebalancesRepo) ListRecent(ctx context.Context, limit int) ([]persistence.RebalanceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, number, ts, allocations, fitness, created_at
		FROM rebalance_events
		ORDER BY ts DESC
		LIMIT $1`

	rows, err := r.db.QueryxContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rebalance records: %w", err)
	}
	defer rows.Close()

	var records []persistence.RebalanceRecord
	for rows.Next() {
		var rec persistence.RebalanceRecord
		var allocationsJSON, fitnessJSON []byte
		if err := rows.Scan(&rec.ID, &rec.Number, &rec.Timestamp,
			&allocationsJSON, &fitnessJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rebalance record: %w", err)
		}
		if len(allocationsJSON) > 0 {
			if err := json.Unmarshal(allocationsJSON, &rec.Allocations); err != nil {
				return nil, fmt.Errorf("failed to unmarshal allocations: %w", err)
			}
		}
		if len(fitnessJSON) > 0 {
			if err := json.Unmarshal(fitnessJSON, &rec.Fitness); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fitness: %w", err)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}

// Schema is the DDL for the tables this package owns.
const Schema = `
CREATE TABLE IF NOT EXISTS allocation_states (
	strategy         TEXT PRIMARY KEY,
	pct              DOUBLE PRECISION NOT NULL,
	rebalance_number INTEGER NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rebalance_events (
	id          TEXT PRIMARY KEY,
	number      INTEGER NOT NULL,
	ts          TIMESTAMPTZ NOT NULL,
	allocations JSONB NOT NULL,
	fitness     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS rebalance_events_ts_idx ON rebalance_events (ts DESC);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
