package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/banditlabs/stratcore/internal/persistence"
)

// allocationsRepo implements AllocationsRepo for PostgreSQL.
type allocationsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAllocationsRepo creates a PostgreSQL allocations repository.
func NewAllocationsRepo(db *sqlx.DB, timeout time.Duration) persistence.AllocationsRepo {
	return &allocationsRepo{
		db:      db,
		timeout: timeout,
	}
}

// UpsertBatch writes a full allocation set in one transaction so readers
// never see a half-applied rebalance.
func (r *allocationsRepo) UpsertBatch(ctx context.Context, allocations map[string]float64, rebalanceNumber int) error {
	if len(allocations) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO allocation_states (strategy, pct, rebalance_number, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (strategy)
		DO UPDATE SET pct = EXCLUDED.pct,
		              rebalance_number = EXCLUDED.rebalance_number,
		              updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for strategy, pct := range allocations {
		if _, err := stmt.ExecContext(ctx, strategy, pct, rebalanceNumber); err != nil {
			if pqErr, ok := err.(*pq.Error); ok {
				return fmt.Errorf("failed to upsert allocation for %s (pq %s): %w", strategy, pqErr.Code, err)
			}
			return fmt.Errorf("failed to upsert allocation for %s: %w", strategy, err)
		}
	}

	return tx.Commit()
}

// List returns the stored allocation states ordered by strategy.
func (r *allocationsRepo) List(ctx context.Context) ([]persistence.AllocationState, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT strategy, pct, rebalance_number, updated_at
		FROM allocation_states
		ORDER BY strategy`

	var states []persistence.AllocationState
	if err := r.db.SelectContext(ctx, &states, query); err != nil {
		return nil, fmt.Errorf("failed to list allocation states: %w", err)
	}
	return states, nil
}
