package persistence

import (
	"context"
	"time"
)

// AllocationState is one strategy's persisted capital share.
type AllocationState struct {
	Strategy        string    `json:"strategy" db:"strategy"`
	Pct             float64   `json:"pct" db:"pct"`
	RebalanceNumber int       `json:"rebalance_number" db:"rebalance_number"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// RebalanceRecord is one historical rebalance written by the engine.
type RebalanceRecord struct {
	ID          string             `json:"id" db:"id"`
	Number      int                `json:"number" db:"number"`
	Timestamp   time.Time          `json:"ts" db:"ts"`
	Allocations map[string]float64 `json:"allocations" db:"allocations"`
	Fitness     map[string]float64 `json:"fitness" db:"fitness"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
}

// AllocationsRepo persists the current allocation split per strategy.
type AllocationsRepo interface {
	// UpsertBatch writes a full allocation set atomically, keyed by
	// strategy code.
	UpsertBatch(ctx context.Context, allocations map[string]float64, rebalanceNumber int) error

	// List returns the stored allocation states ordered by strategy.
	List(ctx context.Context) ([]AllocationState, error)
}

// RebalancesRepo persists rebalance history for audit and dashboards.
type RebalancesRepo interface {
	// Insert appends one rebalance record.
	Insert(ctx context.Context, rec RebalanceRecord) error

	// ListRecent returns the most recent records, newest first.
	ListRecent(ctx context.Context, limit int) ([]RebalanceRecord, error)
}

// Repository aggregates the persistence interfaces. A nil Repository (or nil
// members) means the engine runs memory-only.
type Repository struct {
	Allocations AllocationsRepo
	Rebalances  RebalancesRepo
}
