package persistence

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	cb "github.com/sony/gobreaker"
)

// newBreaker builds the circuit breaker used around database writes: trip on
// three consecutive failures, or a >5% failure ratio once there is enough
// traffic to judge.
func newBreaker(name string) *cb.CircuitBreaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.05
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
			Msg("persistence breaker state change")
	}
	return cb.NewCircuitBreaker(st)
}

// guardedAllocations decorates an AllocationsRepo with a circuit breaker so
// a dead database sheds load fast instead of stalling every rebalance.
type guardedAllocations struct {
	inner   AllocationsRepo
	breaker *cb.CircuitBreaker
}

// GuardAllocations wraps repo writes and reads in a circuit breaker.
func GuardAllocations(inner AllocationsRepo) AllocationsRepo {
	return &guardedAllocations{inner: inner, breaker: newBreaker("allocations")}
}

func (g *guardedAllocations) UpsertBatch(ctx context.Context, allocations map[string]float64, rebalanceNumber int) error {
	_, err := g.breaker.Execute(func() (any, error) {
		return nil, g.inner.UpsertBatch(ctx, allocations, rebalanceNumber)
	})
	return err
}

func (g *guardedAllocations) List(ctx context.Context) ([]AllocationState, error) {
	out, err := g.breaker.Execute(func() (any, error) {
		return g.inner.List(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.([]AllocationState), nil
}

// guardedRebalances is the breaker decorator for RebalancesRepo.
type guardedRebalances struct {
	inner   RebalancesRepo
	breaker *cb.CircuitBreaker
}

// GuardRebalances wraps repo writes and reads in a circuit breaker.
func GuardRebalances(inner RebalancesRepo) RebalancesRepo {
	return &guardedRebalances{inner: inner, breaker: newBreaker("rebalances")}
}

func (g *guardedRebalances) Insert(ctx context.Context, rec RebalanceRecord) error {
	_, err := g.breaker.Execute(func() (any, error) {
		return nil, g.inner.Insert(ctx, rec)
	})
	return err
}

func (g *guardedRebalances) ListRecent(ctx context.Context, limit int) ([]RebalanceRecord, error) {
	out, err := g.breaker.Execute(func() (any, error) {
		return g.inner.ListRecent(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return out.([]RebalanceRecord), nil
}
