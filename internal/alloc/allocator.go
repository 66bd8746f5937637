package alloc

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/banditlabs/stratcore/internal/domain"
)

// Config bounds how capital moves between strategies.
type Config struct {
	MinAllocationPct      float64 `yaml:"min_allocation_pct"`
	MaxAllocationPct      float64 `yaml:"max_allocation_pct"`
	MaxChangePerRebalance float64 `yaml:"max_change_per_rebalance"`
	RebalanceInterval     int     `yaml:"rebalance_interval"`
}

// DefaultConfig returns the production allocation bounds.
func DefaultConfig() Config {
	return Config{
		MinAllocationPct:      5.0,
		MaxAllocationPct:      50.0,
		MaxChangePerRebalance: 5.0,
		RebalanceInterval:     10,
	}
}

// sumTolerance is the residual the largest-entry correction absorbs silently;
// driftTolerance is how far a smoothed total may sit from 100 before the
// zero-sum reconcile runs.
const (
	sumTolerance   = 0.05
	driftTolerance = 0.2
	eventCap       = 20
)

// Change records one strategy's move in a rebalance.
type Change struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Delta float64 `json:"delta"`
}

// RebalanceResult is what a completed rebalance hands to collaborators.
type RebalanceResult struct {
	Allocations     map[string]float64 `json:"allocations"`
	FitnessScores   map[string]Score   `json:"fitness_scores"`
	RebalanceNumber int                `json:"rebalance_number"`
	Changes         map[string]Change  `json:"changes"`
	Timestamp       time.Time          `json:"timestamp"`
}

// RebalanceEvent is the historical snapshot kept on the ring.
type RebalanceEvent struct {
	ID          string             `json:"id"`
	Timestamp   time.Time          `json:"timestamp"`
	Allocations map[string]float64 `json:"allocations"`
	Fitness     map[string]float64 `json:"fitness"`
	Changes     map[string]Change  `json:"changes"`
}

// Allocator converts fitness scores into smoothed allocation percentages at
// a fixed trade cadence. Not internally synchronized; the owning engine
// serializes access.
type Allocator struct {
	cfg     Config
	weights Weights

	enabled              bool
	tradesSinceRebalance int
	totalRebalances      int
	lastRebalance        time.Time
	lastFitness          map[string]float64
	lastAllocations      map[string]float64
	events               []RebalanceEvent
}

// New creates an enabled allocator with the given bounds.
func New(cfg Config, weights Weights) *Allocator {
	return &Allocator{
		cfg:             cfg,
		weights:         weights,
		enabled:         true,
		lastFitness:     make(map[string]float64),
		lastAllocations: make(map[string]float64),
	}
}

// SetEnabled toggles automatic rebalancing.
func (a *Allocator) SetEnabled(enabled bool) { a.enabled = enabled }

// Enabled reports whether automatic rebalancing is active.
func (a *Allocator) Enabled() bool { return a.enabled }

// TradesSinceRebalance returns the current interval counter.
func (a *Allocator) TradesSinceRebalance() int { return a.tradesSinceRebalance }

// LastAllocations returns the most recently computed allocation map.
func (a *Allocator) LastAllocations() map[string]float64 {
	out := make(map[string]float64, len(a.lastAllocations))
	for k, v := range a.lastAllocations {
		out[k] = v
	}
	return out
}

// Events returns the rebalance history ring, oldest first.
func (a *Allocator) Events() []RebalanceEvent {
	return append([]RebalanceEvent(nil), a.events...)
}

// OnTradeCompleted advances the interval counter and, when it elapses,
// performs a full rebalance: fitness scoring, target allocation, smoothing.
// Returns nil on the non-rebalancing trades.
func (a *Allocator) OnTradeCompleted(
	facts map[string]domain.ExperienceFacts,
	banditEVs map[string]float64,
	current map[string]float64,
) *RebalanceResult {
	if !a.enabled || len(facts) == 0 {
		return nil
	}

	a.tradesSinceRebalance++
	if a.tradesSinceRebalance < a.cfg.RebalanceInterval {
		return nil
	}
	a.tradesSinceRebalance = 0

	return a.rebalance(facts, banditEVs, current)
}

func (a *Allocator) rebalance(
	facts map[string]domain.ExperienceFacts,
	banditEVs map[string]float64,
	current map[string]float64,
) *RebalanceResult {
	scores := make(map[string]Score, len(facts))
	composites := make(map[string]float64, len(facts))
	for strategy, f := range facts {
		s := ComputeFitness(f, banditEVs[strategy], a.weights)
		scores[strategy] = s
		composites[strategy] = s.Composite
	}

	target := a.TargetAllocations(composites)
	smoothed := a.Smooth(current, target, composites)

	a.totalRebalances++
	a.lastRebalance = time.Now().UTC()
	a.lastFitness = composites
	a.lastAllocations = smoothed

	changes := make(map[string]Change, len(smoothed))
	for strategy, to := range smoothed {
		from := current[strategy]
		changes[strategy] = Change{From: from, To: to, Delta: to - from}
	}

	event := RebalanceEvent{
		ID:          uuid.New().String(),
		Timestamp:   a.lastRebalance,
		Allocations: smoothed,
		Fitness:     composites,
		Changes:     changes,
	}
	a.events = append(a.events, event)
	if len(a.events) > eventCap {
		a.events = a.events[len(a.events)-eventCap:]
	}

	log.Info().
		Int("rebalance", a.totalRebalances).
		Int("strategies", len(smoothed)).
		Msg("allocations rebalanced")

	return &RebalanceResult{
		Allocations:     smoothed,
		FitnessScores:   scores,
		RebalanceNumber: a.totalRebalances,
		Changes:         changes,
		Timestamp:       a.lastRebalance,
	}
}

// TargetAllocations converts composite scores into percentages summing to
// 100, clamped to the per-strategy bounds. A non-positive score total falls
// back to an equal split.
func (a *Allocator) TargetAllocations(scores map[string]float64) map[string]float64 {
	strategies := sortedKeys(scores)
	n := len(strategies)
	if n == 0 {
		return map[string]float64{}
	}

	total := 0.0
	for _, s := range strategies {
		total += scores[s]
	}

	target := make(map[string]float64, n)
	if total <= 0 {
		for _, s := range strategies {
			target[s] = 100.0 / float64(n)
		}
	} else {
		for _, s := range strategies {
			target[s] = scores[s] / total * 100.0
		}
	}

	for _, s := range strategies {
		target[s] = clampPct(target[s], a.cfg.MinAllocationPct, a.cfg.MaxAllocationPct)
	}

	// Redistribute the clamp residual across entries with headroom,
	// proportionally to score, until the sum settles at 100.
	for pass := 0; pass < 8; pass++ {
		residual := 100.0 - mapSum(target)
		if math.Abs(residual) <= sumTolerance {
			break
		}

		weightTotal := 0.0
		for _, s := range strategies {
			if hasHeadroom(target[s], residual, a.cfg) {
				weightTotal += math.Max(scores[s], 1e-9)
			}
		}
		if weightTotal == 0 {
			break
		}
		for _, s := range strategies {
			if !hasHeadroom(target[s], residual, a.cfg) {
				continue
			}
			share := residual * math.Max(scores[s], 1e-9) / weightTotal
			target[s] = clampPct(target[s]+share, a.cfg.MinAllocationPct, a.cfg.MaxAllocationPct)
		}
	}

	a.correctLargest(target, strategies)
	return target
}

// Smooth moves each strategy from its current allocation toward the target
// by at most the per-rebalance cap, then reconciles the total back to 100
// without breaching the cap: a shortfall is handed back to reduced strategies
// in descending fitness order, an excess taken back from raised strategies in
// ascending fitness order.
func (a *Allocator) Smooth(current, target, fitness map[string]float64) map[string]float64 {
	strategies := sortedKeys(target)
	n := len(strategies)
	if n == 0 {
		return map[string]float64{}
	}

	if len(current) == 0 {
		// First rebalance: nothing to smooth against.
		out := make(map[string]float64, n)
		for _, s := range strategies {
			out[s] = target[s]
		}
		return out
	}

	base := make(map[string]float64, n)
	for _, s := range strategies {
		if cur, ok := current[s]; ok {
			base[s] = cur
		} else {
			// A strategy without a prior allocation starts from an
			// equal-split stake.
			base[s] = 100.0 / float64(n)
		}
	}

	smoothed := make(map[string]float64, n)
	for _, s := range strategies {
		delta := target[s] - base[s]
		if delta > a.cfg.MaxChangePerRebalance {
			delta = a.cfg.MaxChangePerRebalance
		} else if delta < -a.cfg.MaxChangePerRebalance {
			delta = -a.cfg.MaxChangePerRebalance
		}
		next := base[s] + delta
		if next < a.cfg.MinAllocationPct {
			next = a.cfg.MinAllocationPct
		}
		smoothed[s] = next
	}

	drift := mapSum(smoothed) - 100.0
	if math.Abs(drift) > driftTolerance {
		if drift < 0 {
			a.handBackShortfall(smoothed, base, fitness, -drift)
		} else {
			a.takeBackExcess(smoothed, base, fitness, drift)
		}
	}

	if residual := 100.0 - mapSum(smoothed); math.Abs(residual) > 1e-9 && math.Abs(residual) <= driftTolerance {
		a.correctLargest(smoothed, strategies)
	}
	return smoothed
}

// handBackShortfall returns missing percentage points to strategies that were
// just reduced, best fitness first, never restoring any past its previous
// value.
func (a *Allocator) handBackShortfall(smoothed, base, fitness map[string]float64, shortfall float64) {
	reduced := byFitness(smoothed, base, fitness, func(next, prev float64) bool { return next < prev }, true)
	for _, s := range reduced {
		if shortfall <= 0 {
			break
		}
		give := math.Min(shortfall, base[s]-smoothed[s])
		smoothed[s] += give
		shortfall -= give
	}

	// Residual shortfall (floor enforcement can strand some) goes to any
	// strategy with headroom under the max and the per-rebalance cap.
	if shortfall > 1e-9 {
		for _, s := range byFitness(smoothed, base, fitness, func(next, prev float64) bool { return true }, true) {
			if shortfall <= 0 {
				break
			}
			room := math.Min(a.cfg.MaxAllocationPct-smoothed[s], base[s]+a.cfg.MaxChangePerRebalance-smoothed[s])
			if room <= 0 {
				continue
			}
			give := math.Min(shortfall, room)
			smoothed[s] += give
			shortfall -= give
		}
	}
}

// takeBackExcess claws surplus points back from strategies that were just
// raised, worst fitness first, never pulling any below its previous value or
// the floor.
func (a *Allocator) takeBackExcess(smoothed, base, fitness map[string]float64, excess float64) {
	raised := byFitness(smoothed, base, fitness, func(next, prev float64) bool { return next > prev }, false)
	for _, s := range raised {
		if excess <= 0 {
			break
		}
		take := math.Min(excess, smoothed[s]-base[s])
		take = math.Min(take, smoothed[s]-a.cfg.MinAllocationPct)
		if take <= 0 {
			continue
		}
		smoothed[s] -= take
		excess -= take
	}

	if excess > 1e-9 {
		for _, s := range byFitness(smoothed, base, fitness, func(next, prev float64) bool { return true }, false) {
			if excess <= 0 {
				break
			}
			room := math.Min(smoothed[s]-a.cfg.MinAllocationPct, smoothed[s]-(base[s]-a.cfg.MaxChangePerRebalance))
			if room <= 0 {
				continue
			}
			take := math.Min(excess, room)
			smoothed[s] -= take
			excess -= take
		}
	}
}

// byFitness lists the strategies matching pred, ordered by fitness
// (descending when desc, ascending otherwise), ties broken by strategy code.
func byFitness(smoothed, base, fitness map[string]float64, pred func(next, prev float64) bool, desc bool) []string {
	var out []string
	for s := range smoothed {
		if pred(smoothed[s], base[s]) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		fi, fj := fitness[out[i]], fitness[out[j]]
		if fi != fj {
			if desc {
				return fi > fj
			}
			return fi < fj
		}
		return out[i] < out[j]
	})
	return out
}

// correctLargest absorbs sub-tolerance residual into the largest entry so
// the set sums to exactly 100.
func (a *Allocator) correctLargest(allocs map[string]float64, strategies []string) {
	residual := 100.0 - mapSum(allocs)
	if residual == 0 || len(strategies) == 0 {
		return
	}
	largest := strategies[0]
	for _, s := range strategies[1:] {
		if allocs[s] > allocs[largest] {
			largest = s
		}
	}
	allocs[largest] += residual
}

// hasHeadroom reports whether an entry can absorb a share of the residual:
// room below the cap for a positive residual, room above the floor for a
// negative one.
func hasHeadroom(v, residual float64, cfg Config) bool {
	if residual > 0 {
		return v < cfg.MaxAllocationPct
	}
	return v > cfg.MinAllocationPct
}

func clampPct(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func mapSum(m map[string]float64) float64 {
	total := 0.0
	for _, v := range m {
		total += v
	}
	return total
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
