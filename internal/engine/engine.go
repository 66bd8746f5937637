// Package engine assembles the learning core behind a single façade: the
// bandit store, the confidence learner, the signal gate and the capital
// allocator, plus the snapshot, persistence and cache collaborators around
// them. One mutex serializes every mutation; the inner packages carry no
// locks of their own.
package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/banditlabs/stratcore/internal/alloc"
	"github.com/banditlabs/stratcore/internal/bandit"
	"github.com/banditlabs/stratcore/internal/domain"
	"github.com/banditlabs/stratcore/internal/gates"
	"github.com/banditlabs/stratcore/internal/learner"
	"github.com/banditlabs/stratcore/internal/patterns"
	"github.com/banditlabs/stratcore/internal/persistence"
	"github.com/banditlabs/stratcore/internal/snapshot"
	"github.com/banditlabs/stratcore/internal/statecache"
)

// Metrics receives engine observations. The HTTP layer provides the
// Prometheus-backed implementation; a nil Metrics disables instrumentation.
type Metrics interface {
	ObserveTrade(strategy string, reward float64)
	ObserveGate(triggered bool, reason string)
	ObserveBanditEV(contextKey, preset string, ev float64)
	ObserveRebalance(number int, allocations map[string]float64)
	ObserveSnapshot(err error)
}

// Event is one engine occurrence pushed to subscribers.
type Event struct {
	Type      string      `json:"type"` // trade, rebalance, gate_override
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// EventSink receives engine events for fan-out, e.g. to websocket clients.
// Publish must not block.
type EventSink interface {
	Publish(ev Event)
}

// Options configures an Engine. Zero-value collaborators are optional; only
// the RNG seed and tunables have defaults applied.
type Options struct {
	ExplorationRate float64
	Seed            int64 // 0 means time-seeded
	GateConfig      gates.Config
	AllocConfig     alloc.Config
	FitnessWeights  alloc.Weights

	// SnapshotDir enables disk snapshots when non-empty.
	SnapshotDir      string
	SnapshotInterval time.Duration

	// Repo enables SQL persistence when its members are non-nil.
	Repo      persistence.Repository
	DBTimeout time.Duration

	// Cache mirrors live stats for external readers; nil disables.
	Cache    statecache.Cache
	CacheTTL time.Duration

	Metrics Metrics
	Events  EventSink
}

// Engine is the serialized façade over the learning core.
type Engine struct {
	mu sync.Mutex

	rng       *rand.Rand
	bandit    *bandit.Store
	learner   *learner.Learner
	gate      *gates.Evaluator
	allocator *alloc.Allocator

	store *snapshot.Store
	saver *snapshot.Saver

	repo      persistence.Repository
	dbTimeout time.Duration

	cache    statecache.Cache
	cacheTTL time.Duration

	metrics Metrics
	events  EventSink
	logger  zerolog.Logger
}

// New wires an engine from options. Call Load to restore persisted state and
// Close on shutdown.
func New(opts Options) *Engine {
	if opts.ExplorationRate <= 0 {
		opts.ExplorationRate = 0.10
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.AllocConfig == (alloc.Config{}) {
		opts.AllocConfig = alloc.DefaultConfig()
	}
	if opts.GateConfig == (gates.Config{}) {
		opts.GateConfig = gates.DefaultConfig()
	}
	if opts.FitnessWeights == (alloc.Weights{}) {
		opts.FitnessWeights = alloc.DefaultWeights
	}
	if opts.DBTimeout <= 0 {
		opts.DBTimeout = 5 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	rng := rand.New(rand.NewSource(seed))
	store := bandit.NewStore(opts.ExplorationRate, rng)
	lrn := learner.New(store)

	e := &Engine{
		rng:       rng,
		bandit:    store,
		learner:   lrn,
		gate:      gates.NewEvaluator(lrn, store, rng, opts.GateConfig),
		allocator: alloc.New(opts.AllocConfig, opts.FitnessWeights),
		repo:      opts.Repo,
		dbTimeout: opts.DBTimeout,
		cache:     opts.Cache,
		cacheTTL:  opts.CacheTTL,
		metrics:   opts.Metrics,
		events:    opts.Events,
		logger:    log.With().Str("component", "engine").Logger(),
	}

	if opts.SnapshotDir != "" {
		e.store = snapshot.NewStore(opts.SnapshotDir)
		e.saver = snapshot.NewSaver(e.store, opts.SnapshotInterval, func(err error) {
			if e.metrics != nil {
				e.metrics.ObserveSnapshot(err)
			}
		})
	}

	return e
}

// Load restores engine state from the snapshot directory. Missing files
// start fresh; corrupt files are logged and skipped so one damaged snapshot
// never blocks startup.
func (e *Engine) Load() error {
	if e.store == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if st, err := e.store.LoadLearner(); err == nil {
		e.learner.RestoreState(st)
	} else if !skippable(err) {
		return err
	}
	if st, err := e.store.LoadBandit(); err == nil {
		e.bandit.RestoreState(st)
	} else if !skippable(err) {
		return err
	}
	if st, err := e.store.LoadAllocator(); err == nil {
		e.allocator.RestoreState(st)
	} else if !skippable(err) {
		return err
	}

	e.logger.Info().
		Int("trades", e.learner.HistoryLen()).
		Msg("state restored from snapshots")
	return nil
}

func skippable(err error) bool {
	if errors.Is(err, snapshot.ErrNotFound) {
		return true
	}
	if errors.Is(err, snapshot.ErrCorrupt) {
		log.Warn().Err(err).Msg("corrupt snapshot skipped, starting fresh")
		return true
	}
	return false
}

// Close flushes any pending snapshot and stops the background saver.
func (e *Engine) Close() {
	if e.saver != nil {
		e.saver.Stop()
	}
}

// RecordTrade feeds one closed trade through the learner and bandit, then
// fans the updated state out to metrics, the live cache and subscribers.
func (e *Engine) RecordTrade(o domain.TradeOutcome) learner.TradeReport {
	e.mu.Lock()
	report := e.learner.AnalyzeTrade(o)
	contextKey := bandit.ContextKey{Strategy: o.Strategy, Regime: o.Regime}.String()
	evs := make(map[string]float64, 3)
	for _, preset := range bandit.Presets() {
		evs[string(preset)] = e.bandit.ExpectedValue(o.Strategy, o.Regime, preset)
	}
	var stats learner.RLStats
	var views map[string]learner.AdjustmentView
	if e.cache != nil {
		stats = e.learner.Stats()
		views = e.learner.StrategyConfidenceAdjustments()
	}
	payload, snap := e.capture()
	e.mu.Unlock()

	if e.cache != nil {
		statecache.PutJSON(e.cache, statecache.KeyRLStats, stats, e.cacheTTL)
		statecache.PutJSON(e.cache, statecache.KeyConfidence, views, e.cacheTTL)
	}
	if e.metrics != nil {
		e.metrics.ObserveTrade(report.Strategy, report.Reward)
		for preset, ev := range evs {
			e.metrics.ObserveBanditEV(contextKey, preset, ev)
		}
	}
	e.publish("trade", report)
	if snap {
		e.saver.Request(payload)
	}
	return report
}

// OnTradeCompleted advances the allocation cadence with the latest
// per-strategy performance facts and currently deployed percentages. Returns
// nil except on rebalancing trades.
func (e *Engine) OnTradeCompleted(
	facts map[string]domain.ExperienceFacts,
	current map[string]float64,
) *alloc.RebalanceResult {
	e.mu.Lock()
	regime := e.learner.CurrentRegime()
	banditEVs := make(map[string]float64, len(facts))
	for strategy := range facts {
		_, ev := e.bandit.BestExpected(strategy, regime)
		banditEVs[strategy] = ev
	}
	result := e.allocator.OnTradeCompleted(facts, banditEVs, current)
	var payload snapshot.Payload
	snap := false
	if result != nil {
		payload, snap = e.capture()
	}
	e.mu.Unlock()

	if result == nil {
		return nil
	}
	if e.cache != nil {
		statecache.PutJSON(e.cache, statecache.KeyAllocations, result.Allocations, e.cacheTTL)
	}
	if e.metrics != nil {
		e.metrics.ObserveRebalance(result.RebalanceNumber, result.Allocations)
	}
	e.publish("rebalance", result)
	e.persistRebalance(result)
	if snap {
		e.saver.Request(payload)
	}
	return result
}

// CompleteTrade is the combined per-trade entry point: learn from the
// outcome, then advance the allocation cadence in the same lock acquisition
// sequence the two-call form uses.
func (e *Engine) CompleteTrade(
	o domain.TradeOutcome,
	facts map[string]domain.ExperienceFacts,
	current map[string]float64,
) (learner.TradeReport, *alloc.RebalanceResult) {
	report := e.RecordTrade(o)
	result := e.OnTradeCompleted(facts, current)
	return report, result
}

// EvaluateSignal runs the signal gate for a prospective entry.
func (e *Engine) EvaluateSignal(strategy, regime string, indicators domain.Indicators) gates.Decision {
	e.mu.Lock()
	decision := e.gate.Evaluate(strategy, regime, indicators)
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.ObserveGate(decision.Override, decision.Reason)
	}
	if decision.Override {
		e.publish("gate_override", decision)
	}
	return decision
}

// ShouldOverrideSignal is the yes/no form of EvaluateSignal for callers that
// only need the verdict.
func (e *Engine) ShouldOverrideSignal(strategy, regime string, indicators domain.Indicators) (bool, string) {
	decision := e.EvaluateSignal(strategy, regime, indicators)
	return decision.Override, decision.Reason
}

// StrategyConfidenceAdjustments returns the per-strategy confidence view.
func (e *Engine) StrategyConfidenceAdjustments() map[string]learner.AdjustmentView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learner.StrategyConfidenceAdjustments()
}

// Stats returns the learning status snapshot for dashboards.
func (e *Engine) Stats() learner.RLStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learner.Stats()
}

// Allocations returns the last smoothed allocation set, empty before the
// first rebalance.
func (e *Engine) Allocations() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.allocator.LastAllocations()
}

// Rebalances returns the in-memory rebalance history, oldest first.
func (e *Engine) Rebalances() []alloc.RebalanceEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.allocator.Events()
}

// Insights returns the capped human-readable trade log.
func (e *Engine) Insights() []learner.Insight {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.learner.Insights()
}

// PatternReport is the behavioral pattern summary over the trade history.
type PatternReport struct {
	Streaks     map[string]patterns.StreakInfo `json:"streaks"`
	RegimeBias  []string                       `json:"regime_bias"`
	SessionBias []string                       `json:"session_bias"`
	ZoneBias    []string                       `json:"zone_bias"`
}

// Patterns derives streaks and per-dimension biases from the history.
func (e *Engine) Patterns() PatternReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	history := e.learner.History()
	return PatternReport{
		Streaks:     patterns.DetectStreaks(history),
		RegimeBias:  patterns.RegimeBias(history),
		SessionBias: patterns.SessionBias(history),
		ZoneBias:    patterns.ZoneBias(history),
	}
}

// SetRebalancingEnabled toggles automatic rebalancing.
func (e *Engine) SetRebalancingEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.allocator.SetEnabled(enabled)
}

// capture snapshots all three states under the held lock. The caller must
// hold e.mu.
func (e *Engine) capture() (snapshot.Payload, bool) {
	if e.saver == nil {
		return snapshot.Payload{}, false
	}
	return snapshot.Payload{
		Learner:   e.learner.SnapshotState(),
		Bandit:    e.bandit.SnapshotState(),
		Allocator: e.allocator.SnapshotState(),
	}, true
}

// persistRebalance writes the rebalance to SQL off the hot path. Failures
// are logged; the engine state is already advanced and a broken database
// must not stall trading.
func (e *Engine) persistRebalance(result *alloc.RebalanceResult) {
	if e.repo.Allocations == nil && e.repo.Rebalances == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.dbTimeout)
		defer cancel()

		if e.repo.Allocations != nil {
			if err := e.repo.Allocations.UpsertBatch(ctx, result.Allocations, result.RebalanceNumber); err != nil {
				e.logger.Warn().Err(err).Msg("allocation persistence failed")
			}
		}
		if e.repo.Rebalances != nil {
			fitness := make(map[string]float64, len(result.FitnessScores))
			for strategy, s := range result.FitnessScores {
				fitness[strategy] = s.Composite
			}
			rec := persistence.RebalanceRecord{
				ID:          uuid.New().String(),
				Number:      result.RebalanceNumber,
				Timestamp:   result.Timestamp,
				Allocations: result.Allocations,
				Fitness:     fitness,
			}
			if err := e.repo.Rebalances.Insert(ctx, rec); err != nil {
				e.logger.Warn().Err(err).Msg("rebalance persistence failed")
			}
		}
	}()
}

func (e *Engine) publish(eventType string, payload interface{}) {
	if e.events == nil {
		return
	}
	e.events.Publish(Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}
