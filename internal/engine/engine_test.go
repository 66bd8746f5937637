package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banditlabs/stratcore/internal/alloc"
	"github.com/banditlabs/stratcore/internal/domain"
	"github.com/banditlabs/stratcore/internal/gates"
	"github.com/banditlabs/stratcore/internal/statecache"
)

func testTrade(strategy string, profit float64, won bool) domain.TradeOutcome {
	return domain.TradeOutcome{
		Strategy:     strategy,
		Symbol:       "EURUSD",
		Direction:    "long",
		Profit:       profit,
		EntryPrice:   1.1000,
		ExitPrice:    1.1000 + profit/10000,
		StopDistance: 50,
		DurationSec:  900,
		Regime:       "trending",
		Session:      "london",
		Indicators:   domain.Indicators{RSI: 55, ADX: 28},
		Won:          won,
		Timestamp:    time.Now().UTC(),
	}
}

func testFacts() map[string]domain.ExperienceFacts {
	return map[string]domain.ExperienceFacts{
		"alpha": {Level: 6, WinRate: 0.60, TotalTrades: 40, Wins: 24, Losses: 16,
			TotalProfit: 800, CurrentStreak: 2, CurrentStreakType: "win"},
		"beta": {Level: 3, WinRate: 0.40, TotalTrades: 30, Wins: 12, Losses: 18,
			TotalProfit: -200, CurrentStreak: 1, CurrentStreakType: "loss"},
	}
}

// noExploration is a gate config with the random bypass disabled so tests
// are deterministic.
func noExploration() gates.Config {
	cfg := gates.DefaultConfig()
	cfg.ExplorationRate = 0
	return cfg
}

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Publish(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *captureSink) byType(t string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type captureMetrics struct {
	mu         sync.Mutex
	trades     int
	gates      int
	banditEVs  int
	rebalances int
	snapshots  int
}

func (m *captureMetrics) ObserveTrade(string, float64) { m.mu.Lock(); m.trades++; m.mu.Unlock() }
func (m *captureMetrics) ObserveGate(bool, string)     { m.mu.Lock(); m.gates++; m.mu.Unlock() }
func (m *captureMetrics) ObserveBanditEV(string, string, float64) {
	m.mu.Lock()
	m.banditEVs++
	m.mu.Unlock()
}
func (m *captureMetrics) ObserveRebalance(int, map[string]float64) {
	m.mu.Lock()
	m.rebalances++
	m.mu.Unlock()
}
func (m *captureMetrics) ObserveSnapshot(error) { m.mu.Lock(); m.snapshots++; m.mu.Unlock() }

func TestRecordTradeReport(t *testing.T) {
	e := New(Options{Seed: 1, GateConfig: noExploration()})
	defer e.Close()

	report := e.RecordTrade(testTrade("alpha", 120, true))

	assert.Equal(t, "alpha", report.Strategy)
	assert.Greater(t, report.Reward, 0.0)
	assert.NotEmpty(t, report.ChosenPreset)
	assert.NotEmpty(t, report.Insight)
	assert.Equal(t, 1, e.Stats().TotalTradesAnalyzed)
}

func TestRebalanceFiresOnInterval(t *testing.T) {
	e := New(Options{Seed: 1, GateConfig: noExploration()})
	defer e.Close()

	current := map[string]float64{"alpha": 50, "beta": 50}

	for i := 0; i < 9; i++ {
		assert.Nil(t, e.OnTradeCompleted(testFacts(), current))
	}
	result := e.OnTradeCompleted(testFacts(), current)
	require.NotNil(t, result)

	assert.Equal(t, 1, result.RebalanceNumber)
	sum := 0.0
	for strategy, pct := range result.Allocations {
		sum += pct
		assert.GreaterOrEqual(t, pct, 5.0-1e-9)
		assert.LessOrEqual(t, pct, 50.0+1e-9)
		change := result.Changes[strategy]
		assert.InDelta(t, pct-change.From, change.Delta, 1e-9)
	}
	assert.InDelta(t, 100.0, sum, 0.1)
	assert.Equal(t, result.Allocations, e.Allocations())
	assert.Len(t, e.Rebalances(), 1)
}

func TestRebalancingDisabled(t *testing.T) {
	e := New(Options{Seed: 1, GateConfig: noExploration()})
	defer e.Close()

	e.SetRebalancingEnabled(false)
	for i := 0; i < 25; i++ {
		assert.Nil(t, e.OnTradeCompleted(testFacts(), nil))
	}
}

func TestEvaluateSignalColdStart(t *testing.T) {
	e := New(Options{Seed: 1, GateConfig: noExploration()})
	defer e.Close()

	decision := e.EvaluateSignal("alpha", "trending", domain.Indicators{RSI: 50})

	assert.False(t, decision.Override)
	assert.Equal(t, "insufficient data", decision.Reason)
}

func TestEvaluateSignalAfterWins(t *testing.T) {
	e := New(Options{Seed: 1, GateConfig: noExploration()})
	defer e.Close()

	for i := 0; i < 8; i++ {
		e.RecordTrade(testTrade("alpha", 100, true))
	}
	decision := e.EvaluateSignal("alpha", "trending", domain.Indicators{RSI: 55})

	assert.False(t, decision.Override)
	assert.NotEmpty(t, decision.Checks)
}

func TestSnapshotLifecycle(t *testing.T) {
	dir := t.TempDir()

	e := New(Options{
		Seed:             7,
		GateConfig:       noExploration(),
		SnapshotDir:      dir,
		SnapshotInterval: time.Millisecond,
	})
	for i := 0; i < 5; i++ {
		e.RecordTrade(testTrade("alpha", 80, true))
	}
	e.Close()

	restored := New(Options{
		Seed:        7,
		GateConfig:  noExploration(),
		SnapshotDir: dir,
	})
	defer restored.Close()
	require.NoError(t, restored.Load())

	assert.Equal(t, 5, restored.Stats().TotalTradesAnalyzed)
	views := restored.StrategyConfidenceAdjustments()
	assert.Contains(t, views, "alpha")
}

func TestLoadWithoutSnapshots(t *testing.T) {
	e := New(Options{Seed: 1, SnapshotDir: t.TempDir()})
	defer e.Close()

	require.NoError(t, e.Load())
	assert.Equal(t, 0, e.Stats().TotalTradesAnalyzed)
}

func TestEventFanout(t *testing.T) {
	sink := &captureSink{}
	e := New(Options{Seed: 1, GateConfig: noExploration(), Events: sink})
	defer e.Close()

	e.RecordTrade(testTrade("alpha", 60, true))
	current := map[string]float64{"alpha": 50, "beta": 50}
	for i := 0; i < 10; i++ {
		e.OnTradeCompleted(testFacts(), current)
	}

	assert.Len(t, sink.byType("trade"), 1)
	assert.Len(t, sink.byType("rebalance"), 1)
}

func TestMetricsFanout(t *testing.T) {
	m := &captureMetrics{}
	e := New(Options{Seed: 1, GateConfig: noExploration(), Metrics: m})
	defer e.Close()

	e.RecordTrade(testTrade("alpha", 60, true))
	e.EvaluateSignal("alpha", "trending", domain.Indicators{RSI: 50})
	for i := 0; i < 10; i++ {
		e.OnTradeCompleted(testFacts(), map[string]float64{"alpha": 50, "beta": 50})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, 1, m.trades)
	assert.Equal(t, 1, m.gates)
	assert.Equal(t, 3, m.banditEVs) // one gauge update per preset
	assert.Equal(t, 1, m.rebalances)
}

func TestCacheMirror(t *testing.T) {
	cache := statecache.New()
	e := New(Options{Seed: 1, GateConfig: noExploration(), Cache: cache})
	defer e.Close()

	e.RecordTrade(testTrade("alpha", 60, true))
	_, ok := cache.Get(statecache.KeyRLStats)
	assert.True(t, ok)
	_, ok = cache.Get(statecache.KeyConfidence)
	assert.True(t, ok)

	for i := 0; i < 10; i++ {
		e.OnTradeCompleted(testFacts(), map[string]float64{"alpha": 50, "beta": 50})
	}
	_, ok = cache.Get(statecache.KeyAllocations)
	assert.True(t, ok)
}

func TestPatternsSummary(t *testing.T) {
	e := New(Options{Seed: 1, GateConfig: noExploration()})
	defer e.Close()

	for i := 0; i < 6; i++ {
		e.RecordTrade(testTrade("alpha", 90, true))
	}
	report := e.Patterns()

	require.Contains(t, report.Streaks, "alpha")
	assert.Equal(t, 6, report.Streaks["alpha"].CurrentStreak)
	assert.NotEmpty(t, report.RegimeBias)
}

func TestCompleteTrade(t *testing.T) {
	e := New(Options{Seed: 1, GateConfig: noExploration(), AllocConfig: alloc.Config{
		MinAllocationPct:      5,
		MaxAllocationPct:      50,
		MaxChangePerRebalance: 5,
		RebalanceInterval:     1,
	}})
	defer e.Close()

	report, result := e.CompleteTrade(
		testTrade("alpha", 110, true),
		testFacts(),
		map[string]float64{"alpha": 50, "beta": 50},
	)

	assert.Equal(t, "alpha", report.Strategy)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.RebalanceNumber)
}
