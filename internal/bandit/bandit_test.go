package bandit

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(seed int64) *Store {
	return NewStore(0.10, rand.New(rand.NewSource(seed)))
}

func TestSeededPriors(t *testing.T) {
	s := newTestStore(1)
	arms := s.context(ContextKey{Strategy: "trend", Regime: "RANGING"})

	assert.Equal(t, Arm{Alpha: 1, Beta: 1}, *arms[PresetConservative])
	assert.Equal(t, Arm{Alpha: 2, Beta: 1}, *arms[PresetModerate])
	assert.Equal(t, Arm{Alpha: 1, Beta: 1}, *arms[PresetAggressive])
}

func TestUpdateMonotoneAndCapped(t *testing.T) {
	s := newTestStore(1)
	key := ContextKey{Strategy: "trend", Regime: "TRENDING_UP"}

	rewards := []float64{2.3, -5.0, 0.5, -0.01, 7.7, 0.0}
	prevAlpha, prevBeta := 0.0, 0.0
	for i, r := range rewards {
		arms := s.context(key)
		beforeAlpha := arms[PresetAggressive].Alpha
		beforeBeta := arms[PresetAggressive].Beta

		s.Update("trend", "TRENDING_UP", PresetAggressive, r)

		arm := s.context(key)[PresetAggressive]
		assert.GreaterOrEqual(t, arm.Alpha, beforeAlpha, "alpha must never decrease (step %d)", i)
		assert.GreaterOrEqual(t, arm.Beta, beforeBeta, "beta must never decrease (step %d)", i)
		assert.LessOrEqual(t, arm.Alpha-beforeAlpha, UpdateCap+1e-12, "alpha growth capped (step %d)", i)
		assert.LessOrEqual(t, arm.Beta-beforeBeta, UpdateCap+1e-12, "beta growth capped (step %d)", i)

		assert.GreaterOrEqual(t, arm.Alpha, prevAlpha)
		assert.GreaterOrEqual(t, arm.Beta, prevBeta)
		prevAlpha, prevBeta = arm.Alpha, arm.Beta
	}
}

func TestUpdateUnknownPresetIsNoop(t *testing.T) {
	s := newTestStore(1)
	s.Update("trend", "RANGING", Preset("reckless"), 1.5)

	arms := s.context(ContextKey{Strategy: "trend", Regime: "RANGING"})
	require.Len(t, arms, 3, "no phantom arm created")
	assert.Equal(t, Arm{Alpha: 1, Beta: 1}, *arms[PresetConservative])
}

func TestExpectedValueDefaults(t *testing.T) {
	s := newTestStore(1)

	assert.Equal(t, 0.5, s.ExpectedValue("never", "seen", PresetModerate))

	preset, ev := s.BestExpected("never", "seen")
	assert.Equal(t, PresetModerate, preset)
	assert.Equal(t, 0.5, ev)
}

func TestBestExpectedTieBreak(t *testing.T) {
	s := newTestStore(1)
	// Equalize moderate with the others: all three at Beta(2,2).
	s.Update("trend", "RANGING", PresetConservative, 1.0)
	s.Update("trend", "RANGING", PresetConservative, -1.0)
	s.Update("trend", "RANGING", PresetAggressive, 1.0)
	s.Update("trend", "RANGING", PresetAggressive, -1.0)
	s.Update("trend", "RANGING", PresetModerate, -1.0)

	preset, ev := s.BestExpected("trend", "RANGING")
	assert.Equal(t, PresetConservative, preset, "ties resolve in canonical preset order")
	assert.InDelta(t, 0.5, ev, 1e-9)
}

func TestSelectPresetConverges(t *testing.T) {
	s := newTestStore(42)

	// Make aggressive extremely good, the rest extremely bad.
	for i := 0; i < 200; i++ {
		s.Update("mean_rev", "VOLATILE", PresetAggressive, 2.0)
		s.Update("mean_rev", "VOLATILE", PresetConservative, -2.0)
		s.Update("mean_rev", "VOLATILE", PresetModerate, -2.0)
	}

	picks := map[Preset]int{}
	for i := 0; i < 1000; i++ {
		picks[s.SelectPreset("mean_rev", "VOLATILE")]++
	}
	assert.Greater(t, picks[PresetAggressive], 950, "Thompson sampling must exploit the dominant arm")
}

func TestRewardTotals(t *testing.T) {
	s := newTestStore(1)
	s.RecordReward(1.5)
	s.RecordReward(-0.5)

	assert.Equal(t, 2, s.TotalTrades())
	assert.InDelta(t, 1.0, s.TotalReward(), 1e-9)
	assert.InDelta(t, 0.5, s.AvgReward(), 1e-9)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(7)
	s.Update("trend", "TRENDING_UP", PresetModerate, 1.2)
	s.Update("trend", "RANGING", PresetConservative, -0.4)
	s.RecordReward(1.2)
	s.RecordReward(-0.4)

	state := s.SnapshotState()
	require.Contains(t, state.Contexts, "trend|TRENDING_UP")
	require.Contains(t, state.Contexts, "trend|RANGING")

	restored := NewStore(0.10, rand.New(rand.NewSource(7)))
	restored.RestoreState(state)

	assert.Equal(t, s.TotalTrades(), restored.TotalTrades())
	assert.InDelta(t, s.TotalReward(), restored.TotalReward(), 1e-9)
	assert.InDelta(t,
		s.ExpectedValue("trend", "TRENDING_UP", PresetModerate),
		restored.ExpectedValue("trend", "TRENDING_UP", PresetModerate), 1e-9)
}

func TestRestoreDropsMalformedKeys(t *testing.T) {
	s := newTestStore(1)
	s.RestoreState(State{Contexts: map[string]map[string]Arm{
		"noseparator":       {"moderate": {Alpha: 3, Beta: 1}},
		"|missingstrategy":  {"moderate": {Alpha: 3, Beta: 1}},
		"trend|RANGING":     {"moderate": {Alpha: 3, Beta: 1}, "bogus": {Alpha: 9, Beta: 9}},
		"trend|TRENDING_UP": {"moderate": {Alpha: -1, Beta: 1}},
	}})

	keys := s.SortedContextKeys()
	require.Len(t, keys, 2)
	assert.Equal(t, ContextKey{Strategy: "trend", Regime: "RANGING"}, keys[0])

	// Negative alpha ignored, seed retained.
	assert.InDelta(t, 2.0/3.0, s.ExpectedValue("trend", "TRENDING_UP", PresetModerate), 1e-9)
	// Bogus preset dropped.
	dist := s.Distributions()
	assert.Len(t, dist["trend|RANGING"], 3)
}

func TestSampleBetaBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 10000; i++ {
		v := sampleBeta(rng, 0.7, 3.4)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Equal(t, 0.5, sampleBeta(rng, 0, 1))
}
