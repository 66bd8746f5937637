package bandit

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog/log"
)

// Preset identifies one of the three parameter presets each context
// chooses between.
type Preset string

const (
	PresetConservative Preset = "conservative"
	PresetModerate     Preset = "moderate"
	PresetAggressive   Preset = "aggressive"
)

// presetOrder fixes iteration order so expected-value ties always resolve
// the same way.
var presetOrder = [3]Preset{PresetConservative, PresetModerate, PresetAggressive}

// Presets returns the presets in their canonical order.
func Presets() []Preset {
	return []Preset{PresetConservative, PresetModerate, PresetAggressive}
}

// UpdateCap bounds a single trade's contribution to alpha or beta.
const UpdateCap = 2.0

// ContextKey is the composite (strategy, regime) key for one bandit context.
type ContextKey struct {
	Strategy string
	Regime   string
}

// String renders the stable "strategy|regime" form used in snapshots.
func (k ContextKey) String() string {
	return k.Strategy + "|" + k.Regime
}

// Arm holds the Beta(alpha, beta) belief for one preset.
type Arm struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// ExpectedValue is the mean of the Beta distribution.
func (a Arm) ExpectedValue() float64 {
	return a.Alpha / (a.Alpha + a.Beta)
}

// Store maintains one independent three-arm Thompson-sampling bandit per
// (strategy, regime) context, plus the running reward totals reported in RL
// stats. It is not internally synchronized; the owning engine serializes all
// access under its lock, including the injected RNG.
type Store struct {
	contexts        map[ContextKey]map[Preset]*Arm
	totalTrades     int
	totalReward     float64
	explorationRate float64
	rng             *rand.Rand
}

// NewStore creates an empty bandit store with the given exploration rate and
// injected randomness source.
func NewStore(explorationRate float64, rng *rand.Rand) *Store {
	return &Store{
		contexts:        make(map[ContextKey]map[Preset]*Arm),
		explorationRate: explorationRate,
		rng:             rng,
	}
}

// context returns the arms for a key, lazily seeding a new context. The
// moderate preset carries a mild prior (alpha=2) toward it.
func (s *Store) context(key ContextKey) map[Preset]*Arm {
	if arms, ok := s.contexts[key]; ok {
		return arms
	}
	arms := map[Preset]*Arm{
		PresetConservative: {Alpha: 1, Beta: 1},
		PresetModerate:     {Alpha: 2, Beta: 1},
		PresetAggressive:   {Alpha: 1, Beta: 1},
	}
	s.contexts[key] = arms
	log.Debug().Str("context", key.String()).Msg("bandit context seeded")
	return arms
}

// SelectPreset draws one Beta sample per preset and returns the argmax.
// Thompson sampling: presets with wide posteriors still win draws often
// enough to stay explored.
func (s *Store) SelectPreset(strategy, regime string) Preset {
	arms := s.context(ContextKey{Strategy: strategy, Regime: regime})

	best := presetOrder[0]
	bestSample := -1.0
	for _, p := range presetOrder {
		sample := sampleBeta(s.rng, arms[p].Alpha, arms[p].Beta)
		if sample > bestSample {
			bestSample = sample
			best = p
		}
	}
	return best
}

// Update credits or debits a preset with one trade's reward: positive reward
// grows alpha, non-positive grows beta, each by at most UpdateCap. An unknown
// preset is a no-op; phantom arms are never created.
func (s *Store) Update(strategy, regime string, preset Preset, reward float64) {
	arms := s.context(ContextKey{Strategy: strategy, Regime: regime})
	arm, ok := arms[preset]
	if !ok {
		log.Warn().
			Str("strategy", strategy).
			Str("regime", regime).
			Str("preset", string(preset)).
			Msg("bandit update for unknown preset ignored")
		return
	}

	if reward > 0 {
		arm.Alpha += math.Min(reward, UpdateCap)
	} else {
		arm.Beta += math.Min(math.Abs(reward), UpdateCap)
	}
}

// RecordReward accumulates the running totals reported by RL stats.
func (s *Store) RecordReward(reward float64) {
	s.totalTrades++
	s.totalReward += reward
}

// ExpectedValue returns alpha/(alpha+beta) for a preset, or 0.5 when the
// context has never been seen. Lookup does not create the context.
func (s *Store) ExpectedValue(strategy, regime string, preset Preset) float64 {
	arms, ok := s.contexts[ContextKey{Strategy: strategy, Regime: regime}]
	if !ok {
		return 0.5
	}
	arm, ok := arms[preset]
	if !ok {
		return 0.5
	}
	return arm.ExpectedValue()
}

// BestExpected returns the preset with the highest expected value for a
// context and that value. Ties break on canonical preset order; an unseen
// context reports (moderate, 0.5).
func (s *Store) BestExpected(strategy, regime string) (Preset, float64) {
	arms, ok := s.contexts[ContextKey{Strategy: strategy, Regime: regime}]
	if !ok {
		return PresetModerate, 0.5
	}

	best := presetOrder[0]
	bestEV := -1.0
	for _, p := range presetOrder {
		if ev := arms[p].ExpectedValue(); ev > bestEV {
			bestEV = ev
			best = p
		}
	}
	return best, bestEV
}

// TotalTrades returns the number of rewards recorded.
func (s *Store) TotalTrades() int { return s.totalTrades }

// TotalReward returns the cumulative reward recorded.
func (s *Store) TotalReward() float64 { return s.totalReward }

// AvgReward returns the mean reward per recorded trade, 0 when empty.
func (s *Store) AvgReward() float64 {
	if s.totalTrades == 0 {
		return 0
	}
	return s.totalReward / float64(s.totalTrades)
}

// ExplorationRate returns the configured gate bypass probability.
func (s *Store) ExplorationRate() float64 { return s.explorationRate }

// Rand exposes the injected RNG; callers share the engine lock.
func (s *Store) Rand() *rand.Rand { return s.rng }

// Distributions renders every context's arms with their expected values,
// keyed by the stable "strategy|regime" form, in sorted key order.
type ArmStats struct {
	Alpha         float64 `json:"alpha"`
	Beta          float64 `json:"beta"`
	ExpectedValue float64 `json:"expected_value"`
}

func (s *Store) Distributions() map[string]map[string]ArmStats {
	out := make(map[string]map[string]ArmStats, len(s.contexts))
	for key, arms := range s.contexts {
		ctx := make(map[string]ArmStats, len(arms))
		for _, p := range presetOrder {
			arm := arms[p]
			ctx[string(p)] = ArmStats{
				Alpha:         arm.Alpha,
				Beta:          arm.Beta,
				ExpectedValue: arm.ExpectedValue(),
			}
		}
		out[key.String()] = ctx
	}
	return out
}

// SortedContextKeys returns all context keys in deterministic order.
func (s *Store) SortedContextKeys() []ContextKey {
	keys := make([]ContextKey, 0, len(s.contexts))
	for k := range s.contexts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Strategy != keys[j].Strategy {
			return keys[i].Strategy < keys[j].Strategy
		}
		return keys[i].Regime < keys[j].Regime
	})
	return keys
}
