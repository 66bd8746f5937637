package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banditlabs/stratcore/internal/domain"
)

func TestComputeFitnessComponents(t *testing.T) {
	facts := domain.ExperienceFacts{
		Level:             5,
		WinRate:           0.6,
		Wins:              30,
		Losses:            20,
		TotalProfit:       500,
		CurrentStreak:     2,
		CurrentStreakType: "win",
	}

	score := ComputeFitness(facts, 0.55, DefaultWeights)

	assert.InDelta(t, 0.5, score.Parts["level"], 1e-9)
	assert.InDelta(t, 0.6, score.Parts["win_rate"], 1e-9)
	assert.InDelta(t, 0.5, score.Parts["profit_factor"], 1e-9, "(30/20)/3")
	assert.InDelta(t, 0.55, score.Parts["bandit_ev"], 1e-9)
	assert.InDelta(t, 0.7, score.Parts["streak"], 1e-9)

	want := 0.5*0.20 + 0.6*0.30 + 0.5*0.20 + 0.55*0.20 + 0.7*0.10
	assert.InDelta(t, want, score.Composite, 1e-9)
}

func TestComputeFitnessProfitFactorBranches(t *testing.T) {
	tests := []struct {
		name  string
		facts domain.ExperienceFacts
		want  float64
	}{
		{"wins and losses", domain.ExperienceFacts{Wins: 9, Losses: 3}, 1.0},
		{"profitable no losses", domain.ExperienceFacts{Wins: 4, TotalProfit: 100}, 0.7},
		{"unprofitable no losses", domain.ExperienceFacts{Wins: 0, TotalProfit: -10}, 0.3},
		{"no trades at all", domain.ExperienceFacts{}, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := ComputeFitness(tt.facts, 0.5, DefaultWeights)
			assert.InDelta(t, tt.want, score.Parts["profit_factor"], 1e-9)
		})
	}
}

func TestComputeFitnessStreakBounds(t *testing.T) {
	long := domain.ExperienceFacts{CurrentStreak: 9, CurrentStreakType: "win"}
	assert.InDelta(t, 1.0, ComputeFitness(long, 0.5, DefaultWeights).Parts["streak"], 1e-9)

	cold := domain.ExperienceFacts{CurrentStreak: 9, CurrentStreakType: "loss"}
	assert.InDelta(t, 0.0, ComputeFitness(cold, 0.5, DefaultWeights).Parts["streak"], 1e-9)

	none := domain.ExperienceFacts{CurrentStreakType: "none"}
	assert.InDelta(t, 0.5, ComputeFitness(none, 0.5, DefaultWeights).Parts["streak"], 1e-9)
}

func TestComputeFitnessClampsEV(t *testing.T) {
	score := ComputeFitness(domain.ExperienceFacts{Level: 20, WinRate: 1.4}, 1.7, DefaultWeights)
	assert.InDelta(t, 1.0, score.Parts["level"], 1e-9)
	assert.InDelta(t, 1.0, score.Parts["win_rate"], 1e-9)
	assert.InDelta(t, 1.0, score.Parts["bandit_ev"], 1e-9)
	assert.LessOrEqual(t, score.Composite, 1.0)
	assert.GreaterOrEqual(t, score.Composite, 0.0)
}
