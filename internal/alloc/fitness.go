package alloc

import (
	"math"

	"github.com/banditlabs/stratcore/internal/domain"
)

// Weights define how the five fitness components combine. They sum to 1.0.
type Weights struct {
	Level        float64 `yaml:"level" json:"level"`
	WinRate      float64 `yaml:"win_rate" json:"win_rate"`
	ProfitFactor float64 `yaml:"profit_factor" json:"profit_factor"`
	BanditEV     float64 `yaml:"bandit_ev" json:"bandit_ev"`
	Streak       float64 `yaml:"streak" json:"streak"`
}

// DefaultWeights is the production weighting.
var DefaultWeights = Weights{
	Level:        0.20,
	WinRate:      0.30,
	ProfitFactor: 0.20,
	BanditEV:     0.20,
	Streak:       0.10,
}

// Score is one strategy's composite fitness with its component breakdown.
type Score struct {
	Composite float64            `json:"composite"`
	Parts     map[string]float64 `json:"parts"`
}

// ComputeFitness scores one strategy from its externally supplied experience
// facts and the bandit's expected value for its recommended preset. Every
// component lands in [0,1] before weighting.
func ComputeFitness(facts domain.ExperienceFacts, banditEV float64, w Weights) Score {
	levelScore := clamp01(float64(facts.Level) / 10.0)
	winRateScore := clamp01(facts.WinRate)

	var profitFactorScore float64
	switch {
	case facts.Wins > 0 && facts.Losses > 0:
		profitFactorScore = math.Min(float64(facts.Wins)/float64(facts.Losses)/3.0, 1.0)
	case facts.Losses == 0 && facts.TotalProfit > 0:
		profitFactorScore = 0.7
	default:
		profitFactorScore = 0.3
	}

	rlScore := clamp01(banditEV)

	streakScore := 0.5
	switch facts.CurrentStreakType {
	case "win":
		streakScore = math.Min(0.5+0.1*float64(facts.CurrentStreak), 1.0)
	case "loss":
		streakScore = math.Max(0.5-0.1*float64(facts.CurrentStreak), 0.0)
	}

	composite := levelScore*w.Level +
		winRateScore*w.WinRate +
		profitFactorScore*w.ProfitFactor +
		rlScore*w.BanditEV +
		streakScore*w.Streak

	return Score{
		Composite: composite,
		Parts: map[string]float64{
			"level":         levelScore,
			"win_rate":      winRateScore,
			"profit_factor": profitFactorScore,
			"bandit_ev":     rlScore,
			"streak":        streakScore,
		},
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
