package learner

import (
	"fmt"

	"github.com/banditlabs/stratcore/internal/bandit"
)

// AdjustmentView is the display-oriented confidence adjustment handed to the
// signal layer and dashboards.
type AdjustmentView struct {
	Adjustment          float64 `json:"adjustment"`
	Reason              string  `json:"reason"`
	FavoredPreset       string  `json:"favored_preset"`
	PresetExpectedValue float64 `json:"preset_expected_value"`
}

// In-regime boost thresholds for the display recompute.
const (
	regimeBoostWinRate  = 0.60
	regimeReduceWinRate = 0.35
	regimeBoost         = 0.2
)

// StrategyConfidenceAdjustments re-derives the richer per-strategy view: the
// stored adjustment bumped by in-regime performance over the last 50 trades,
// annotated with overall performance over the strategy's last 30 trades and
// the bandit's favored preset. The boost is a plain additive bump; the final
// value is re-clamped to the adjustment bounds.
func (l *Learner) StrategyConfidenceAdjustments() map[string]AdjustmentView {
	currentRegime := l.CurrentRegime()
	out := make(map[string]AdjustmentView)

	for _, strategy := range l.Strategies() {
		adj := l.adjustments[strategy].Value
		reason := ""

		wins, total := l.RecentRegimePerformance(strategy, currentRegime, regimeWindow)
		if total >= MinTradesForAdjustment {
			winRate := float64(wins) / float64(total)
			if winRate > regimeBoostWinRate {
				adj += regimeBoost
				reason = fmt.Sprintf("strong in %s (%.0f%% over %d trades)", currentRegime, winRate*100, total)
			} else if winRate < regimeReduceWinRate {
				adj -= regimeBoost
				reason = fmt.Sprintf("weak in %s (%.0f%% over %d trades)", currentRegime, winRate*100, total)
			}
		}

		recent := l.lastTradesFor(strategy, overallWindow)
		if len(recent) > 0 {
			wins := 0
			for _, o := range recent {
				if o.Won {
					wins++
				}
			}
			overall := fmt.Sprintf("%.0f%% overall across last %d", float64(wins)/float64(len(recent))*100, len(recent))
			if reason == "" {
				reason = overall
			} else {
				reason += "; " + overall
			}
		}
		if reason == "" {
			reason = "no recent data"
		}

		preset, ev := l.bandit.BestExpected(strategy, currentRegime)
		reason += fmt.Sprintf("; bandit favors %s (EV %.2f)", preset, ev)

		out[strategy] = AdjustmentView{
			Adjustment:          clampAdjustment(adj),
			Reason:              reason,
			FavoredPreset:       string(preset),
			PresetExpectedValue: ev,
		}
	}
	return out
}

// RLStats is the read-only learning status consumed by dashboards.
type RLStats struct {
	Distributions         map[string]map[string]bandit.ArmStats `json:"distributions"`
	TotalTradesAnalyzed   int                                   `json:"total_trades_analyzed"`
	TotalReward           float64                               `json:"total_reward"`
	AvgReward             float64                               `json:"avg_reward"`
	ExplorationRate       float64                               `json:"exploration_rate"`
	ConfidenceAdjustments map[string]AdjustmentView             `json:"confidence_adjustments"`
}

// Stats assembles the RL status snapshot.
func (l *Learner) Stats() RLStats {
	return RLStats{
		Distributions:         l.bandit.Distributions(),
		TotalTradesAnalyzed:   l.bandit.TotalTrades(),
		TotalReward:           l.bandit.TotalReward(),
		AvgReward:             l.bandit.AvgReward(),
		ExplorationRate:       l.bandit.ExplorationRate(),
		ConfidenceAdjustments: l.StrategyConfidenceAdjustments(),
	}
}
