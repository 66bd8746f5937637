package gates

import (
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"

	"github.com/banditlabs/stratcore/internal/bandit"
	"github.com/banditlabs/stratcore/internal/domain"
	"github.com/banditlabs/stratcore/internal/learner"
	"github.com/banditlabs/stratcore/internal/patterns"
)

// Config holds the hard thresholds for the signal gate checks.
type Config struct {
	ExplorationRate       float64 `yaml:"exploration_rate"`         // probability of bypassing all checks
	MinTrades             int     `yaml:"min_trades"`               // minimum (strategy, regime) samples
	RegimeWindow          int     `yaml:"regime_window"`            // trades of history the regime check sees
	RegimeWinRateFloor    float64 `yaml:"regime_win_rate_floor"`    // override below this in-regime win rate
	LossStreakLimit       int     `yaml:"loss_streak_limit"`        // override at this losing run length
	ZoneWinRateFloor      float64 `yaml:"zone_win_rate_floor"`      // override at or below this zone win rate
	BanditEVFloor         float64 `yaml:"bandit_ev_floor"`          // override below this best expected value
	BanditMinRegimeTrades int     `yaml:"bandit_min_regime_trades"` // samples before the EV check bites
}

// DefaultConfig returns the production gate thresholds.
func DefaultConfig() Config {
	return Config{
		ExplorationRate:       0.10,
		MinTrades:             5,
		RegimeWindow:          50,
		RegimeWinRateFloor:    0.25,
		LossStreakLimit:       4,
		ZoneWinRateFloor:      0.15,
		BanditEVFloor:         0.25,
		BanditMinRegimeTrades: 10,
	}
}

// Check is the outcome of a single gate check.
type Check struct {
	Name        string  `json:"name"`
	Triggered   bool    `json:"triggered"`
	Value       float64 `json:"value"`
	Threshold   float64 `json:"threshold"`
	Description string  `json:"description"`
}

// Decision is a full gate evaluation: whether to suppress the signal, the
// first-match reason, and every check that ran.
type Decision struct {
	Override bool    `json:"override"`
	Reason   string  `json:"reason"`
	Checks   []Check `json:"checks"`
}

// Evaluator runs the ordered signal gate over current learner and bandit
// state. Evaluation has no side effects beyond one draw from the shared RNG;
// the owning engine serializes access.
type Evaluator struct {
	learner *learner.Learner
	bandit  *bandit.Store
	rng     *rand.Rand
	cfg     Config
}

// NewEvaluator wires the gate to its state sources.
func NewEvaluator(l *learner.Learner, b *bandit.Store, rng *rand.Rand, cfg Config) *Evaluator {
	return &Evaluator{learner: l, bandit: b, rng: rng, cfg: cfg}
}

// Evaluate runs the checks in order; the first match decides. The
// exploration draw deliberately comes before any data-based check so that
// exploration is never itself gated by poor history.
func (e *Evaluator) Evaluate(strategy, regime string, indicators domain.Indicators) Decision {
	d := Decision{}

	if draw := e.rng.Float64(); draw < e.cfg.ExplorationRate {
		d.Reason = "exploration"
		d.Checks = append(d.Checks, Check{
			Name: "exploration", Triggered: true,
			Value: draw, Threshold: e.cfg.ExplorationRate,
			Description: "exploration draw fired, signal passes unconditionally",
		})
		return d
	}

	wins, total := e.learner.RecentRegimePerformance(strategy, regime, e.cfg.RegimeWindow)
	if total < e.cfg.MinTrades {
		d.Reason = "insufficient data"
		d.Checks = append(d.Checks, Check{
			Name: "sample_size", Triggered: true,
			Value: float64(total), Threshold: float64(e.cfg.MinTrades),
			Description: fmt.Sprintf("%d of %d required trades for %s in %s", total, e.cfg.MinTrades, strategy, regime),
		})
		return d
	}

	winRate := float64(wins) / float64(total)
	regimeCheck := Check{
		Name:        "regime_performance",
		Value:       winRate,
		Threshold:   e.cfg.RegimeWinRateFloor,
		Description: fmt.Sprintf("%s wins %.0f%% of %d recent trades in %s", strategy, winRate*100, total, regime),
	}
	if winRate < e.cfg.RegimeWinRateFloor {
		regimeCheck.Triggered = true
		d.Checks = append(d.Checks, regimeCheck)
		return e.override(d, fmt.Sprintf("%s win rate %.0f%% in %s below %.0f%% floor",
			strategy, winRate*100, regime, e.cfg.RegimeWinRateFloor*100))
	}
	d.Checks = append(d.Checks, regimeCheck)

	// The streak check sees the whole history, not just this regime.
	streak := patterns.CurrentLossStreak(e.learner.History(), strategy)
	streakCheck := Check{
		Name:        "loss_streak",
		Value:       float64(streak),
		Threshold:   float64(e.cfg.LossStreakLimit),
		Description: fmt.Sprintf("%s current losing streak is %d", strategy, streak),
	}
	if streak >= e.cfg.LossStreakLimit {
		streakCheck.Triggered = true
		d.Checks = append(d.Checks, streakCheck)
		return e.override(d, fmt.Sprintf("%s is on a %d-trade losing streak", strategy, streak))
	}
	d.Checks = append(d.Checks, streakCheck)

	zone := domain.RSIZone(indicators.RSI)
	zoneBucket := e.learner.ZoneBucket(strategy, zone)
	zoneCheck := Check{
		Name:        "indicator_zone",
		Value:       zoneBucket.WinRate(),
		Threshold:   e.cfg.ZoneWinRateFloor,
		Description: fmt.Sprintf("%s wins %.0f%% of %d trades in the %s zone", strategy, zoneBucket.WinRate()*100, zoneBucket.Total(), zone),
	}
	if zoneBucket.Total() >= e.cfg.MinTrades && zoneBucket.WinRate() <= e.cfg.ZoneWinRateFloor {
		zoneCheck.Triggered = true
		d.Checks = append(d.Checks, zoneCheck)
		return e.override(d, fmt.Sprintf("%s wins only %.0f%% in the %s RSI zone",
			strategy, zoneBucket.WinRate()*100, zone))
	}
	d.Checks = append(d.Checks, zoneCheck)

	_, ev := e.bandit.BestExpected(strategy, regime)
	regimeTrades := e.learner.RegimeBucket(strategy, regime).Total()
	banditCheck := Check{
		Name:        "bandit_expectation",
		Value:       ev,
		Threshold:   e.cfg.BanditEVFloor,
		Description: fmt.Sprintf("best preset EV %.2f over %d trades in %s", ev, regimeTrades, regime),
	}
	if ev < e.cfg.BanditEVFloor && regimeTrades >= e.cfg.BanditMinRegimeTrades {
		banditCheck.Triggered = true
		d.Checks = append(d.Checks, banditCheck)
		return e.override(d, fmt.Sprintf("bandit expects %.0f%% success for %s in %s",
			ev*100, strategy, regime))
	}
	d.Checks = append(d.Checks, banditCheck)

	d.Reason = "approved"
	return d
}

func (e *Evaluator) override(d Decision, reason string) Decision {
	d.Override = true
	d.Reason = reason
	log.Info().Str("reason", reason).Msg("signal overridden")
	return d
}
