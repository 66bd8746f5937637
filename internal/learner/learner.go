package learner

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/banditlabs/stratcore/internal/bandit"
	"github.com/banditlabs/stratcore/internal/domain"
	"github.com/banditlabs/stratcore/internal/patterns"
	"github.com/banditlabs/stratcore/internal/reward"
)

// Tunables for the confidence recompute. These mirror the values the host
// platform has been trading with and are deliberately not configurable.
const (
	HistoryCap             = 200
	InsightCap             = 100
	MinTradesForAdjustment = 5
	AdjustmentLookback     = 20
	regimeWindow           = 50
	overallWindow          = 30
	MaxAdjustment          = 0.3
)

// Bucket accumulates all-time win/loss/profit counts for one aggregate key.
type Bucket struct {
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	TotalProfit float64 `json:"total_profit"`
}

// Total returns the number of trades in the bucket.
func (b Bucket) Total() int { return b.Wins + b.Losses }

// WinRate returns wins over total, 0 when empty.
func (b Bucket) WinRate() float64 {
	if b.Total() == 0 {
		return 0
	}
	return float64(b.Wins) / float64(b.Total())
}

// Adjustment is the stored per-strategy confidence adjustment.
type Adjustment struct {
	Value         float64 `json:"value"`
	Reason        string  `json:"reason"`
	Preset        string  `json:"preset"`
	ExpectedValue float64 `json:"expected_value"`
}

// Insight is one entry of the capped human-readable trade log.
type Insight struct {
	Strategy  string    `json:"strategy"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// TradeReport is what AnalyzeTrade hands back to the caller per trade.
type TradeReport struct {
	Strategy        string  `json:"strategy"`
	Reward          float64 `json:"reward"`
	ChosenPreset    string  `json:"chosen_preset"`
	ConfidenceDelta float64 `json:"confidence_delta"`
	Insight         string  `json:"insight"`
}

// Learner is the confidence engine: it owns the capped trade history, the
// per-dimension aggregate tables, the insight log and the stored confidence
// adjustments, and drives the bandit store on every closed trade. It carries
// no lock of its own; the owning engine serializes access.
type Learner struct {
	history      []domain.TradeOutcome
	regimeStats  map[string]*Bucket // key strategy|regime
	sessionStats map[string]*Bucket // key strategy|session
	zoneStats    map[string]*Bucket // key strategy|zone
	insights     []Insight
	adjustments  map[string]Adjustment
	bandit       *bandit.Store
}

// New creates an empty learner bound to a bandit store.
func New(store *bandit.Store) *Learner {
	return &Learner{
		regimeStats:  make(map[string]*Bucket),
		sessionStats: make(map[string]*Bucket),
		zoneStats:    make(map[string]*Bucket),
		adjustments:  make(map[string]Adjustment),
		bandit:       store,
	}
}

// AnalyzeTrade runs the per-trade hot path: record the outcome, update the
// aggregate tables, reward the bandit preset it would have picked for this
// trade, recompute every strategy's confidence adjustment and log an insight.
func (l *Learner) AnalyzeTrade(o domain.TradeOutcome) TradeReport {
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now().UTC()
	}

	l.history = append(l.history, o)
	if len(l.history) > HistoryCap {
		l.history = l.history[len(l.history)-HistoryCap:]
	}

	l.bumpBucket(l.regimeStats, o.Strategy+"|"+o.Regime, o)
	l.bumpBucket(l.sessionStats, o.Strategy+"|"+o.Session, o)
	l.bumpBucket(l.zoneStats, o.Strategy+"|"+domain.RSIZone(o.Indicators.RSI), o)

	r := reward.ForTrade(o)
	l.bandit.RecordReward(r)

	// The preset sampled for this trade absorbs this trade's own outcome.
	preset := l.bandit.SelectPreset(o.Strategy, o.Regime)
	l.bandit.Update(o.Strategy, o.Regime, preset, r)

	l.recomputeAdjustments()

	insight := l.composeInsight(o)
	l.insights = append(l.insights, Insight{Strategy: o.Strategy, Text: insight, Timestamp: o.Timestamp})
	if len(l.insights) > InsightCap {
		l.insights = l.insights[len(l.insights)-InsightCap:]
	}

	adj := l.adjustments[o.Strategy]
	log.Debug().
		Str("strategy", o.Strategy).
		Str("regime", o.Regime).
		Str("preset", string(preset)).
		Float64("reward", r).
		Float64("adjustment", adj.Value).
		Msg("trade analyzed")

	return TradeReport{
		Strategy:        o.Strategy,
		Reward:          r,
		ChosenPreset:    string(preset),
		ConfidenceDelta: adj.Value,
		Insight:         insight,
	}
}

func (l *Learner) bumpBucket(table map[string]*Bucket, key string, o domain.TradeOutcome) {
	b, ok := table[key]
	if !ok {
		b = &Bucket{}
		table[key] = b
	}
	if o.Won {
		b.Wins++
	} else {
		b.Losses++
	}
	b.TotalProfit += o.Profit
}

// recomputeAdjustments rebuilds the stored adjustment for every strategy in
// the history. Strategies below the minimum sample size keep their previous
// value.
func (l *Learner) recomputeAdjustments() {
	currentRegime := l.CurrentRegime()
	streaks := patterns.DetectStreaks(l.history)

	for _, strategy := range l.Strategies() {
		recent := l.lastTradesFor(strategy, AdjustmentLookback)
		if len(recent) < MinTradesForAdjustment {
			continue
		}

		wins := 0
		for _, o := range recent {
			if o.Won {
				wins++
			}
		}
		winRate := float64(wins) / float64(len(recent))
		adj := (winRate - 0.5) * 0.4
		reason := fmt.Sprintf("%.0f%% win rate over last %d trades", winRate*100, len(recent))

		if info, ok := streaks[strategy]; ok && info.CurrentStreak >= 3 {
			step := math.Min(float64(info.CurrentStreak-2), 3)
			switch info.Type {
			case patterns.StreakLoss:
				adj -= 0.05 * step
				reason += fmt.Sprintf(", %d-trade losing streak", info.CurrentStreak)
			case patterns.StreakWin:
				adj += 0.02 * step
				reason += fmt.Sprintf(", %d-trade winning streak", info.CurrentStreak)
			}
		}

		preset, ev := l.bandit.BestExpected(strategy, currentRegime)
		adj += (ev - 0.5) * 0.2

		l.adjustments[strategy] = Adjustment{
			Value:         clampAdjustment(adj),
			Reason:        reason,
			Preset:        string(preset),
			ExpectedValue: ev,
		}
	}
}

// CurrentRegime is the regime label of the most recent trade, empty when the
// history is empty.
func (l *Learner) CurrentRegime() string {
	if len(l.history) == 0 {
		return ""
	}
	return l.history[len(l.history)-1].Regime
}

// Strategies returns every strategy present in the history, sorted.
func (l *Learner) Strategies() []string {
	seen := make(map[string]struct{})
	for _, o := range l.history {
		seen[o.Strategy] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// lastTradesFor returns up to n most recent trades for a strategy, oldest
// first.
func (l *Learner) lastTradesFor(strategy string, n int) []domain.TradeOutcome {
	var out []domain.TradeOutcome
	for i := len(l.history) - 1; i >= 0 && len(out) < n; i-- {
		if l.history[i].Strategy == strategy {
			out = append(out, l.history[i])
		}
	}
	// Reverse back to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// History exposes the trade history for read paths holding the engine lock.
func (l *Learner) History() []domain.TradeOutcome { return l.history }

// HistoryLen returns the number of retained trades.
func (l *Learner) HistoryLen() int { return len(l.history) }

// Insights returns the capped insight log, oldest first.
func (l *Learner) Insights() []Insight { return l.insights }

// AdjustmentFor returns the stored adjustment value for a strategy, 0 for an
// unknown one.
func (l *Learner) AdjustmentFor(strategy string) float64 {
	return l.adjustments[strategy].Value
}

// ZoneBucket returns the all-time stats for a strategy in an RSI zone.
func (l *Learner) ZoneBucket(strategy, zone string) Bucket {
	if b, ok := l.zoneStats[strategy+"|"+zone]; ok {
		return *b
	}
	return Bucket{}
}

// RegimeBucket returns the all-time stats for a strategy in a regime.
func (l *Learner) RegimeBucket(strategy, regime string) Bucket {
	if b, ok := l.regimeStats[strategy+"|"+regime]; ok {
		return *b
	}
	return Bucket{}
}

// RecentRegimePerformance counts a strategy's wins and trades in a regime
// over the last n trades of the whole history.
func (l *Learner) RecentRegimePerformance(strategy, regime string, n int) (wins, total int) {
	start := len(l.history) - n
	if start < 0 {
		start = 0
	}
	for _, o := range l.history[start:] {
		if o.Strategy != strategy || o.Regime != regime {
			continue
		}
		total++
		if o.Won {
			wins++
		}
	}
	return wins, total
}

func clampAdjustment(v float64) float64 {
	if v > MaxAdjustment {
		return MaxAdjustment
	}
	if v < -MaxAdjustment {
		return -MaxAdjustment
	}
	return v
}
