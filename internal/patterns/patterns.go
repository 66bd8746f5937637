package patterns

import (
	"fmt"
	"sort"

	"github.com/banditlabs/stratcore/internal/domain"
)

// Streak type labels.
const (
	StreakWin  = "win"
	StreakLoss = "loss"
	StreakNone = "none"
)

// minBucketTrades is the minimum sample size before a bias bucket is worth
// reporting on.
const minBucketTrades = 5

// Bias thresholds: buckets at or above/below these win rates get a sentence.
const (
	excelsWinRate    = 0.65
	strugglesWinRate = 0.35
)

// StreakInfo describes a strategy's current and historical best runs.
type StreakInfo struct {
	CurrentStreak int    `json:"current_streak"`
	Type          string `json:"type"` // win, loss or none
	MaxWinStreak  int    `json:"max_win_streak"`
	MaxLossStreak int    `json:"max_loss_streak"`
}

// DetectStreaks scans each strategy's outcomes in chronological order. The
// current streak is the longest suffix of identical outcomes; maxima use a
// running counter that resets whenever the run breaks.
func DetectStreaks(history []domain.TradeOutcome) map[string]StreakInfo {
	byStrategy := make(map[string][]bool)
	for _, o := range history {
		byStrategy[o.Strategy] = append(byStrategy[o.Strategy], o.Won)
	}

	out := make(map[string]StreakInfo, len(byStrategy))
	for strategy, wins := range byStrategy {
		info := StreakInfo{Type: StreakNone}

		run := 0
		runWon := false
		for _, won := range wins {
			if run == 0 || won == runWon {
				run++
			} else {
				run = 1
			}
			runWon = won

			if won && run > info.MaxWinStreak {
				info.MaxWinStreak = run
			}
			if !won && run > info.MaxLossStreak {
				info.MaxLossStreak = run
			}
		}

		if run > 0 {
			info.CurrentStreak = run
			if runWon {
				info.Type = StreakWin
			} else {
				info.Type = StreakLoss
			}
		}
		out[strategy] = info
	}
	return out
}

// CurrentLossStreak returns the length of a strategy's active losing run, 0
// when it is not on one.
func CurrentLossStreak(history []domain.TradeOutcome, strategy string) int {
	info, ok := DetectStreaks(history)[strategy]
	if !ok || info.Type != StreakLoss {
		return 0
	}
	return info.CurrentStreak
}

// bucket accumulates win/loss counts for one (strategy, label) pair.
type bucket struct {
	wins   int
	losses int
}

func (b bucket) total() int { return b.wins + b.losses }

func (b bucket) winRate() float64 {
	if b.total() == 0 {
		return 0
	}
	return float64(b.wins) / float64(b.total())
}

type bucketKey struct {
	strategy string
	label    string
}

// RegimeBias emits a sentence per (strategy, regime) bucket with at least
// five trades whose win rate marks it as a clear strength or weakness.
func RegimeBias(history []domain.TradeOutcome) []string {
	return biasSentences(history, "regime", func(o domain.TradeOutcome) string { return o.Regime })
}

// SessionBias is RegimeBias bucketed by trading session.
func SessionBias(history []domain.TradeOutcome) []string {
	return biasSentences(history, "session", func(o domain.TradeOutcome) string { return o.Session })
}

// ZoneBias is RegimeBias bucketed by the RSI zone at trade close.
func ZoneBias(history []domain.TradeOutcome) []string {
	return biasSentences(history, "RSI zone", func(o domain.TradeOutcome) string {
		return domain.RSIZone(o.Indicators.RSI)
	})
}

func biasSentences(history []domain.TradeOutcome, dimension string, labelOf func(domain.TradeOutcome) string) []string {
	buckets := make(map[bucketKey]*bucket)
	for _, o := range history {
		label := labelOf(o)
		if label == "" {
			continue
		}
		key := bucketKey{strategy: o.Strategy, label: label}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		if o.Won {
			b.wins++
		} else {
			b.losses++
		}
	}

	keys := make([]bucketKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].strategy != keys[j].strategy {
			return keys[i].strategy < keys[j].strategy
		}
		return keys[i].label < keys[j].label
	})

	var sentences []string
	for _, k := range keys {
		b := buckets[k]
		if b.total() < minBucketTrades {
			continue
		}
		rate := b.winRate()
		switch {
		case rate >= excelsWinRate:
			sentences = append(sentences, fmt.Sprintf(
				"%s excels in %s %s: %.0f%% win rate over %d trades",
				k.strategy, k.label, dimension, rate*100, b.total()))
		case rate <= strugglesWinRate:
			sentences = append(sentences, fmt.Sprintf(
				"%s struggles in %s %s: %.0f%% win rate over %d trades",
				k.strategy, k.label, dimension, rate*100, b.total()))
		}
	}
	return sentences
}
