package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banditlabs/stratcore/internal/domain"
)

func trades(strategy string, outcomes ...bool) []domain.TradeOutcome {
	out := make([]domain.TradeOutcome, 0, len(outcomes))
	for _, won := range outcomes {
		out = append(out, domain.TradeOutcome{Strategy: strategy, Won: won})
	}
	return out
}

func TestDetectStreaks(t *testing.T) {
	// W W L L L W W W W: current streak is the 4-win suffix.
	history := trades("trend", true, true, false, false, false, true, true, true, true)

	info := DetectStreaks(history)["trend"]
	assert.Equal(t, 4, info.CurrentStreak)
	assert.Equal(t, StreakWin, info.Type)
	assert.Equal(t, 4, info.MaxWinStreak)
	assert.Equal(t, 3, info.MaxLossStreak)
}

func TestDetectStreaksEmpty(t *testing.T) {
	assert.Empty(t, DetectStreaks(nil))
}

func TestDetectStreaksPerStrategy(t *testing.T) {
	history := append(trades("a", false, false), trades("b", true)...)

	streaks := DetectStreaks(history)
	require.Len(t, streaks, 2)
	assert.Equal(t, StreakLoss, streaks["a"].Type)
	assert.Equal(t, 2, streaks["a"].CurrentStreak)
	assert.Equal(t, StreakWin, streaks["b"].Type)
}

func TestCurrentLossStreak(t *testing.T) {
	history := trades("trend", true, false, false, false)
	assert.Equal(t, 3, CurrentLossStreak(history, "trend"))
	assert.Equal(t, 0, CurrentLossStreak(history, "unknown"))

	winning := trades("trend", false, true)
	assert.Equal(t, 0, CurrentLossStreak(winning, "trend"))
}

func TestRegimeBias(t *testing.T) {
	var history []domain.TradeOutcome
	// 5/6 wins trending, 1/5 wins ranging, too few volatile.
	for i := 0; i < 6; i++ {
		history = append(history, domain.TradeOutcome{Strategy: "trend", Regime: "TRENDING_UP", Won: i != 0})
	}
	for i := 0; i < 5; i++ {
		history = append(history, domain.TradeOutcome{Strategy: "trend", Regime: "RANGING", Won: i == 0})
	}
	history = append(history, domain.TradeOutcome{Strategy: "trend", Regime: "VOLATILE", Won: false})

	sentences := RegimeBias(history)
	require.Len(t, sentences, 2)
	assert.Contains(t, sentences[0], "struggles in RANGING regime")
	assert.Contains(t, sentences[1], "excels in TRENDING_UP regime")
}

func TestSessionBiasSkipsBlankLabels(t *testing.T) {
	var history []domain.TradeOutcome
	for i := 0; i < 10; i++ {
		history = append(history, domain.TradeOutcome{Strategy: "trend", Session: "", Won: true})
	}
	assert.Empty(t, SessionBias(history))
}

func TestZoneBias(t *testing.T) {
	var history []domain.TradeOutcome
	for i := 0; i < 5; i++ {
		history = append(history, domain.TradeOutcome{
			Strategy:   "mean_rev",
			Indicators: domain.Indicators{RSI: 25},
			Won:        true,
		})
	}

	sentences := ZoneBias(history)
	require.Len(t, sentences, 1)
	assert.Contains(t, sentences[0], "excels in oversold RSI zone")
}

func TestBiasMidRangeIsSilent(t *testing.T) {
	var history []domain.TradeOutcome
	// 50% win rate: neither excels nor struggles.
	for i := 0; i < 10; i++ {
		history = append(history, domain.TradeOutcome{Strategy: "trend", Regime: "RANGING", Won: i%2 == 0})
	}
	assert.Empty(t, RegimeBias(history))
}
