package domain

import "time"

// Indicators is the snapshot of indicator readings attached to a trade at
// close time. Absent readings stay at zero and are tolerated everywhere.
type Indicators struct {
	RSI float64 `json:"rsi"`
	ADX float64 `json:"adx"`
}

// RSI zone labels used by the per-zone aggregate tables and the signal gate.
const (
	ZoneOversold   = "oversold"
	ZoneOverbought = "overbought"
	ZoneNeutral    = "neutral"
)

// RSIZone buckets an RSI reading into oversold (<30), overbought (>70) or
// neutral. A missing reading (zero value) is treated as neutral rather than
// oversold so that trades without indicator data never skew the zone tables.
func RSIZone(rsi float64) string {
	switch {
	case rsi == 0:
		return ZoneNeutral
	case rsi < 30:
		return ZoneOversold
	case rsi > 70:
		return ZoneOverbought
	default:
		return ZoneNeutral
	}
}

// TradeOutcome is the immutable record appended once per closed trade. It is
// the single source of truth for every derived statistic in the core.
type TradeOutcome struct {
	Strategy     string     `json:"strategy"`
	Symbol       string     `json:"symbol"`
	Direction    string     `json:"direction"` // BUY or SELL
	Profit       float64    `json:"profit"`
	EntryPrice   float64    `json:"entry_price"`
	ExitPrice    float64    `json:"exit_price"`
	StopDistance float64    `json:"stop_distance"`
	DurationSec  float64    `json:"duration_sec"`
	Regime       string     `json:"regime"`
	Session      string     `json:"session"`
	Indicators   Indicators `json:"indicators"`
	Won          bool       `json:"won"`
	Timestamp    time.Time  `json:"timestamp"`
}

// ExperienceFacts are the per-strategy performance facts supplied by the
// external leveling collaborator. The core consumes them for fitness scoring
// and never computes them itself.
type ExperienceFacts struct {
	Level             int     `json:"level"` // 1..10
	WinRate           float64 `json:"win_rate"`
	TotalTrades       int     `json:"total_trades"`
	TotalProfit       float64 `json:"total_profit"`
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	CurrentStreak     int     `json:"current_streak"`
	CurrentStreakType string  `json:"current_streak_type"` // win, loss or none
}
