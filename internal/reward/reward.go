package reward

import (
	"math"

	"github.com/banditlabs/stratcore/internal/domain"
)

// Bonus and penalty terms applied on top of the R-multiple.
const (
	WinBonus      = 0.2
	LossPenalty   = -0.1
	TimeBonus     = 0.1
	FastTradeSecs = 1800.0
)

// Compute converts raw trade economics into the scalar reward fed to the
// bandit: R-multiple (profit over stop distance) plus a win bonus or loss
// penalty plus a bonus for trades closed inside 30 minutes. Rounded to four
// decimal places.
func Compute(profit, stopDistance, durationSec float64) float64 {
	r := 0.0
	if stopDistance > 0 {
		r = profit / stopDistance
	}

	if profit > 0 {
		r += WinBonus
	} else {
		r += LossPenalty
	}

	if durationSec < FastTradeSecs {
		r += TimeBonus
	}

	return math.Round(r*10000) / 10000
}

// ForTrade computes the reward for a closed trade record.
func ForTrade(o domain.TradeOutcome) float64 {
	return Compute(o.Profit, o.StopDistance, o.DurationSec)
}
