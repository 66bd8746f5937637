package learner

import (
	"fmt"
	"strings"

	"github.com/banditlabs/stratcore/internal/domain"
	"github.com/banditlabs/stratcore/internal/patterns"
)

// composeInsight builds the human-readable note for one trade from templates
// keyed on regime class and outcome, with a generic fallback, plus a streak
// suffix when the strategy is on a run of three or more.
func (l *Learner) composeInsight(o domain.TradeOutcome) string {
	text := insightTemplate(regimeClass(o.Regime), o.Won)
	if text == "" {
		if o.Profit >= 0 {
			text = fmt.Sprintf("$%.2f profit recorded", o.Profit)
		} else {
			text = fmt.Sprintf("$%.2f loss recorded", -o.Profit)
		}
	} else {
		amount := o.Profit
		if amount < 0 {
			amount = -amount
		}
		text = fmt.Sprintf(text, o.Strategy, amount)
	}

	if info, ok := patterns.DetectStreaks(l.history)[o.Strategy]; ok && info.CurrentStreak >= 3 {
		switch info.Type {
		case patterns.StreakLoss:
			text += fmt.Sprintf(" (warning: %d straight losses)", info.CurrentStreak)
		case patterns.StreakWin:
			text += fmt.Sprintf(" (hot streak: %d straight wins)", info.CurrentStreak)
		}
	}
	return text
}

func insightTemplate(class string, won bool) string {
	switch class {
	case "trending":
		if won {
			return "%s rode the trend for $%.2f"
		}
		return "%s fought the trend and gave back $%.2f"
	case "ranging":
		if won {
			return "%s picked the range edge well for $%.2f"
		}
		return "%s got chopped in the range for $%.2f"
	case "volatile":
		if won {
			return "%s handled the volatility for $%.2f"
		}
		return "%s was whipsawed for $%.2f"
	}
	return ""
}

// regimeClass collapses arbitrary regime labels into the three template
// families. Unmatched labels fall through to the generic message.
func regimeClass(regime string) string {
	r := strings.ToLower(regime)
	switch {
	case strings.Contains(r, "trend"):
		return "trending"
	case strings.Contains(r, "rang") || strings.Contains(r, "chop"):
		return "ranging"
	case strings.Contains(r, "vol"):
		return "volatile"
	}
	return ""
}
