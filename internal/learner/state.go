package learner

import (
	"time"

	"github.com/banditlabs/stratcore/internal/domain"
)

// State is the serializable learner snapshot.
type State struct {
	History      []domain.TradeOutcome `json:"history"`
	RegimeStats  map[string]Bucket     `json:"regime_stats"`
	SessionStats map[string]Bucket     `json:"session_stats"`
	ZoneStats    map[string]Bucket     `json:"zone_stats"`
	Insights     []Insight             `json:"insights"`
	Adjustments  map[string]Adjustment `json:"adjustments"`
	SavedAt      time.Time             `json:"saved_at"`
}

// SnapshotState captures the learner for persistence.
func (l *Learner) SnapshotState() State {
	state := State{
		History:      append([]domain.TradeOutcome(nil), l.history...),
		RegimeStats:  copyBuckets(l.regimeStats),
		SessionStats: copyBuckets(l.sessionStats),
		ZoneStats:    copyBuckets(l.zoneStats),
		Insights:     append([]Insight(nil), l.insights...),
		Adjustments:  make(map[string]Adjustment, len(l.adjustments)),
		SavedAt:      time.Now().UTC(),
	}
	for k, v := range l.adjustments {
		state.Adjustments[k] = v
	}
	return state
}

// RestoreState replaces the learner contents from a snapshot, re-applying
// the history and insight caps in case the snapshot predates them.
func (l *Learner) RestoreState(state State) {
	l.history = append([]domain.TradeOutcome(nil), state.History...)
	if len(l.history) > HistoryCap {
		l.history = l.history[len(l.history)-HistoryCap:]
	}
	l.insights = append([]Insight(nil), state.Insights...)
	if len(l.insights) > InsightCap {
		l.insights = l.insights[len(l.insights)-InsightCap:]
	}

	l.regimeStats = restoreBuckets(state.RegimeStats)
	l.sessionStats = restoreBuckets(state.SessionStats)
	l.zoneStats = restoreBuckets(state.ZoneStats)

	l.adjustments = make(map[string]Adjustment, len(state.Adjustments))
	for k, v := range state.Adjustments {
		v.Value = clampAdjustment(v.Value)
		l.adjustments[k] = v
	}
}

func copyBuckets(table map[string]*Bucket) map[string]Bucket {
	out := make(map[string]Bucket, len(table))
	for k, v := range table {
		out[k] = *v
	}
	return out
}

func restoreBuckets(table map[string]Bucket) map[string]*Bucket {
	out := make(map[string]*Bucket, len(table))
	for k, v := range table {
		b := v
		out[k] = &b
	}
	return out
}
