package bandit

import "time"

// State is the serializable snapshot of the bandit store. Contexts are keyed
// by their stable "strategy|regime" form, arms by preset name.
type State struct {
	Contexts        map[string]map[string]Arm `json:"contexts"`
	TotalTrades     int                       `json:"total_trades_analyzed"`
	TotalReward     float64                   `json:"total_reward"`
	ExplorationRate float64                   `json:"exploration_rate"`
	SavedAt         time.Time                 `json:"saved_at"`
}

// SnapshotState captures the store for persistence.
func (s *Store) SnapshotState() State {
	contexts := make(map[string]map[string]Arm, len(s.contexts))
	for _, key := range s.SortedContextKeys() {
		arms := s.contexts[key]
		ctx := make(map[string]Arm, len(arms))
		for _, p := range presetOrder {
			ctx[string(p)] = *arms[p]
		}
		contexts[key.String()] = ctx
	}
	return State{
		Contexts:        contexts,
		TotalTrades:     s.totalTrades,
		TotalReward:     s.totalReward,
		ExplorationRate: s.explorationRate,
		SavedAt:         time.Now().UTC(),
	}
}

// RestoreState replaces the store contents from a snapshot. Serialized keys
// that do not split into strategy|regime, and presets outside the canonical
// three, are dropped rather than resurrected as phantom arms.
func (s *Store) RestoreState(state State) {
	s.contexts = make(map[ContextKey]map[Preset]*Arm, len(state.Contexts))
	for rawKey, rawArms := range state.Contexts {
		key, ok := parseContextKey(rawKey)
		if !ok {
			continue
		}
		arms := map[Preset]*Arm{
			PresetConservative: {Alpha: 1, Beta: 1},
			PresetModerate:     {Alpha: 2, Beta: 1},
			PresetAggressive:   {Alpha: 1, Beta: 1},
		}
		for _, p := range presetOrder {
			if arm, ok := rawArms[string(p)]; ok && arm.Alpha > 0 && arm.Beta > 0 {
				arms[p] = &Arm{Alpha: arm.Alpha, Beta: arm.Beta}
			}
		}
		s.contexts[key] = arms
	}
	s.totalTrades = state.TotalTrades
	s.totalReward = state.TotalReward
	if state.ExplorationRate > 0 {
		s.explorationRate = state.ExplorationRate
	}
}

func parseContextKey(raw string) (ContextKey, bool) {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '|' {
			return ContextKey{Strategy: raw[:i], Regime: raw[i+1:]}, i > 0 && i < len(raw)-1
		}
	}
	return ContextKey{}, false
}
