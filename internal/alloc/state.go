package alloc

import "time"

// State is the serializable allocator snapshot.
type State struct {
	Enabled              bool               `json:"enabled"`
	TradesSinceRebalance int                `json:"trades_since_rebalance"`
	TotalRebalances      int                `json:"total_rebalances"`
	LastRebalance        time.Time          `json:"last_rebalance"`
	LastFitness          map[string]float64 `json:"last_fitness"`
	LastAllocations      map[string]float64 `json:"last_allocations"`
	Events               []RebalanceEvent   `json:"events"`
	SavedAt              time.Time          `json:"saved_at"`
}

// SnapshotState captures the allocator for persistence.
func (a *Allocator) SnapshotState() State {
	state := State{
		Enabled:              a.enabled,
		TradesSinceRebalance: a.tradesSinceRebalance,
		TotalRebalances:      a.totalRebalances,
		LastRebalance:        a.lastRebalance,
		LastFitness:          make(map[string]float64, len(a.lastFitness)),
		LastAllocations:      make(map[string]float64, len(a.lastAllocations)),
		Events:               append([]RebalanceEvent(nil), a.events...),
		SavedAt:              time.Now().UTC(),
	}
	for k, v := range a.lastFitness {
		state.LastFitness[k] = v
	}
	for k, v := range a.lastAllocations {
		state.LastAllocations[k] = v
	}
	return state
}

// RestoreState replaces the allocator contents from a snapshot, re-applying
// the event ring cap.
func (a *Allocator) RestoreState(state State) {
	a.enabled = state.Enabled
	a.tradesSinceRebalance = state.TradesSinceRebalance
	a.totalRebalances = state.TotalRebalances
	a.lastRebalance = state.LastRebalance

	a.lastFitness = make(map[string]float64, len(state.LastFitness))
	for k, v := range state.LastFitness {
		a.lastFitness[k] = v
	}
	a.lastAllocations = make(map[string]float64, len(state.LastAllocations))
	for k, v := range state.LastAllocations {
		a.lastAllocations[k] = v
	}

	a.events = append([]RebalanceEvent(nil), state.Events...)
	if len(a.events) > eventCap {
		a.events = a.events[len(a.events)-eventCap:]
	}
}
