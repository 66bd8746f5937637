package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/banditlabs/stratcore/internal/alloc"
	"github.com/banditlabs/stratcore/internal/domain"
	"github.com/banditlabs/stratcore/internal/learner"
)

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("response encoding failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleHealth reports service liveness and basic counters.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"trades_analyzed": s.engine.Stats().TotalTradesAnalyzed,
	})
}

// handleRLStats returns the bandit distributions and learning counters.
func (s *Server) handleRLStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

// handleConfidence returns the per-strategy confidence adjustment view.
func (s *Server) handleConfidence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.StrategyConfidenceAdjustments())
}

// handleAllocations returns the last smoothed allocation split.
func (s *Server) handleAllocations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"allocations": s.engine.Allocations(),
	})
}

// handleRebalances returns the in-memory rebalance history.
func (s *Server) handleRebalances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rebalances": s.engine.Rebalances(),
	})
}

// handleInsights returns the human-readable trade log.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"insights": s.engine.Insights(),
	})
}

// handlePatterns returns the streak and bias summary.
func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Patterns())
}

// tradeRequest is the POST /api/v1/trades payload. Facts and current
// allocations are optional; when present the trade also advances the
// allocation cadence.
type tradeRequest struct {
	Trade              domain.TradeOutcome               `json:"trade"`
	Facts              map[string]domain.ExperienceFacts `json:"facts,omitempty"`
	CurrentAllocations map[string]float64                `json:"current_allocations,omitempty"`
}

type tradeResponse struct {
	Report    learner.TradeReport    `json:"report"`
	Rebalance *alloc.RebalanceResult `json:"rebalance,omitempty"`
}

// handleRecordTrade feeds one closed trade into the engine.
func (s *Server) handleRecordTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Trade.Strategy == "" {
		writeError(w, http.StatusBadRequest, "trade.strategy is required")
		return
	}

	var resp tradeResponse
	if len(req.Facts) > 0 {
		resp.Report, resp.Rebalance = s.engine.CompleteTrade(req.Trade, req.Facts, req.CurrentAllocations)
	} else {
		resp.Report = s.engine.RecordTrade(req.Trade)
	}
	writeJSON(w, http.StatusOK, resp)
}

// signalRequest is the POST /api/v1/signals/evaluate payload.
type signalRequest struct {
	Strategy   string            `json:"strategy"`
	Regime     string            `json:"regime"`
	Indicators domain.Indicators `json:"indicators"`
}

// handleEvaluateSignal runs the signal gate for a prospective entry.
func (s *Server) handleEvaluateSignal(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Strategy == "" || req.Regime == "" {
		writeError(w, http.StatusBadRequest, "strategy and regime are required")
		return
	}

	writeJSON(w, http.StatusOK, s.engine.EvaluateSignal(req.Strategy, req.Regime, req.Indicators))
}

// handleNotFound is the JSON 404 handler.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeError(w, http.StatusNotFound, "endpoint not found: "+r.URL.Path)
}
