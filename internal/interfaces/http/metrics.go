package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	io_prometheus_client "github.com/prometheus/client_model/go"
)

// MetricsRegistry holds all Prometheus metrics for the learning service. It
// implements the engine's Metrics interface.
type MetricsRegistry struct {
	registry *prometheus.Registry

	TradesTotal *prometheus.CounterVec
	RewardHist  prometheus.Histogram

	GateEvaluations     *prometheus.CounterVec
	ExplorationBypasses prometheus.Counter

	BanditEV *prometheus.GaugeVec

	RebalancesTotal prometheus.Counter
	AllocationPct   *prometheus.GaugeVec

	SnapshotSaves    prometheus.Counter
	SnapshotFailures prometheus.Counter

	HTTPRequests *prometheus.CounterVec
}

// NewMetricsRegistry creates a registry with all service metrics registered
// on its own Prometheus registry so instances stay independent.
func NewMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		registry: prometheus.NewRegistry(),

		TradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratcore_trades_analyzed_total",
				Help: "Total number of closed trades fed through the learner",
			},
			[]string{"strategy"},
		),

		RewardHist: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "stratcore_trade_reward",
				Help:    "Distribution of computed trade rewards",
				Buckets: []float64{-3, -2, -1, -0.5, -0.1, 0, 0.1, 0.5, 1, 2, 3, 5},
			},
		),

		GateEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratcore_gate_evaluations_total",
				Help: "Signal gate evaluations by outcome",
			},
			[]string{"outcome"},
		),

		ExplorationBypasses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stratcore_gate_exploration_bypasses_total",
				Help: "Gate approvals granted by the exploration draw",
			},
		),

		BanditEV: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stratcore_bandit_expected_value",
				Help: "Bandit expected value per context and preset",
			},
			[]string{"context", "preset"},
		),

		RebalancesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stratcore_rebalances_total",
				Help: "Total number of completed allocation rebalances",
			},
		),

		AllocationPct: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stratcore_allocation_pct",
				Help: "Current capital allocation percentage per strategy",
			},
			[]string{"strategy"},
		),

		SnapshotSaves: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stratcore_snapshot_saves_total",
				Help: "Successful state snapshot writes",
			},
		),

		SnapshotFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stratcore_snapshot_failures_total",
				Help: "Failed state snapshot writes",
			},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratcore_http_requests_total",
				Help: "HTTP requests by method, path and status",
			},
			[]string{"method", "path", "status"},
		),
	}

	m.registry.MustRegister(
		m.TradesTotal,
		m.RewardHist,
		m.GateEvaluations,
		m.ExplorationBypasses,
		m.BanditEV,
		m.RebalancesTotal,
		m.AllocationPct,
		m.SnapshotSaves,
		m.SnapshotFailures,
		m.HTTPRequests,
	)

	return m
}

// ObserveTrade records one analyzed trade and its reward.
func (m *MetricsRegistry) ObserveTrade(strategy string, reward float64) {
	m.TradesTotal.WithLabelValues(strategy).Inc()
	m.RewardHist.Observe(reward)
}

// ObserveGate records one gate evaluation outcome.
func (m *MetricsRegistry) ObserveGate(triggered bool, reason string) {
	outcome := "approved"
	if triggered {
		outcome = "overridden"
	}
	m.GateEvaluations.WithLabelValues(outcome).Inc()
	if reason == "exploration" {
		m.ExplorationBypasses.Inc()
	}
}

// ObserveBanditEV updates the expected-value gauge for one arm.
func (m *MetricsRegistry) ObserveBanditEV(contextKey, preset string, ev float64) {
	m.BanditEV.WithLabelValues(contextKey, preset).Set(ev)
}

// ObserveRebalance records a completed rebalance and the new split.
func (m *MetricsRegistry) ObserveRebalance(number int, allocations map[string]float64) {
	m.RebalancesTotal.Inc()
	for strategy, pct := range allocations {
		m.AllocationPct.WithLabelValues(strategy).Set(pct)
	}
}

// ObserveSnapshot records one snapshot write attempt.
func (m *MetricsRegistry) ObserveSnapshot(err error) {
	if err != nil {
		m.SnapshotFailures.Inc()
		return
	}
	m.SnapshotSaves.Inc()
}

// RecordHTTPRequest counts one served request.
func (m *MetricsRegistry) RecordHTTPRequest(method, path, status string) {
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
}

// SnapshotFailureRate reads the snapshot counters back and returns the
// failure fraction, 0 when nothing has been written yet.
func (m *MetricsRegistry) SnapshotFailureRate() float64 {
	saves := &io_prometheus_client.Metric{}
	failures := &io_prometheus_client.Metric{}

	ok, failed := 0.0, 0.0
	if err := m.SnapshotSaves.Write(saves); err == nil {
		ok = saves.GetCounter().GetValue()
	}
	if err := m.SnapshotFailures.Write(failures); err == nil {
		failed = failures.GetCounter().GetValue()
	}

	total := ok + failed
	if total == 0 {
		return 0
	}
	return failed / total
}

// MetricsHandler returns the HTTP handler for the /metrics endpoint.
func (m *MetricsRegistry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
