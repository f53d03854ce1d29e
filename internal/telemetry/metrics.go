package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ── Prometheus ───────────────────────────────────────────────

var (
	Admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gencore_admissions_total",
			Help: "Admission decisions by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gencore_stage_duration_seconds",
			Help:    "Wall time of each pipeline stage.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	AgentInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gencore_agent_invocations_total",
			Help: "Agent gateway calls by agent and status.",
		},
		[]string{"agent", "status"},
	)

	MarginAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gencore_margin_alerts_total",
			Help: "Profit margin breaches by severity.",
		},
		[]string{"severity"},
	)

	LedgerMargin = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gencore_ledger_margin",
		Help: "Current cumulative profit margin.",
	})

	SinkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gencore_sink_failures_total",
			Help: "Best-effort side effects that failed, by sink.",
		},
		[]string{"sink"},
	)

	Fallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gencore_fallback_total",
		Help: "Orchestrations served by the fallback path.",
	})
)

func init() {
	prometheus.MustRegister(
		Admissions,
		StageDuration,
		AgentInvocations,
		MarginAlerts,
		LedgerMargin,
		SinkFailures,
		Fallbacks,
	)
}
