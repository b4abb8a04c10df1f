package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions    prometheus.Gauge
	SessionEvents     *prometheus.CounterVec
	PipelineRuns      *prometheus.CounterVec
	AgentFailures     *prometheus.CounterVec
	AgentTokens       *prometheus.CounterVec
	AgentDuration     *prometheus.HistogramVec
	PrivacyViolations *prometheus.CounterVec
	MemoriesStored    prometheus.Counter

	// AgentWindow keeps a bounded in-process series of per-agent execution
	// times for the stats endpoint, separate from the Prometheus histograms.
	AgentWindow *AgentWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active chat sessions.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		PipelineRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by privacy mode and outcome.",
		}, []string{"mode", "outcome"}),
		AgentFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_failures_total",
			Help:      "Agent step failures by agent and error code.",
		}, []string{"agent", "code"}),
		AgentTokens: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_tokens_total",
			Help:      "Completion tokens consumed by agent.",
		}, []string{"agent"}),
		AgentDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_duration_ms",
			Help:      "Agent step execution time in milliseconds.",
			Buckets:   []float64{5, 20, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}, []string{"agent"}),
		PrivacyViolations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "privacy_violations_total",
			Help:      "Detected PII violations by category and severity.",
		}, []string{"category", "severity"}),
		MemoriesStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_stored_total",
			Help:      "Memory records persisted by the extractor.",
		}),
		AgentWindow: NewAgentWindow(256),
	}
}

// ObserveAgent records one step execution in both the Prometheus histogram
// and the in-process window.
func (m *Metrics) ObserveAgent(agent string, d time.Duration, tokens int) {
	ms := float64(d.Microseconds()) / 1000
	m.AgentDuration.WithLabelValues(agent).Observe(ms)
	if tokens > 0 {
		m.AgentTokens.WithLabelValues(agent).Add(float64(tokens))
	}
	m.AgentWindow.Observe(agent, ms)
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
