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
	ChatTurns        *prometheus.CounterVec
	BackendLatency   prometheus.Histogram
	SynthesisResults *prometheus.CounterVec
	SessionEvents    *prometheus.CounterVec
	AssetsSwept      prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ChatTurns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns by backend and outcome.",
		}, []string{"backend", "outcome"}),
		BackendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_latency_ms",
			Help:      "Model backend call latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		}),
		SynthesisResults: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_results_total",
			Help:      "Speech synthesis attempts by result.",
		}, []string{"result"}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		AssetsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_swept_total",
			Help:      "Expired audio assets removed by the sweeper.",
		}),
	}
}

func (m *Metrics) ObserveBackendLatency(d time.Duration) {
	m.BackendLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
