package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RelayMetrics groups the relay service's Prometheus instruments.
type RelayMetrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration prometheus.Histogram
}

// NewRelayMetrics registers the relay instruments under the given
// namespace.
func NewRelayMetrics(namespace string) *RelayMetrics {
	return &RelayMetrics{
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcribe_requests_total",
			Help:      "Transcription requests by outcome.",
		}, []string{"outcome"}),
		RequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcribe_duration_seconds",
			Help:      "End-to-end transcription request duration in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
	}
}

// ObserveRequest records one finished request.
func (m *RelayMetrics) ObserveRequest(outcome string, d time.Duration) {
	m.Requests.WithLabelValues(outcome).Inc()
	m.RequestDuration.Observe(d.Seconds())
}

// GatewayMetrics groups the interaction gateway's instruments.
type GatewayMetrics struct {
	ActiveSessions prometheus.Gauge
	Gestures       *prometheus.CounterVec
	Intents        *prometheus.CounterVec
}

// NewGatewayMetrics registers the gateway instruments under the given
// namespace.
func NewGatewayMetrics(namespace string) *GatewayMetrics {
	return &GatewayMetrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of connected device sessions.",
		}),
		Gestures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gestures_total",
			Help:      "Classified gestures by type.",
		}, []string{"type"}),
		Intents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Dispatched intents by kind.",
		}, []string{"kind"}),
	}
}

// Handler exposes the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
