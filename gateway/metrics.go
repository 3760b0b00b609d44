package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK        = "ok"
	outcomeAppError  = "app_error"
	outcomeTransport = "transport_error"
	outcomeAuth      = "unauthorized"
)

// Metrics are optional; a nil *Metrics records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	refreshes *prometheus.CounterVec
	replays   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "console",
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Backend calls by method and outcome.",
		}, []string{"method", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "console",
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Backend call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "console",
			Subsystem: "gateway",
			Name:      "token_refreshes_total",
			Help:      "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "console",
			Subsystem: "gateway",
			Name:      "replays_total",
			Help:      "Requests resubmitted after a token refresh.",
		}),
	}
	reg.MustRegister(m.requests, m.latency, m.refreshes, m.replays)
	return m
}

func (m *Metrics) observe(method, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(time.Since(started).Seconds())
}

func (m *Metrics) refreshed(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) replayed() {
	if m == nil {
		return
	}
	m.replays.Inc()
}
