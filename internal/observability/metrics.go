package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	relayRunsTotal *prometheus.CounterVec
	relaysActive   prometheus.Gauge
	relayDuration  prometheus.Histogram

	turnTotal    *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
	tokensTotal  *prometheus.CounterVec
	costTotal    *prometheus.CounterVec

	requestsRejected *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			relayRunsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "circle_relay_runs_total",
					Help: "Total relay runs by outcome.",
				},
				[]string{"outcome"},
			),
			relaysActive: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "circle_relays_active",
					Help: "Relays currently producing events.",
				},
			),
			relayDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "circle_relay_duration_seconds",
					Help:    "Wall-clock relay duration in seconds.",
					Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
				},
			),
			turnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "circle_turns_total",
					Help: "Total agent turns by backend and status.",
				},
				[]string{"backend", "status"},
			),
			turnDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "circle_turn_duration_seconds",
					Help:    "Backend call latency in seconds by backend.",
					Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
				},
				[]string{"backend"},
			),
			tokensTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "circle_reply_tokens_total",
					Help: "Estimated reply tokens by backend.",
				},
				[]string{"backend"},
			),
			costTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "circle_reply_cost_dollars_total",
					Help: "Estimated reply cost in dollars by backend.",
				},
				[]string{"backend"},
			),
			requestsRejected: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "circle_requests_rejected_total",
					Help: "HTTP relay requests rejected before starting, by reason.",
				},
				[]string{"reason"},
			),
		}

		prometheus.MustRegister(
			m.relayRunsTotal,
			m.relaysActive,
			m.relayDuration,
			m.turnTotal,
			m.turnDuration,
			m.tokensTotal,
			m.costTotal,
			m.requestsRejected,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordRelayStart() {
	getMetrics().relaysActive.Inc()
}

// RecordRelayEnd closes a relay started with RecordRelayStart. outcome is
// "completed" or "cancelled".
func RecordRelayEnd(outcome string, duration time.Duration) {
	m := getMetrics()
	m.relaysActive.Dec()
	m.relayRunsTotal.WithLabelValues(outcome).Inc()
	m.relayDuration.Observe(duration.Seconds())
}

func RecordTurn(backend, status string, latency time.Duration, tokens int, cost float64) {
	m := getMetrics()
	m.turnTotal.WithLabelValues(backend, status).Inc()
	m.turnDuration.WithLabelValues(backend).Observe(latency.Seconds())
	if tokens > 0 {
		m.tokensTotal.WithLabelValues(backend).Add(float64(tokens))
		m.costTotal.WithLabelValues(backend).Add(cost)
	}
}

func RecordRejected(reason string) {
	getMetrics().requestsRejected.WithLabelValues(reason).Inc()
}
