package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the decompile pipeline.
type Metrics struct {
	requests     *prometheus.CounterVec
	invocation   *prometheus.HistogramVec
	payloadBytes prometheus.Histogram
}

// NewMetrics creates the pipeline collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decompile_requests_total",
				Help: "Decompile pipeline runs by outcome.",
			},
			[]string{"outcome"},
		),
		invocation: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "decompile_invocation_duration_seconds",
				Help:    "Wall-clock duration of decompiler processes.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		payloadBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "decompile_payload_bytes",
				Help:    "Size of validated payloads handed to the decompiler.",
				Buckets: prometheus.ExponentialBuckets(64, 4, 9),
			},
		),
	}

	for _, c := range []prometheus.Collector{m.requests, m.invocation, m.payloadBytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeRequest(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeInvocation(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.invocation.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) observePayload(size int) {
	if m == nil {
		return
	}
	m.payloadBytes.Observe(float64(size))
}
