package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the API's Prometheus collectors.
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	compiles    *prometheus.CounterVec
	storeEvents *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them to reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	var m Metrics

	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "funnel",
		Name:      "http_requests_total",
		Help:      "Total number of API requests by route and status code.",
	}, []string{"route", "code"})

	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "funnel",
		Name:      "http_request_duration_seconds",
		Help:      "Time spent serving API requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	m.compiles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "funnel",
		Name:      "compilations_total",
		Help:      "Filter and funnel group compilations by kind and outcome.",
	}, []string{"kind", "outcome"})

	m.storeEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "funnel",
		Name:      "store_events_total",
		Help:      "Persistence events observed on the store's event bus.",
	}, []string{"type"})

	reg.MustRegister(m.requests, m.duration, m.compiles, m.storeEvents)
	return &m
}

func (m *Metrics) compiled(kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.compiles.WithLabelValues(kind, outcome).Inc()
}
