// Package metrics exposes Prometheus collectors for lead delivery.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	submissions     *prometheus.CounterVec
	dispatchLatency prometheus.Histogram
	queueDepth      prometheus.Gauge
	drains          *prometheus.CounterVec
	online          prometheus.Gauge
	captures        *prometheus.CounterVec
}

// New creates collectors registered on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadscan",
			Name:      "submissions_total",
			Help:      "Lead dispatch attempts by outcome and failure reason.",
		}, []string{"outcome", "reason"}),
		dispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "leadscan",
			Name:      "dispatch_seconds",
			Help:      "Latency of dispatched sink requests.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "leadscan",
			Name:      "pending_leads",
			Help:      "Leads waiting in the offline queue.",
		}),
		drains: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadscan",
			Name:      "drains_total",
			Help:      "Queue drain requests by result (ran, skipped, shared).",
		}, []string{"result"}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "leadscan",
			Name:      "online",
			Help:      "1 when the sink is reachable.",
		}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadscan",
			Name:      "captures_total",
			Help:      "Capture flows by terminal state (submitted, cancelled, invalid).",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.submissions, m.dispatchLatency, m.queueDepth, m.drains, m.online, m.captures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSubmit records a dispatch attempt.
func (m *Metrics) ObserveSubmit(outcome, reason string, latency time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome, reason).Inc()
	if latency > 0 {
		m.dispatchLatency.Observe(latency.Seconds())
	}
}

// SetQueueDepth records the pending queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// ObserveDrain records a drain request.
func (m *Metrics) ObserveDrain(result string) {
	if m == nil {
		return
	}
	m.drains.WithLabelValues(result).Inc()
}

// SetOnline records reachability.
func (m *Metrics) SetOnline(online bool) {
	if m == nil {
		return
	}
	if online {
		m.online.Set(1)
		return
	}
	m.online.Set(0)
}

// ObserveCapture records how a capture flow ended.
func (m *Metrics) ObserveCapture(result string) {
	if m == nil {
		return
	}
	m.captures.WithLabelValues(result).Inc()
}
