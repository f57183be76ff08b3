package query

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess   = "success"
	outcomeError     = "error"
	outcomeDiscarded = "discarded"
)

// Metrics is shared by every Cache of a process. A nil *Metrics records nothing.
type Metrics struct {
	dispatches  *prometheus.CounterVec
	settlements *prometheus.CounterVec
	subscribers *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// NewMetrics registers the query collectors on reg, or on the default
// registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fpdash_query_dispatches_total",
			Help: "Query functions started, per key.",
		}, []string{"key"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fpdash_query_settlements_total",
			Help: "Query results by key and outcome.",
		}, []string{"key", "outcome"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fpdash_query_subscribers",
			Help: "Active subscriptions per key.",
		}, []string{"key"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fpdash_query_duration_seconds",
			Help:    "Time from dispatch to settlement, retries included.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"key"}),
	}

	reg.MustRegister(m.dispatches, m.settlements, m.subscribers, m.latency)
	return m
}

func (m *Metrics) dispatched(key Key) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(string(key)).Inc()
}

func (m *Metrics) settled(key Key, outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(string(key), outcome).Inc()
}

func (m *Metrics) subscribed(key Key, delta float64) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(string(key)).Add(delta)
}

func (m *Metrics) observe(key Key, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(string(key)).Observe(d.Seconds())
}
