// Package metrics exposes Prometheus instruments for the sync layer.
//
// Every component takes a *Metrics; a nil *Metrics is valid and records
// nothing, so tests and one-shot CLI commands can skip wiring.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kiosksync"

// Metrics holds the instruments on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	RemoteCalls         *prometheus.CounterVec
	Fallbacks           *prometheus.CounterVec
	OverlayEntries      prometheus.Gauge
	OpportunisticClears prometheus.Counter
	StorageFailures     prometheus.Counter
	BroadcastMessages   *prometheus.CounterVec
	Invalidations       *prometheus.CounterVec
}

// New registers every instrument on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		RemoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Remote store adapter calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_fallbacks_total",
			Help:      "Mutations absorbed locally after a failed remote write, by failure kind.",
		}, []string{"op", "kind"}),
		OverlayEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overlay_entries",
			Help:      "Orders currently overridden by a local overlay entry.",
		}),
		OpportunisticClears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overlay_opportunistic_clears_total",
			Help:      "Overlay entries cleared because the remote record caught up.",
		}),
		StorageFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overlay_storage_failures_total",
			Help:      "Overlay persists that failed and left the session memory-only.",
		}),
		BroadcastMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_messages_total",
			Help:      "Cross-context overlay snapshots by direction.",
		}, []string{"direction"}),
		Invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidations_total",
			Help:      "Re-read signals by source.",
		}, []string{"source"}),
	}
	reg.MustRegister(
		m.RemoteCalls,
		m.Fallbacks,
		m.OverlayEntries,
		m.OpportunisticClears,
		m.StorageFailures,
		m.BroadcastMessages,
		m.Invalidations,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RemoteCall counts one adapter call.
func (m *Metrics) RemoteCall(op, outcome string) {
	if m == nil {
		return
	}
	m.RemoteCalls.WithLabelValues(op, outcome).Inc()
}

// Fallback counts one absorbed remote failure.
func (m *Metrics) Fallback(op, kind string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(op, kind).Inc()
}

// SetOverlayEntries records the overlay size.
func (m *Metrics) SetOverlayEntries(n int) {
	if m == nil {
		return
	}
	m.OverlayEntries.Set(float64(n))
}

// OpportunisticClear counts one read-time overlay clear.
func (m *Metrics) OpportunisticClear() {
	if m == nil {
		return
	}
	m.OpportunisticClears.Inc()
}

// StorageFailure counts one failed overlay persist.
func (m *Metrics) StorageFailure() {
	if m == nil {
		return
	}
	m.StorageFailures.Inc()
}

// Broadcast counts one snapshot sent or received.
func (m *Metrics) Broadcast(direction string) {
	if m == nil {
		return
	}
	m.BroadcastMessages.WithLabelValues(direction).Inc()
}

// Invalidation counts one re-read signal.
func (m *Metrics) Invalidation(source string) {
	if m == nil {
		return
	}
	m.Invalidations.WithLabelValues(source).Inc()
}
