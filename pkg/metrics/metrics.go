// Package metrics defines the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the engine's collectors over one registry so tests can
// instantiate isolated sets.
type Metrics struct {
	registry *prometheus.Registry

	// ClaimsTotal counts successful ticket claims by agent role.
	ClaimsTotal *prometheus.CounterVec

	// ReclaimsTotal counts tickets the reaper returned to their queues.
	ReclaimsTotal prometheus.Counter

	// VerificationsTotal counts verifier attempts by outcome
	// (passed, failed, error).
	VerificationsTotal *prometheus.CounterVec

	// MergesTotal counts sentinel squash merges.
	MergesTotal prometheus.Counter

	// UnblocksTotal counts cascade promotions from blocked to ready.
	UnblocksTotal prometheus.Counter

	// TicketsInFlight tracks tickets this replica currently owns.
	TicketsInFlight prometheus.Gauge

	// TaskDuration observes wall time per ticket task by kind and outcome.
	TaskDuration *prometheus.HistogramVec
}

// New creates a Metrics set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ClaimsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "ticket_claims_total",
			Help:      "Tickets claimed by this replica, by agent role.",
		}, []string{"role"}),
		ReclaimsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "ticket_reclaims_total",
			Help:      "Stranded tickets returned to their queues by the reaper.",
		}),
		VerificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "verifications_total",
			Help:      "Verifier attempts by outcome.",
		}, []string{"outcome"}),
		MergesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "merges_total",
			Help:      "Pull requests squash-merged by the sentinel path.",
		}),
		UnblocksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "swarm",
			Name:      "cascade_unblocks_total",
			Help:      "Tickets promoted from blocked to ready by the cascade.",
		}),
		TicketsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "swarm",
			Name:      "tickets_in_flight",
			Help:      "Tickets currently owned by this replica.",
		}),
		TaskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "swarm",
			Name:      "ticket_task_duration_seconds",
			Help:      "Wall time of one ticket task.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"kind", "outcome"}),
	}
}

// Registry exposes the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
