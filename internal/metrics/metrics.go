// Package metrics exposes the prometheus collectors the control plane
// updates as providers, groups, and batches move through their lifecycle.
// Names are implementation detail; the contractual dimensions are the label
// sets (provider_id, group_id, tool, result).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderState is a gauge of 1 for the provider's current state, 0 for
	// all others; scraped as a set of time series keyed by (provider_id, state).
	ProviderState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hangar_provider_state",
		Help: "Current state of a provider (1 = current state, 0 otherwise)",
	}, []string{"provider_id", "state"})

	// InvocationsTotal counts tool invocations by provider and result.
	InvocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hangar_invocations_total",
		Help: "Total number of tool invocations",
	}, []string{"provider_id", "tool", "result"})

	// InvocationDuration measures end-to-end invocation latency.
	InvocationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hangar_invocation_duration_seconds",
		Help:    "Tool invocation latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider_id", "tool"})

	// ColdStartsTotal counts COLD -> INITIALIZING launches, labeled by outcome.
	ColdStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hangar_cold_starts_total",
		Help: "Total number of provider cold starts",
	}, []string{"provider_id", "result"})

	// ColdStartDuration measures time spent in launch + initial handshake.
	ColdStartDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hangar_cold_start_duration_seconds",
		Help:    "Provider cold start latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider_id"})

	// CircuitTransitionsTotal counts group circuit breaker transitions.
	CircuitTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hangar_circuit_transitions_total",
		Help: "Total number of circuit breaker state transitions",
	}, []string{"group_id", "to_state"})

	// GroupMembersInRotation gauges the current in-rotation member count per group.
	GroupMembersInRotation = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hangar_group_members_in_rotation",
		Help: "Number of group members currently eligible for routing",
	}, []string{"group_id"})

	// BatchSize observes the number of calls per batch.
	BatchSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hangar_batch_size",
		Help:    "Number of calls in an executed batch",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
	}, []string{"result"})

	// BatchDuration measures total batch execution wall-clock time.
	BatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hangar_batch_duration_seconds",
		Help:    "Batch execution latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	// RateLimitHitsTotal counts requests rejected by rate limiting, if configured.
	RateLimitHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hangar_rate_limit_hits_total",
		Help: "Total number of requests rejected due to rate limiting",
	}, []string{"provider_id"})

	// ReloadsTotal counts config hot-reload attempts by outcome.
	ReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hangar_config_reloads_total",
		Help: "Total number of config hot-reload attempts",
	}, []string{"result"})
)

// SetProviderState records the single current state for a provider,
// clearing the gauge for every other known state so stale series read 0.
func SetProviderState(providerID string, current string, allStates []string) {
	for _, s := range allStates {
		if s == current {
			ProviderState.WithLabelValues(providerID, s).Set(1)
		} else {
			ProviderState.WithLabelValues(providerID, s).Set(0)
		}
	}
}
