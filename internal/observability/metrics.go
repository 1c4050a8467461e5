// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the counters incremented during resolution. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Probes              *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec
	UpstreamRequests    *prometheus.CounterVec
	StrategyInvocations *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "findit_probes_total",
			Help: "Verification probes sent to publisher hosts, by classification.",
		}, []string{"classification"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "findit_cache_lookups_total",
			Help: "Cache lookups by cache and outcome (hit, miss).",
		}, []string{"cache", "outcome"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "findit_upstream_requests_total",
			Help: "Requests sent to metadata APIs, by host and outcome.",
		}, []string{"host", "outcome"}),
		StrategyInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "findit_strategy_invocations_total",
			Help: "Strategy invocations by strategy id.",
		}, []string{"strategy"}),
	}
	if reg != nil {
		reg.MustRegister(m.Probes, m.CacheLookups, m.UpstreamRequests, m.StrategyInvocations)
	}
	return m
}

// ObserveProbe counts one verification probe.
func (m *Metrics) ObserveProbe(classification string) {
	if m == nil {
		return
	}
	m.Probes.WithLabelValues(classification).Inc()
}

// ObserveCache counts one cache lookup.
func (m *Metrics) ObserveCache(cache string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, outcome).Inc()
}

// ObserveUpstream counts one upstream request.
func (m *Metrics) ObserveUpstream(host, outcome string) {
	if m == nil {
		return
	}
	m.UpstreamRequests.WithLabelValues(host, outcome).Inc()
}

// ObserveStrategy counts one strategy invocation.
func (m *Metrics) ObserveStrategy(id string) {
	if m == nil {
		return
	}
	m.StrategyInvocations.WithLabelValues(id).Inc()
}

// ProbeCount sums Probes across classifications.
func (m *Metrics) ProbeCount() float64 {
	if m == nil {
		return 0
	}
	return sumCounterVec(m.Probes)
}

func sumCounterVec(vec *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()
	var total float64
	for metric := range ch {
		var pb dto.Metric
		if err := metric.Write(&pb); err == nil && pb.Counter != nil {
			total += pb.Counter.GetValue()
		}
	}
	return total
}
