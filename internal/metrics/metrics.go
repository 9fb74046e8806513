// Package metrics provides the prometheus instrumentation of a model: how
// often formulas run, how often the cache answers instead, how many dynamic
// instances exist and how much invalidation clears.
//
// Every Metrics owns its own registry, so several models in one process
// (or one test binary) never collide on metric names. A nil *Metrics is
// valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cellgrid"

// Metrics is the set of collectors a model reports to.
type Metrics struct {
	registry *prometheus.Registry

	evaluations   *prometheus.CounterVec // formula runs by space
	cacheHits     *prometheus.CounterVec // reads answered from cache by space
	instances     *prometheus.CounterVec // dynamic instances created by child
	mappingErrors *prometheus.CounterVec // failed key mappings by child
	evictions     *prometheus.CounterVec // dynamic instances let go by bounded stores
	invalidated   prometheus.Counter     // cache entries cleared
	cycles        prometheus.Counter     // circular references detected
}

// New creates the collectors and registers them on a fresh registry. With
// withRuntime the registry also exposes the Go runtime and process collectors.
func New(withRuntime bool) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Number of formula evaluations, i.e. cache misses that ran a formula.",
		}, []string{"space"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Number of cell reads answered from the cache.",
		}, []string{"space"}),
		instances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_created_total",
			Help:      "Number of dynamic space instances created.",
		}, []string{"child"}),
		mappingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_mapping_errors_total",
			Help:      "Number of child key mappings that failed.",
		}, []string{"child"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_evicted_total",
			Help:      "Number of dynamic instances a bounded registry evicted or refused to keep.",
		}, []string{"child"}),
		invalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidated_entries_total",
			Help:      "Number of cached cell entries and instances cleared by invalidation.",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circular_references_total",
			Help:      "Number of circular references detected during evaluation.",
		}),
	}
	m.registry.MustRegister(m.evaluations, m.cacheHits, m.instances, m.mappingErrors, m.evictions, m.invalidated, m.cycles)
	if withRuntime {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return m
}

// Registry exposes the underlying registry, mainly for tests and embedding.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Evaluated counts one formula run in space.
func (m *Metrics) Evaluated(space string) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(space).Inc()
}

// Hit counts one read answered from cache in space.
func (m *Metrics) Hit(space string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(space).Inc()
}

// InstanceCreated counts one new dynamic instance of child.
func (m *Metrics) InstanceCreated(child string) {
	if m == nil {
		return
	}
	m.instances.WithLabelValues(child).Inc()
}

// MappingFailed counts one failed key mapping of child.
func (m *Metrics) MappingFailed(child string) {
	if m == nil {
		return
	}
	m.mappingErrors.WithLabelValues(child).Inc()
}

// Evicted counts one dynamic instance of child let go by a bounded registry.
func (m *Metrics) Evicted(child string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(child).Inc()
}

// Invalidated counts n cleared entries.
func (m *Metrics) Invalidated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.invalidated.Add(float64(n))
}

// Cycle counts one detected circular reference.
func (m *Metrics) Cycle() {
	if m == nil {
		return
	}
	m.cycles.Inc()
}
