// Package prom exports aside hook events as Prometheus counters.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/aside"
)

// Hooks implements aside.Hooks. All metrics carry a "namespace" label with
// the controller prefix, so keep prefixes low-cardinality.
type Hooks struct {
	hits     *prometheus.CounterVec
	misses   *prometheus.CounterVec
	failures *prometheus.CounterVec
	computes *prometheus.CounterVec
}

var _ aside.Hooks = (*Hooks)(nil)

// New constructs the counters and registers them.
//   - reg:      registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:  Prometheus namespace and subsystem
func New(reg prometheus.Registerer, ns, sub string) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: sub,
			Name:      name,
			Help:      help,
		}, append([]string{"namespace"}, labels...))
	}
	h := &Hooks{
		hits:     counter("hits_total", "Entries found in the backend"),
		misses:   counter("misses_total", "Entries absent from the backend"),
		failures: counter("backend_failures_total", "Entries affected by failed backend calls", "action"),
		computes: counter("computes_total", "Compute function invocations", "strategy"),
	}
	reg.MustRegister(h.hits, h.misses, h.failures, h.computes)
	return h
}

func (h *Hooks) Lookup(ns string, hits, misses int) {
	h.hits.WithLabelValues(ns).Add(float64(hits))
	h.misses.WithLabelValues(ns).Add(float64(misses))
}

func (h *Hooks) BackendFailure(ns string, action aside.Action, count int, _ error) {
	h.failures.WithLabelValues(ns, action.String()).Add(float64(count))
}

func (h *Hooks) Compute(ns, strategy string, _ int) {
	h.computes.WithLabelValues(ns, strategy).Inc()
}
