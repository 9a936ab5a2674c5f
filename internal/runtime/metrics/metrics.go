// Package metrics holds the Prometheus collectors of a VM.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result labels of the executions counter.
const (
	ResultOK       = "ok"
	ResultOutOfGas = "out_of_gas"
	ResultError    = "error"
)

// Metrics groups the collectors updated by the cache and the VM facade.
type Metrics struct {
	Executions      *prometheus.CounterVec
	ExecutionTime   prometheus.Histogram
	GasConsumed     prometheus.Counter
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	CacheEvictions  prometheus.Counter
	CachedModules   prometheus.Gauge
	PinnedModules   prometheus.Gauge
	StoredBytecodes prometheus.Gauge
}

// New creates the collectors under namespace and registers them with registerer.
func New(namespace string, registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Number of function executions by result",
		}, []string{"result"}),
		ExecutionTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_seconds",
			Help:      "Wall time of function executions",
			Buckets:   prometheus.DefBuckets,
		}),
		GasConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gas_consumed_total",
			Help:      "Gas consumed by successful executions",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Compiled module lookups served from memory",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Compiled module lookups that required a compilation",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Compiled modules evicted from memory",
		}),
		CachedModules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_modules",
			Help:      "Compiled modules held in memory",
		}),
		PinnedModules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pinned_modules",
			Help:      "Compiled modules pinned in memory",
		}),
		StoredBytecodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_bytecodes",
			Help:      "Bytecodes held by the code store",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.Executions,
		m.ExecutionTime,
		m.GasConsumed,
		m.CacheHits,
		m.CacheMisses,
		m.CacheEvictions,
		m.CachedModules,
		m.PinnedModules,
		m.StoredBytecodes,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
