package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics are registered with the registerer given by WithRegisterer, or
// left unregistered when there is none.
type metrics struct {
	compilations    prometheus.Counter
	compileErrors   prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	compileDuration prometheus.Histogram
	executeDuration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		compilations: f.NewCounter(prometheus.CounterOpts{
			Namespace: "fuseq",
			Subsystem: "executor",
			Name:      "compilations_total",
			Help:      "Number of plans compiled.",
		}),
		compileErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "fuseq",
			Subsystem: "executor",
			Name:      "compile_errors_total",
			Help:      "Number of plans that failed to compile.",
		}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "fuseq",
			Subsystem: "executor",
			Name:      "cache_hits_total",
			Help:      "Number of executions served by an already compiled plan.",
		}),
		cacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: "fuseq",
			Subsystem: "executor",
			Name:      "cache_misses_total",
			Help:      "Number of executions that had to compile their plan.",
		}),
		compileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fuseq",
			Subsystem: "executor",
			Name:      "compile_duration_seconds",
			Help:      "Time spent lowering and compiling a plan.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		executeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fuseq",
			Subsystem: "executor",
			Name:      "execute_duration_seconds",
			Help:      "Time spent running compiled plans.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
}
