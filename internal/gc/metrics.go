package gc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gc_sweeps_total",
		Help: "Completed garbage collection sweeps",
	})

	deleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gc_deleted_documents_total",
		Help: "Documents removed by garbage collection",
	}, []string{"namespace"})

	sweepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gc_sweep_errors_total",
		Help: "Namespace scans that failed during a sweep",
	}, []string{"namespace"})
)
