package docstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	writeResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docstore_writes_total",
		Help: "Document writes by backend and result",
	}, []string{"backend", "result"})

	writeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docstore_write_seconds",
		Help:    "Time to durably write one document",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
)
