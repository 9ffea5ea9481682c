package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"route", "status"})

	httpSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_actions_total",
		Help: "Accepted /api calls by action",
	}, []string{"action"})

	apiErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "api_errors_total",
		Help: "Error responses by kind",
	}, []string{"kind"})

	watchers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_watchers",
		Help: "Open dashboard websocket connections",
	})
)
