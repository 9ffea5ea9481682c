package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ratelimit_rejections_total",
	Help: "Requests refused because a fixed window was exhausted",
}, []string{"category"})
