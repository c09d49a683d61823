package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RedisErrors counts Redis operation failures by operation name.
var RedisErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ripple_redis_errors_total",
		Help: "Total number of Redis errors by operation",
	},
	[]string{"operation"},
)

// CacheHits counts cache lookups by key prefix and outcome (hit or miss).
var CacheHits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ripple_cache_requests_total",
		Help: "Total cache lookups by key prefix and result",
	},
	[]string{"prefix", "result"},
)

// InitMetrics creates the Prometheus request instrumentation for the service.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware returns the request instrumentation handler.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
