package http

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flipfinder/backend/internal/infrastructure/cache"
)

const notFoundPath = "/not-found"

var durationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// CacheStatser exposes cumulative cache counters
type CacheStatser interface {
	Stats() cache.Stats
}

// Metrics owns the proxy's Prometheus registry
type Metrics struct {
	registry *prometheus.Registry
	duration *prometheus.HistogramVec
}

// NewMetrics registers request and cache collectors. A nil cache skips the cache collectors.
func NewMetrics(c CacheStatser) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flipfinder",
		Name:      "request_duration_seconds",
		Help:      "Time spent processing a route",
		Buckets:   durationBuckets,
	}, []string{"code", "method", "path"})
	registry.MustRegister(duration)

	if c != nil {
		registry.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "flipfinder",
				Name:      "search_cache_hits_total",
				Help:      "Search cache hits",
			}, func() float64 { return float64(c.Stats().Hits) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "flipfinder",
				Name:      "search_cache_misses_total",
				Help:      "Search cache misses",
			}, func() float64 { return float64(c.Stats().Misses) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "flipfinder",
				Name:      "search_cache_entries",
				Help:      "Entries currently held in the search cache",
			}, func() float64 { return float64(c.Stats().Size) }),
		)
	}

	return &Metrics{registry: registry, duration: duration}
}

// Middleware observes the duration of every routed request
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// unmatched routes share one label to keep cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = notFoundPath
		}
		m.duration.WithLabelValues(strconv.Itoa(c.Writer.Status()), c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
