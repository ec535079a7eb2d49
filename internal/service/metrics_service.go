package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/family-console-api/internal/models"
)

// MetricsService wraps the Prometheus registry and keeps running totals for JSON snapshots.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
	violations      *prometheus.CounterVec
	jobRejections   *prometheus.CounterVec
	autoAssignRuns  *prometheus.CounterVec

	mu             sync.Mutex
	violationCount map[string]uint64

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	dbQueryCount         uint64
	dbQueryDurationTotal uint64
}

const metricsNamespace = "family_console"

func histogramVec(subsystem, name, help string, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.DefBuckets,
	}, labels)
}

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// NewMetricsService builds a private registry with the HTTP, cache, database
// and assignment collectors.
func NewMetricsService() *MetricsService {
	m := &MetricsService{
		registry:        prometheus.NewRegistry(),
		requestDuration: histogramVec("http", "request_duration_seconds", "Latency of API requests by route template", "method", "path", "status"),
		requestTotal:    counterVec("http", "requests_total", "API requests by route template", "method", "path", "status"),
		dbQueryDuration: histogramVec("db", "query_duration_seconds", "Latency of repository list queries", "query"),
		violations:      counterVec("assignment", "violations_total", "Family drafts rejected by the validator, by violation code", "code"),
		jobRejections:   counterVec("jobs", "rejections_total", "Job writes refused by the count guard or the type enforcer", "reason"),
		autoAssignRuns:  counterVec("auto_assign", "runs_total", "Completed auto-assign runs by final status", "status"),
		violationCount:  make(map[string]uint64),
	}

	cacheOps := histogramVec("cache", "operation_seconds", "Latency of cache reads and writes", "op")
	m.cacheLatency = cacheOps.WithLabelValues("get")
	m.cacheWrite = cacheOps.WithLabelValues("set")

	lookups := counterVec("cache", "lookups_total", "Cache lookups by result", "result")
	m.cacheHits = lookups.WithLabelValues("hit")
	m.cacheMisses = lookups.WithLabelValues("miss")

	m.cacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "cache",
		Name:      "hit_ratio",
		Help:      "Share of cache lookups served from Redis",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "goroutines",
		Help:      "Live goroutines in the API process",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	m.registry.MustRegister(
		m.requestDuration, m.requestTotal, cacheOps, lookups, m.cacheHitRatio,
		m.dbQueryDuration, m.violations, m.jobRejections, m.autoAssignRuns, goroutines,
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordViolation counts a rejected family draft.
func (m *MetricsService) RecordViolation(code string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(code).Inc()
	m.mu.Lock()
	m.violationCount[code]++
	m.mu.Unlock()
}

// RecordJobRejection counts a refused job write.
func (m *MetricsService) RecordJobRejection(reason string) {
	if m == nil {
		return
	}
	m.jobRejections.WithLabelValues(reason).Inc()
}

// RecordAutoAssignRun counts a finished auto-assign run.
func (m *MetricsService) RecordAutoAssignRun(status string) {
	if m == nil {
		return
	}
	m.autoAssignRuns.WithLabelValues(status).Inc()
}

// Snapshot returns the running totals as a JSON friendly value.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{Violations: map[string]uint64{}}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	dbCount := atomic.LoadUint64(&m.dbQueryCount)
	dbDuration := atomic.LoadUint64(&m.dbQueryDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgDBMs float64
	if dbCount > 0 {
		avgDBMs = float64(dbDuration) / float64(dbCount) / float64(time.Millisecond)
	}

	m.mu.Lock()
	violations := make(map[string]uint64, len(m.violationCount))
	for code, n := range m.violationCount {
		violations[code] = n
	}
	m.mu.Unlock()

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		DBQueryCount:             dbCount,
		AverageDBQueryDurationMs: avgDBMs,
		Violations:               violations,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
