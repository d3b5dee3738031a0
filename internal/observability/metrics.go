package observability

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-player/internal/platform/logger"
)

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec

	generationRuns     *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	generationSaves    *prometheus.CounterVec
	generationDegraded *prometheus.CounterVec
	lockContention     prometheus.Counter

	hierarchyReloads *prometheus.CounterVec
	cacheOps         *prometheus.CounterVec

	activeSessions prometheus.Gauge
	sseClients     prometheus.Gauge

	pgStats   *prometheus.GaugeVec
	redisUp   prometheus.Gauge
	redisPing prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

// Current returns the process metrics, or nil when metrics are disabled. Every
// method is safe on a nil receiver.
func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	if v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 15 * time.Second
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

// NewMetrics builds a Metrics on its own registry. Tests use it directly.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nbp_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nbp_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nbp_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nbp_backend_requests_total",
			Help: "Backend collaborator calls by endpoint/status.",
		}, []string{"endpoint", "status"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nbp_backend_request_duration_seconds",
			Help:    "Backend collaborator latency in seconds by endpoint.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"endpoint"}),
		generationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nbp_generation_runs_total",
			Help: "Lesson generation pipeline runs by course kind/outcome.",
		}, []string{"kind", "outcome"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nbp_generation_duration_seconds",
			Help:    "Lesson generation pipeline duration by course kind.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"kind"}),
		generationSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nbp_generation_saves_total",
			Help: "Save path taken after generation (direct, metadata, fallback, local).",
		}, []string{"mode"}),
		generationDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nbp_generation_degraded_total",
			Help: "Generations that continued in degraded mode by reason.",
		}, []string{"reason"}),
		lockContention: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nbp_generation_lock_contention_total",
			Help: "Lesson selections rejected because a generation was already in flight.",
		}),
		hierarchyReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nbp_hierarchy_loads_total",
			Help: "Hierarchy loads by source/outcome.",
		}, []string{"source", "outcome"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nbp_legacy_cache_ops_total",
			Help: "Legacy cache operations by backend/op/outcome.",
		}, []string{"backend", "op", "outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nbp_player_sessions",
			Help: "Mounted player sessions.",
		}),
		sseClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nbp_sse_clients",
			Help: "Connected SSE clients.",
		}),
		pgStats: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nbp_postgres_pool",
			Help: "database/sql pool stats.",
		}, []string{"stat"}),
		redisUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nbp_redis_up",
			Help: "1 when the last redis ping succeeded.",
		}),
		redisPing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nbp_redis_ping_seconds",
			Help: "Latency of the last redis ping.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.backendRequests, m.backendLatency,
		m.generationRuns, m.generationDuration, m.generationSaves, m.generationDegraded, m.lockContention,
		m.hierarchyReloads, m.cacheOps,
		m.activeSessions, m.sseClients,
		m.pgStats, m.redisUp, m.redisPing,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather exposes the registry to tests.
func (m *Metrics) Gather() (map[string]float64, error) {
	out := map[string]float64{}
	if m == nil {
		return out, nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	for _, f := range families {
		var sum float64
		for _, metric := range f.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				sum += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				sum += metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				sum += float64(metric.GetHistogram().GetSampleCount())
			}
		}
		out[f.GetName()] = sum
	}
	return out, nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveBackendRequest(endpoint string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.backendRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	m.backendLatency.WithLabelValues(endpoint).Observe(dur.Seconds())
}

func (m *Metrics) ObserveGeneration(kind, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.generationRuns.WithLabelValues(kind, outcome).Inc()
	m.generationDuration.WithLabelValues(kind).Observe(dur.Seconds())
}

func (m *Metrics) IncGenerationSave(mode string) {
	if m == nil {
		return
	}
	m.generationSaves.WithLabelValues(mode).Inc()
}

func (m *Metrics) IncGenerationDegraded(reason string) {
	if m == nil {
		return
	}
	m.generationDegraded.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncLockContention() {
	if m == nil {
		return
	}
	m.lockContention.Inc()
}

func (m *Metrics) IncHierarchyLoad(source, outcome string) {
	if m == nil {
		return
	}
	m.hierarchyReloads.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) IncCacheOp(backend, op, outcome string) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues(backend, op, outcome).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) SSEClientsInc() {
	if m == nil {
		return
	}
	m.sseClients.Inc()
}

func (m *Metrics) SSEClientsDec() {
	if m == nil {
		return
	}
	m.sseClients.Dec()
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		if log != nil {
			log.Warn("metrics: db handle unavailable", "error", err)
		}
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := sqlDB.Stats()
				m.pgStats.WithLabelValues("open").Set(float64(st.OpenConnections))
				m.pgStats.WithLabelValues("in_use").Set(float64(st.InUse))
				m.pgStats.WithLabelValues("idle").Set(float64(st.Idle))
				m.pgStats.WithLabelValues("wait_count").Set(float64(st.WaitCount))
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
