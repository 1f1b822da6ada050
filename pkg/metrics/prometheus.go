package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide metrics container, scoped to routecore's
// domain: matrix batching, solver invocations, the event pipeline, and
// the cache tiers underneath all of them.
type Metrics struct {
	// Matrix (C1/C2/C3)
	MatrixBatchesTotal    *prometheus.CounterVec
	MatrixBatchDuration   *prometheus.HistogramVec
	MatrixBackendFailures *prometheus.CounterVec
	MatrixCacheHits       *prometheus.CounterVec
	MatrixCacheMisses     *prometheus.CounterVec

	// Solver (C5/C6)
	SolveOperationsTotal *prometheus.CounterVec
	SolveDuration        *prometheus.HistogramVec
	SolveFallbacksTotal  *prometheus.CounterVec
	RouteDistanceMeters  *prometheus.GaugeVec

	// Planner (C7)
	PlanningDuration *prometheus.HistogramVec
	VisitsScheduled  *prometheus.HistogramVec

	// Rerouting (C8)
	RerouteEvaluationsTotal *prometheus.CounterVec
	RerouteTriggeredTotal   *prometheus.CounterVec

	// Event pipeline (C9)
	PipelineQueueDepth    prometheus.Gauge
	PipelineHandlerLat    *prometheus.HistogramVec
	PipelineDeadLettered  *prometheus.CounterVec
	PipelineEventsDropped prometheus.Counter

	// System
	Goroutines  prometheus.Gauge
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics registers and returns a fresh metrics container.
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		MatrixBatchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "matrix_batches_total",
				Help:      "Total number of matrix backend batch calls",
			},
			[]string{"status"},
		),

		MatrixBatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "matrix_batch_duration_seconds",
				Help:      "Duration of a single matrix backend batch call",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"status"},
		),

		MatrixBackendFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "matrix_backend_failures_total",
				Help:      "Total number of matrix backend call failures by reason",
			},
			[]string{"reason"},
		),

		MatrixCacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "matrix_cache_hits_total",
				Help:      "Total number of matrix cache hits by kind",
			},
			[]string{"kind"},
		),

		MatrixCacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "matrix_cache_misses_total",
				Help:      "Total number of matrix cache misses by kind",
			},
			[]string{"kind"},
		),

		SolveOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solve_operations_total",
				Help:      "Total number of solve operations",
			},
			[]string{"solver", "status"},
		),

		SolveDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solve_duration_seconds",
				Help:      "Duration of solve operations",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"solver"},
		),

		SolveFallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solve_fallbacks_total",
				Help:      "Total number of times the registry fell back to the next solver",
			},
			[]string{"from_solver", "to_solver"},
		),

		RouteDistanceMeters: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "route_distance_meters",
				Help:      "Last computed total distance of a solved route, by agent",
			},
			[]string{"agent_id"},
		),

		PlanningDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "planning_duration_seconds",
				Help:      "Duration of weekly planning runs",
				Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"agent_id"},
		),

		VisitsScheduled: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "visits_scheduled",
				Help:      "Number of visits scheduled per weekly plan",
				Buckets:   []float64{1, 5, 10, 20, 30, 50, 80},
			},
			[]string{"category"},
		),

		RerouteEvaluationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reroute_evaluations_total",
				Help:      "Total number of feasibility evaluations performed",
			},
			[]string{"severity"},
		),

		RerouteTriggeredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "reroute_triggered_total",
				Help:      "Total number of times a re-solve was actually triggered",
			},
			[]string{"mode"},
		),

		PipelineQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pipeline_queue_depth",
				Help:      "Current number of events waiting in the priority queue",
			},
		),

		PipelineHandlerLat: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pipeline_handler_duration_seconds",
				Help:      "Duration of event handler invocations",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
			},
			[]string{"kind"},
		),

		PipelineDeadLettered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pipeline_dead_lettered_total",
				Help:      "Total number of events sent to the dead-letter sink",
			},
			[]string{"kind"},
		),

		PipelineEventsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "pipeline_events_dropped_total",
				Help:      "Total number of events dropped because the queue was full",
			},
		),

		Goroutines: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "goroutines",
				Help:      "Current number of goroutines",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics container, lazily initializing it.
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("routecore", "")
	}
	return defaultMetrics
}

// RecordMatrixBatch records a single MatrixBackend batch call.
func (m *Metrics) RecordMatrixBatch(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.MatrixBatchesTotal.WithLabelValues(status).Inc()
	m.MatrixBatchDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordMatrixBackendFailure records a classified backend failure.
func (m *Metrics) RecordMatrixBackendFailure(reason string) {
	m.MatrixBackendFailures.WithLabelValues(reason).Inc()
}

// RecordMatrixCacheLookup records a matrix cache hit or miss for a cache kind
// (e.g. "full", "batch").
func (m *Metrics) RecordMatrixCacheLookup(kind string, hit bool) {
	if hit {
		m.MatrixCacheHits.WithLabelValues(kind).Inc()
		return
	}
	m.MatrixCacheMisses.WithLabelValues(kind).Inc()
}

// RecordSolveOperation records a solve attempt outcome.
func (m *Metrics) RecordSolveOperation(solverKind string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.SolveOperationsTotal.WithLabelValues(solverKind, status).Inc()
	m.SolveDuration.WithLabelValues(solverKind).Observe(duration.Seconds())
}

// RecordSolveFallback records a registry fallback from one solver to another.
func (m *Metrics) RecordSolveFallback(fromSolver, toSolver string) {
	m.SolveFallbacksTotal.WithLabelValues(fromSolver, toSolver).Inc()
}

// RecordRouteDistance records the last solved total distance for an agent.
func (m *Metrics) RecordRouteDistance(agentID string, meters float64) {
	m.RouteDistanceMeters.WithLabelValues(agentID).Set(meters)
}

// RecordPlanningRun records a weekly planning run's duration and visit count.
func (m *Metrics) RecordPlanningRun(agentID, category string, duration time.Duration, visits int) {
	m.PlanningDuration.WithLabelValues(agentID).Observe(duration.Seconds())
	m.VisitsScheduled.WithLabelValues(category).Observe(float64(visits))
}

// RecordRerouteEvaluation records a feasibility check outcome by severity.
func (m *Metrics) RecordRerouteEvaluation(severity string) {
	m.RerouteEvaluationsTotal.WithLabelValues(severity).Inc()
}

// RecordRerouteTriggered records an actual re-solve, tagged by trigger mode
// (e.g. "auto", "manual", "sweep").
func (m *Metrics) RecordRerouteTriggered(mode string) {
	m.RerouteTriggeredTotal.WithLabelValues(mode).Inc()
}

// SetPipelineQueueDepth sets the current queue depth gauge.
func (m *Metrics) SetPipelineQueueDepth(depth int) {
	m.PipelineQueueDepth.Set(float64(depth))
}

// RecordPipelineHandler records a handler invocation's duration.
func (m *Metrics) RecordPipelineHandler(kind string, duration time.Duration) {
	m.PipelineHandlerLat.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordPipelineDeadLetter records an event that exhausted retries.
func (m *Metrics) RecordPipelineDeadLetter(kind string) {
	m.PipelineDeadLettered.WithLabelValues(kind).Inc()
}

// RecordPipelineDropped records an event rejected because the queue was full.
func (m *Metrics) RecordPipelineDropped() {
	m.PipelineEventsDropped.Inc()
}

// SetServiceInfo sets the build-info gauge.
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler returns the HTTP handler for the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer runs a dedicated HTTP server exposing /metrics and
// /health. This is the only HTTP surface routecore carries — it is a scrape
// target, not an RPC transport.
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
