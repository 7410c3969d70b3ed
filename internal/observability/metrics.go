package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// OpenWeatherMap API call rate by status. Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// External API latency per request. Watch for: p95 approaching the enrichment timeout.
	WeatherAPIDuration *prometheus.HistogramVec

	// Enrichment outcomes. outcome=resolved|fallback, category=error category ("" on success).
	EnrichmentsTotal *prometheus.CounterVec

	// Enrichment results that lost the race to an earlier resolution or targeted a dropped workout.
	EnrichmentStaleTotal *prometheus.CounterVec

	// Lookups currently waiting on the provider.
	EnrichmentsInFlight prometheus.Gauge

	// Workouts created by type; rejected inputs by reason.
	WorkoutsCreatedTotal  *prometheus.CounterVec
	WorkoutsRejectedTotal *prometheus.CounterVec

	// Workouts currently held by the session.
	SessionWorkouts prometheus.Gauge

	// Durable store operations. Watch for: error status on set (session and blob diverging).
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	StoreBlobBytes         *prometheus.GaugeVec

	// Replay runs started/completed/superseded and steps taken.
	ReplayRunsTotal  *prometheus.CounterVec
	ReplayStepsTotal prometheus.Counter

	// Rate limit denials on the API.
	RateLimitDeniedTotal prometheus.Counter

	// Weather circuit breaker transitions and current state (0 closed, 1 half-open, 2 open).
	CircuitBreakerTransitionsTotal *prometheus.CounterVec
	CircuitBreakerState            *prometheus.GaugeVec

	registerOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of OpenWeatherMap API calls",
		},
		[]string{"status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "OpenWeatherMap API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
	EnrichmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichmentsTotal",
			Help: "Weather enrichments by outcome (resolved, fallback) and failure category",
		},
		[]string{"outcome", "category"},
	)
	EnrichmentStaleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichmentStaleTotal",
			Help: "Enrichment results dropped as no-ops (already_resolved, workout_gone)",
		},
		[]string{"reason"},
	)
	EnrichmentsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "enrichmentsInFlight",
			Help: "Weather lookups currently in flight",
		},
	)
	WorkoutsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workoutsCreatedTotal",
			Help: "Workouts created, by type",
		},
		[]string{"type"},
	)
	WorkoutsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workoutsRejectedTotal",
			Help: "Workout inputs rejected by validation, by reason",
		},
		[]string{"reason"},
	)
	SessionWorkouts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessionWorkouts",
			Help: "Workouts currently held in the session",
		},
	)
	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storeOperationsTotal",
			Help: "Durable store operations by backend, operation and status",
		},
		[]string{"backend", "op", "status"},
	)
	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storeOperationDurationSeconds",
			Help:    "Durable store operation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"backend", "op"},
	)
	StoreBlobBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storeBlobBytes",
			Help: "Size of the last written workouts blob",
		},
		[]string{"backend"},
	)
	ReplayRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "replayRunsTotal",
			Help: "Replay runs by event (started, completed, superseded)",
		},
		[]string{"event"},
	)
	ReplayStepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "replayStepsTotal",
			Help: "Replay pan steps taken",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"component"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration,
		EnrichmentsTotal, EnrichmentStaleTotal, EnrichmentsInFlight,
		WorkoutsCreatedTotal, WorkoutsRejectedTotal, SessionWorkouts,
		StoreOperationsTotal, StoreOperationDuration, StoreBlobBytes,
		ReplayRunsTotal, ReplayStepsTotal,
		RateLimitDeniedTotal,
		CircuitBreakerTransitionsTotal, CircuitBreakerState,
	)
}

// RegisterFallbackRateGauge exposes the share of enrichments that fell back within
// the window. fn is usually traffic.FallbackRate bound to the configured window.
func RegisterFallbackRateGauge(fn func() float64) {
	registerOnce.Do(func() {
		registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "enrichmentFallbackRatio",
				Help: "Fraction of weather enrichments in the sliding window that used the fallback",
			},
			fn,
		))
	})
}

// RecordCircuitBreakerTransition counts a transition and updates the state gauge.
func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(circuitBreakerStateValue(to))
}

func circuitBreakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
