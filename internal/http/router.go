package http

import (
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/workout-journal/internal/observability"
)

// RouterOptions configures the middleware applied to the action routes.
type RouterOptions struct {
	// Limiter guards the workout, share and replay routes. Nil disables rate limiting.
	Limiter        *rate.Limiter
	RequestTimeout time.Duration
	// TestingMode exposes GET /test and POST /test/{action}.
	TestingMode bool
}

// NewRouter registers every route on a new mux router. /health, /metrics and /map are
// never rate limited.
func NewRouter(h *Handler, logger *zap.Logger, opts RouterOptions) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler()).Methods("GET")
	router.HandleFunc("/map", h.GetMap).Methods("GET")
	if opts.TestingMode {
		logger.Warn("Testing mode enabled; /test endpoint exposed")
		router.HandleFunc("/test", h.GetTestStatus).Methods("GET")
		router.HandleFunc("/test/{action}", h.PostTestAction).Methods("POST")
	}

	actions := router.NewRoute().Subrouter()
	actions.Use(RateLimitMiddleware(opts.Limiter))
	if opts.RequestTimeout > 0 {
		actions.Use(TimeoutMiddleware(opts.RequestTimeout))
	}
	actions.HandleFunc("/workouts", h.CreateWorkout).Methods("POST")
	actions.HandleFunc("/workouts", h.ListWorkouts).Methods("GET")
	actions.HandleFunc("/workouts", h.ClearWorkouts).Methods("DELETE")
	actions.HandleFunc("/workouts/{id}", h.GetWorkout).Methods("GET")
	actions.HandleFunc("/share", h.ShareWorkouts).Methods("POST")
	actions.HandleFunc("/replay", h.StartReplay).Methods("POST")
	actions.HandleFunc("/replay", h.GetReplay).Methods("GET")

	return router
}
