package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/workout-journal/internal/display"
	"github.com/kjstillabower/workout-journal/internal/lifecycle"
	"github.com/kjstillabower/workout-journal/internal/mapview"
	"github.com/kjstillabower/workout-journal/internal/models"
	"github.com/kjstillabower/workout-journal/internal/session"
	"github.com/kjstillabower/workout-journal/internal/share"
	"github.com/kjstillabower/workout-journal/internal/traffic"
)

var validate = newValidator()

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// HealthConfig holds the thresholds and dependency checks used by the health handler.
type HealthConfig struct {
	DegradedWindow      time.Duration
	DegradedFallbackPct int
	DegradedMinSamples  int
	// WeatherEnabled is false when no API key is configured; weather is then reported as disabled.
	WeatherEnabled bool
	// StorePing, when set, is called to check that the durable store is reachable.
	StorePing func() error
}

// MapSnapshotter exposes the map surface state served at GET /map.
type MapSnapshotter interface {
	Snapshot() mapview.Snapshot
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	session          *session.Session
	mapView          MapSnapshotter
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(sess *session.Session, mapView MapSnapshotter, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		session:      sess,
		mapView:      mapView,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// createWorkoutRequest is the POST /workouts body. Numeric ranges are checked by the
// workout constructors so every domain rejection reports the same notice.
type createWorkoutRequest struct {
	Type          string   `json:"type" validate:"required,oneof=running cycling run ride cycle"`
	Lat           *float64 `json:"lat" validate:"required"`
	Lng           *float64 `json:"lng" validate:"required"`
	Distance      float64  `json:"distance"`
	Duration      float64  `json:"duration"`
	Cadence       float64  `json:"cadence"`
	ElevationGain float64  `json:"elevationGain"`
}

func (req createWorkoutRequest) toInput() (session.Input, error) {
	t, err := models.ParseType(req.Type)
	if err != nil {
		return session.Input{}, err
	}
	return session.Input{
		Type:          t,
		Coords:        models.Coords{Lat: *req.Lat, Lng: *req.Lng},
		Distance:      req.Distance,
		Duration:      req.Duration,
		Cadence:       req.Cadence,
		ElevationGain: req.ElevationGain,
	}, nil
}

// CreateWorkout handles POST /workouts.
func (h *Handler) CreateWorkout(w http.ResponseWriter, r *http.Request) {
	var req createWorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "request body must be a JSON object")
		return
	}
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if err := validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", validationMessage(err))
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	workout, err := h.session.CreateWorkout(r.Context(), in)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	w.Header().Set("Location", "/workouts/"+workout.ID())
	writeJSON(w, http.StatusCreated, display.NewCard(workout))
}

// ListWorkouts handles GET /workouts. Cards are newest first.
func (h *Handler) ListWorkouts(w http.ResponseWriter, r *http.Request) {
	cards := h.session.Cards()
	if cards == nil {
		cards = []display.Card{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workouts": cards,
		"count":    len(cards),
	})
}

// GetWorkout handles GET /workouts/{id}. Selecting a workout centers the map on it.
func (h *Handler) GetWorkout(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	workout, err := h.session.Select(id)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, display.NewCard(workout))
}

// ClearWorkouts handles DELETE /workouts.
func (h *Handler) ClearWorkouts(w http.ResponseWriter, r *http.Request) {
	if err := h.session.ClearAll(r.Context()); err != nil {
		writeSessionError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ShareWorkouts handles POST /share.
func (h *Handler) ShareWorkouts(w http.ResponseWriter, r *http.Request) {
	text, err := h.session.Share(r.Context())
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"title": session.ShareTitle,
		"text":  text,
	})
}

// StartReplay handles POST /replay. A replay already playing is restarted.
func (h *Handler) StartReplay(w http.ResponseWriter, r *http.Request) {
	if !h.session.Replay() {
		writeError(w, r, http.StatusUnprocessableEntity, "NOTHING_TO_REPLAY", "No workouts to replay!")
		return
	}
	state, runs := h.session.ReplayState()
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"state": state.String(),
		"runs":  runs,
	})
}

// GetReplay handles GET /replay.
func (h *Handler) GetReplay(w http.ResponseWriter, r *http.Request) {
	state, runs := h.session.ReplayState()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state": state.String(),
		"runs":  runs,
	})
}

// GetMap handles GET /map.
func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	if h.mapView == nil {
		writeError(w, r, http.StatusNotFound, "NO_MAP", "no map surface attached")
		return
	}
	writeJSON(w, http.StatusOK, h.mapView.Snapshot())
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"weatherApi": "disabled"}
	if h.healthConfig != nil {
		if h.healthConfig.WeatherEnabled {
			checks["weatherApi"] = "healthy"
			if result.reason == "fallback_rate_breach" {
				checks["weatherApi"] = "unhealthy"
			}
		}
		if h.healthConfig.StorePing != nil {
			checks["store"] = "healthy"
			if result.reason == "store_unreachable" {
				checks["store"] = "unhealthy"
			}
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "workout-journal",
		"version":   "dev",
		"checks":    checks,
		"workouts":  len(h.session.Workouts()),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > starting > store unreachable > weather fallback rate > healthy.
// A high fallback rate reports degraded with 200 since workouts are still recorded.
func (h *Handler) computeHealthStatus(_ context.Context) healthResult {
	switch lifecycle.CurrentPhase() {
	case lifecycle.PhaseShuttingDown:
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	case lifecycle.PhaseStarting:
		return healthResult{"starting", http.StatusServiceUnavailable, "startup"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.healthConfig.StorePing != nil {
		if err := h.healthConfig.StorePing(); err != nil {
			h.logger.Debug("store ping failed", zap.Error(err))
			return healthResult{"degraded", http.StatusServiceUnavailable, "store_unreachable"}
		}
	}
	if h.healthConfig.WeatherEnabled && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedFallbackPct > 0 {
		fallbacks, total := traffic.FallbackRate(h.healthConfig.DegradedWindow)
		if total > 0 && total >= h.healthConfig.DegradedMinSamples {
			pct := float64(fallbacks) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedFallbackPct) {
				return healthResult{"degraded", http.StatusOK, "fallback_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// GetTestStatus handles GET /test. Returns the enrichment outcome window.
func (h *Handler) GetTestStatus(w http.ResponseWriter, r *http.Request) {
	window := 5 * time.Minute
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 {
		window = h.healthConfig.DegradedWindow
	}
	fallbacks, total := traffic.FallbackRate(window)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enrichments_in_window":     total,
		"fallbacks_in_window":       fallbacks,
		"denied_requests_in_window": traffic.DenialCount(window),
		"window_length":             window.String(),
		"phase":                     lifecycle.CurrentPhase().String(),
	})
}

// PostTestAction handles POST /test/{action} for fallback, resolved, reset and shutdown.
func (h *Handler) PostTestAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	var body struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Count <= 0 {
		body.Count = 1
	}

	var msg string
	switch action {
	case "fallback":
		for i := 0; i < body.Count; i++ {
			traffic.RecordFallback()
		}
		msg = "Recorded " + strconv.Itoa(body.Count) + " fallbacks"
	case "resolved":
		for i := 0; i < body.Count; i++ {
			traffic.RecordResolved()
		}
		msg = "Recorded " + strconv.Itoa(body.Count) + " resolved lookups"
	case "reset":
		traffic.Reset()
		lifecycle.SetPhase(lifecycle.PhaseReady)
		msg = "All simulated state cleared"
	case "shutdown":
		lifecycle.SetPhase(lifecycle.PhaseShuttingDown)
		msg = "Shutting-down phase set"
	default:
		writeError(w, r, http.StatusNotFound, "UNKNOWN_ACTION", "unknown test action: "+action)
		return
	}
	result := h.computeHealthStatus(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"action":  action,
		"message": msg,
		"state":   result.status,
	})
}

// validationMessage turns validator errors into one line naming each failed field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v, ok := r.Context().Value("correlation_id").(string); ok {
		corrID = v
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeSessionError maps session errors to status codes. Unclassified errors are store
// or share failures and are logged at WARN with the request logger.
func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "INVALID_INPUT", session.Notice(err))
	case errors.Is(err, session.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", session.Notice(err))
	case errors.Is(err, session.ErrDuplicateID):
		writeError(w, r, http.StatusConflict, "DUPLICATE_ID", "workout already exists")
	case errors.Is(err, session.ErrNothingToShare):
		writeError(w, r, http.StatusUnprocessableEntity, "NOTHING_TO_SHARE", session.Notice(err))
	case errors.Is(err, session.ErrShareUnsupported):
		writeError(w, r, http.StatusNotImplemented, "SHARE_UNSUPPORTED", session.Notice(err))
	case errors.Is(err, share.ErrShareFailed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logFromRequest(r).Warn("request failed", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "UPSTREAM_FAILED", "Could not complete the request")
	default:
		logFromRequest(r).Warn("store failure", zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Unable to save workouts")
	}
}

func logFromRequest(r *http.Request) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.NewNop()
}
