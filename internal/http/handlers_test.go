package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/workout-journal/internal/client"
	"github.com/kjstillabower/workout-journal/internal/display"
	"github.com/kjstillabower/workout-journal/internal/lifecycle"
	"github.com/kjstillabower/workout-journal/internal/mapview"
	"github.com/kjstillabower/workout-journal/internal/models"
	"github.com/kjstillabower/workout-journal/internal/position"
	"github.com/kjstillabower/workout-journal/internal/service"
	"github.com/kjstillabower/workout-journal/internal/session"
	"github.com/kjstillabower/workout-journal/internal/share"
	"github.com/kjstillabower/workout-journal/internal/store"
	"github.com/kjstillabower/workout-journal/internal/traffic"
)

var berlin = models.Coords{Lat: 52.52, Lng: 13.405}

type mockWeatherClient struct {
	report  models.WeatherReport
	err     error
	release chan struct{} // if set, GetCurrentWeather blocks until closed or ctx.Done()
}

func (m *mockWeatherClient) GetCurrentWeather(ctx context.Context, at models.Coords) (models.WeatherReport, error) {
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return models.WeatherReport{}, ctx.Err()
		}
	}
	return m.report, m.err
}

type failingStore struct {
	store.Store
	mu         sync.Mutex
	failSet    bool
	failRemove bool
}

var errStoreDown = errors.New("store down")

func (f *failingStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	fail := f.failSet
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.Store.Set(ctx, key, value)
}

func (f *failingStore) Remove(ctx context.Context, key string) error {
	if f.failRemove {
		return errStoreDown
	}
	return f.Store.Remove(ctx, key)
}

type failingSharer struct{}

func (failingSharer) Share(context.Context, string, string) error {
	return share.ErrShareFailed
}

type envOptions struct {
	store      store.Store
	weather    client.WeatherClient
	sharer     share.Sharer
	health     *HealthConfig
	routerOpts RouterOptions
	logger     *zap.Logger
}

type testEnv struct {
	handler *Handler
	session *session.Session
	canvas  *mapview.Canvas
	store   store.Store
	router  *mux.Router
}

func newTestEnv(t testing.TB, o envOptions) *testEnv {
	t.Helper()
	if o.store == nil {
		o.store = store.NewInMemoryStore()
	}
	if o.weather == nil {
		o.weather = &mockWeatherClient{report: models.WeatherReport{Conditions: "clear sky", Temperature: 18}}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	canvas := mapview.NewCanvas(o.logger)
	home := berlin
	pos, err := position.NewStatic(&home)
	if err != nil {
		t.Fatalf("NewStatic() error = %v", err)
	}
	opts := []session.Option{
		session.WithSurface(canvas),
		session.WithPosition(pos),
		session.WithEnricher(service.NewEnricher(o.weather, time.Second, o.logger)),
		session.WithReplayInterval(5 * time.Millisecond),
	}
	if o.sharer != nil {
		opts = append(opts, session.WithSharer(o.sharer))
	}
	sess := session.New(o.store, o.logger, opts...)
	if err := sess.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := sess.InitMap(context.Background()); err != nil {
		t.Fatalf("InitMap() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sess.WaitEnrichment(ctx)
		_ = sess.WaitReplay(ctx)
	})

	h := NewHandler(sess, canvas, o.health, o.logger)
	return &testEnv{
		handler: h,
		session: sess,
		canvas:  canvas,
		store:   o.store,
		router:  NewRouter(h, o.logger, o.routerOpts),
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Correlation-ID", "test-correlation-id")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) waitEnrichment(t testing.TB) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.session.WaitEnrichment(ctx); err != nil {
		t.Fatalf("WaitEnrichment() error = %v", err)
	}
}

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v (body %q)", err, w.Body.String())
	}
	return body
}

type listBody struct {
	Workouts []display.Card `json:"workouts"`
	Count    int            `json:"count"`
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) listBody {
	t.Helper()
	var body listBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return body
}

const runningBody = `{"type":"running","lat":52.52,"lng":13.405,"distance":5,"duration":30,"cadence":170}`

// TestHandler_CreateWorkout_Running verifies that a running workout is created with a
// pending weather card, then shows the resolved weather once enrichment completes.
func TestHandler_CreateWorkout_Running(t *testing.T) {
	wc := &mockWeatherClient{
		report:  models.WeatherReport{Conditions: "clear sky", Temperature: 18},
		release: make(chan struct{}),
	}
	env := newTestEnv(t, envOptions{weather: wc})

	w := env.do("POST", "/workouts", runningBody)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusCreated, w.Body.String())
	}
	var card display.Card
	if err := json.NewDecoder(w.Body).Decode(&card); err != nil {
		t.Fatalf("decode card: %v", err)
	}
	if card.Type != models.TypeRunning || card.Metric != "6.0" || card.MetricUnit != "min/km" {
		t.Errorf("card = %+v, want running with pace 6.0 min/km", card)
	}
	if card.Weather != "☁️ Fetching weather..." || card.WeatherDone {
		t.Errorf("card weather = %q done=%v, want pending", card.Weather, card.WeatherDone)
	}
	if got := w.Header().Get("Location"); got != "/workouts/"+card.ID {
		t.Errorf("Location = %q, want /workouts/%s", got, card.ID)
	}

	close(wc.release)
	env.waitEnrichment(t)

	list := decodeList(t, env.do("GET", "/workouts", ""))
	if list.Count != 1 || list.Workouts[0].Weather != "☁️ clear sky, 18°C" {
		t.Errorf("list = %+v, want one card with resolved weather", list)
	}
	if layers := env.canvas.Layers(mapview.LayerMarker); len(layers) != 1 {
		t.Errorf("marker layers = %d, want 1", len(layers))
	}
}

// TestHandler_CreateWorkout_CyclingZeroElevation verifies that zero elevation gain is accepted.
func TestHandler_CreateWorkout_CyclingZeroElevation(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do("POST", "/workouts", `{"type":"Cycling","lat":52.52,"lng":13.405,"distance":20,"duration":60,"elevationGain":0}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusCreated, w.Body.String())
	}
	var card display.Card
	if err := json.NewDecoder(w.Body).Decode(&card); err != nil {
		t.Fatalf("decode card: %v", err)
	}
	if card.Type != models.TypeCycling || card.Metric != "20.0" || card.Detail != "0" {
		t.Errorf("card = %+v, want cycling 20.0 km/h with 0 m", card)
	}
}

// TestHandler_CreateWorkout_Rejected verifies request and domain validation responses.
func TestHandler_CreateWorkout_Rejected(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    string
		wantMessage string
	}{
		{"not json", `distance=5`, "INVALID_REQUEST", "request body must be a JSON object"},
		{"missing type", `{"lat":1,"lng":1,"distance":5,"duration":30,"cadence":170}`, "INVALID_REQUEST", "type is required"},
		{"unknown type", `{"type":"swimming","lat":1,"lng":1,"distance":5,"duration":30}`, "INVALID_REQUEST", "type must be one of"},
		{"missing lat", `{"type":"running","lng":1,"distance":5,"duration":30,"cadence":170}`, "INVALID_REQUEST", "lat is required"},
		{"negative distance", `{"type":"running","lat":1,"lng":1,"distance":-5,"duration":30,"cadence":170}`, "INVALID_INPUT", "Inputs have to be positive numbers!"},
		{"zero duration", `{"type":"running","lat":1,"lng":1,"distance":5,"duration":0,"cadence":170}`, "INVALID_INPUT", "Inputs have to be positive numbers!"},
		{"zero cadence", `{"type":"running","lat":1,"lng":1,"distance":5,"duration":30,"cadence":0}`, "INVALID_INPUT", "Inputs have to be positive numbers!"},
		{"negative elevation", `{"type":"cycling","lat":1,"lng":1,"distance":5,"duration":30,"elevationGain":-1}`, "INVALID_INPUT", "Inputs have to be positive numbers!"},
		{"latitude off the globe", `{"type":"running","lat":100,"lng":1,"distance":5,"duration":30,"cadence":170}`, "INVALID_INPUT", "Inputs have to be positive numbers!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, envOptions{})

			w := env.do("POST", "/workouts", tt.body)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			body := decodeError(t, w)
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
			if !strings.Contains(body.Error.Message, tt.wantMessage) {
				t.Errorf("message = %q, want containing %q", body.Error.Message, tt.wantMessage)
			}
			if body.Error.RequestID != "test-correlation-id" {
				t.Errorf("requestId = %q, want test-correlation-id", body.Error.RequestID)
			}
			if n := len(env.session.Workouts()); n != 0 {
				t.Errorf("session has %d workouts after rejection", n)
			}
		})
	}
}

// TestHandler_CreateWorkout_StoreFailure verifies that a failed write returns 503 and
// leaves the collection unchanged.
func TestHandler_CreateWorkout_StoreFailure(t *testing.T) {
	st := &failingStore{Store: store.NewInMemoryStore(), failSet: true}
	env := newTestEnv(t, envOptions{store: st})

	w := env.do("POST", "/workouts", runningBody)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if got := decodeError(t, w).Error.Code; got != "STORE_UNAVAILABLE" {
		t.Errorf("code = %q, want STORE_UNAVAILABLE", got)
	}
	if list := decodeList(t, env.do("GET", "/workouts", "")); list.Count != 0 {
		t.Errorf("count = %d, want 0", list.Count)
	}
}

// TestHandler_ListWorkouts verifies the empty list shape and newest-first ordering.
func TestHandler_ListWorkouts(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do("GET", "/workouts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"workouts":[]`) {
		t.Errorf("empty list body = %s, want workouts []", w.Body.String())
	}

	env.do("POST", "/workouts", runningBody)
	env.do("POST", "/workouts", `{"type":"cycling","lat":48.85,"lng":2.35,"distance":20,"duration":60,"elevationGain":150}`)

	list := decodeList(t, env.do("GET", "/workouts", ""))
	if list.Count != 2 {
		t.Fatalf("count = %d, want 2", list.Count)
	}
	if list.Workouts[0].Type != models.TypeCycling || list.Workouts[1].Type != models.TypeRunning {
		t.Errorf("order = %s, %s; want cycling first", list.Workouts[0].Type, list.Workouts[1].Type)
	}
}

// TestHandler_GetWorkout verifies that selecting a workout centers the map on it and
// that an unknown id returns 404.
func TestHandler_GetWorkout(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	created := env.do("POST", "/workouts", `{"type":"running","lat":48.85,"lng":2.35,"distance":5,"duration":25,"cadence":165}`)
	var card display.Card
	if err := json.NewDecoder(created.Body).Decode(&card); err != nil {
		t.Fatalf("decode card: %v", err)
	}

	w := env.do("GET", "/workouts/"+card.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	view := env.canvas.View()
	if view.Center != (models.Coords{Lat: 48.85, Lng: 2.35}) || view.Zoom != mapview.DefaultZoom {
		t.Errorf("view = %+v, want centered on workout", view)
	}

	w = env.do("GET", "/workouts/does-not-exist", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	body := decodeError(t, w)
	if body.Error.Code != "NOT_FOUND" || body.Error.Message != "Workout not found" {
		t.Errorf("error = %+v, want NOT_FOUND", body.Error)
	}
}

// TestHandler_ClearWorkouts verifies that clearing empties the list, the map and the store.
func TestHandler_ClearWorkouts(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.do("POST", "/workouts", runningBody)
	env.waitEnrichment(t)

	w := env.do("DELETE", "/workouts", "")

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if list := decodeList(t, env.do("GET", "/workouts", "")); list.Count != 0 {
		t.Errorf("count = %d, want 0", list.Count)
	}
	if _, ok, _ := env.store.Get(context.Background(), store.WorkoutsKey); ok {
		t.Error("workouts blob still stored after clear")
	}
	if layers := env.canvas.Layers(mapview.LayerMarker); len(layers) != 0 {
		t.Errorf("marker layers = %d, want 0", len(layers))
	}
}

// TestHandler_ClearWorkouts_StoreFailure verifies that a failed removal keeps the workouts.
func TestHandler_ClearWorkouts_StoreFailure(t *testing.T) {
	st := &failingStore{Store: store.NewInMemoryStore(), failRemove: true}
	env := newTestEnv(t, envOptions{store: st})
	env.do("POST", "/workouts", runningBody)

	w := env.do("DELETE", "/workouts", "")

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	if n := len(env.session.Workouts()); n != 1 {
		t.Errorf("workouts = %d, want 1", n)
	}
}

// TestHandler_ShareWorkouts verifies the share responses for each sharer outcome.
func TestHandler_ShareWorkouts(t *testing.T) {
	t.Run("nothing to share", func(t *testing.T) {
		env := newTestEnv(t, envOptions{sharer: share.NewWriter(&bytes.Buffer{})})
		w := env.do("POST", "/share", "")
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
		}
		if body := decodeError(t, w); body.Error.Message != "No workouts to share!" {
			t.Errorf("message = %q", body.Error.Message)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		env.do("POST", "/workouts", runningBody)
		w := env.do("POST", "/share", "")
		if w.Code != http.StatusNotImplemented {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusNotImplemented)
		}
		if got := decodeError(t, w).Error.Code; got != "SHARE_UNSUPPORTED" {
			t.Errorf("code = %q, want SHARE_UNSUPPORTED", got)
		}
	})

	t.Run("shared", func(t *testing.T) {
		var out bytes.Buffer
		env := newTestEnv(t, envOptions{sharer: share.NewWriter(&out)})
		env.do("POST", "/workouts", runningBody)
		env.waitEnrichment(t)

		w := env.do("POST", "/share", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["title"] != session.ShareTitle {
			t.Errorf("title = %q, want %q", body["title"], session.ShareTitle)
		}
		for _, want := range []string{"RUNNING Workout:", "- Distance: 5 km", "https://www.google.com/maps?q=52.52,13.405", "- Weather: clear sky, 18°C"} {
			if !strings.Contains(body["text"], want) {
				t.Errorf("text missing %q:\n%s", want, body["text"])
			}
		}
		if !strings.HasPrefix(out.String(), "My Workouts\n\n") {
			t.Errorf("sharer output = %q", out.String())
		}
	})

	t.Run("sharer fails", func(t *testing.T) {
		env := newTestEnv(t, envOptions{sharer: failingSharer{}})
		env.do("POST", "/workouts", runningBody)
		w := env.do("POST", "/share", "")
		if w.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
		}
	})
}

// TestHandler_Replay verifies starting a replay and polling it back to idle.
func TestHandler_Replay(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	w := env.do("POST", "/replay", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty replay status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}

	env.do("POST", "/workouts", runningBody)
	env.do("POST", "/workouts", `{"type":"running","lat":52.53,"lng":13.41,"distance":3,"duration":20,"cadence":160}`)

	w = env.do("POST", "/replay", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := env.session.WaitReplay(ctx); err != nil {
		t.Fatalf("WaitReplay() error = %v", err)
	}

	var state struct {
		State string `json:"state"`
		Runs  int    `json:"runs"`
	}
	if err := json.NewDecoder(env.do("GET", "/replay", "").Body).Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.State != "idle" || state.Runs != 1 {
		t.Errorf("replay = %+v, want idle after 1 run", state)
	}
	if got := env.canvas.View().Center; got != (models.Coords{Lat: 52.53, Lng: 13.41}) {
		t.Errorf("map center = %v, want last workout", got)
	}
}

// TestHandler_GetMap verifies the canvas snapshot served at /map.
func TestHandler_GetMap(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.do("POST", "/workouts", runningBody)

	w := env.do("GET", "/map", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var snap mapview.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !snap.View.Initialized || snap.View.Center != berlin {
		t.Errorf("view = %+v, want initialized at home", snap.View)
	}
	if len(snap.Layers) != 1 || snap.Layers[0].Kind != mapview.LayerMarker || !strings.HasPrefix(snap.Layers[0].Popup, "🏃‍♂️ Running on ") {
		t.Errorf("layers = %+v, want one running marker", snap.Layers)
	}
}

// TestHandler_GetHealth verifies the health status for each phase, store ping and
// fallback rate.
func TestHandler_GetHealth(t *testing.T) {
	defer lifecycle.SetPhase(lifecycle.PhaseStarting)
	defer traffic.Reset()

	tests := []struct {
		name       string
		phase      lifecycle.Phase
		health     *HealthConfig
		fallbacks  int
		resolved   int
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no config",
			phase:      lifecycle.PhaseReady,
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{"weatherApi": "disabled"},
		},
		{
			name:       "starting",
			phase:      lifecycle.PhaseStarting,
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "starting",
		},
		{
			name:       "shutting down",
			phase:      lifecycle.PhaseShuttingDown,
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "shutting-down",
		},
		{
			name:       "store unreachable",
			phase:      lifecycle.PhaseReady,
			health:     &HealthConfig{StorePing: func() error { return errStoreDown }},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "degraded",
			wantChecks: map[string]string{"store": "unhealthy", "weatherApi": "disabled"},
		},
		{
			name:       "fallback rate breach",
			phase:      lifecycle.PhaseReady,
			health:     &HealthConfig{WeatherEnabled: true, DegradedWindow: time.Minute, DegradedFallbackPct: 50, DegradedMinSamples: 4, StorePing: func() error { return nil }},
			fallbacks:  3,
			resolved:   1,
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
			wantChecks: map[string]string{"store": "healthy", "weatherApi": "unhealthy"},
		},
		{
			name:       "too few samples",
			phase:      lifecycle.PhaseReady,
			health:     &HealthConfig{WeatherEnabled: true, DegradedWindow: time.Minute, DegradedFallbackPct: 50, DegradedMinSamples: 4},
			fallbacks:  3,
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{"weatherApi": "healthy"},
		},
		{
			name:       "fallbacks ignored when weather disabled",
			phase:      lifecycle.PhaseReady,
			health:     &HealthConfig{DegradedWindow: time.Minute, DegradedFallbackPct: 50, DegradedMinSamples: 1},
			fallbacks:  5,
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{"weatherApi": "disabled"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			traffic.Reset()
			lifecycle.SetPhase(tt.phase)
			for i := 0; i < tt.fallbacks; i++ {
				traffic.RecordFallback()
			}
			for i := 0; i < tt.resolved; i++ {
				traffic.RecordResolved()
			}
			env := newTestEnv(t, envOptions{health: tt.health})

			w := env.do("GET", "/health", "")

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			var body struct {
				Status  string            `json:"status"`
				Service string            `json:"service"`
				Checks  map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if body.Service != "workout-journal" {
				t.Errorf("service = %q", body.Service)
			}
			for k, want := range tt.wantChecks {
				if got := body.Checks[k]; got != want {
					t.Errorf("checks[%s] = %q, want %q", k, got, want)
				}
			}
		})
	}
}

// TestHandler_GetHealth_LogsTransition verifies that a status change is logged once.
func TestHandler_GetHealth_LogsTransition(t *testing.T) {
	defer lifecycle.SetPhase(lifecycle.PhaseStarting)
	core, logs := observer.New(zap.InfoLevel)
	env := newTestEnv(t, envOptions{logger: zap.New(core), health: &HealthConfig{}})

	lifecycle.SetPhase(lifecycle.PhaseReady)
	env.do("GET", "/health", "")
	env.do("GET", "/health", "")
	lifecycle.SetPhase(lifecycle.PhaseShuttingDown)
	env.do("GET", "/health", "")

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("transition logs = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != "healthy" || fields["current_status"] != "shutting-down" {
		t.Errorf("transition fields = %v", fields)
	}
}

// TestHandler_TestEndpoints verifies the testing-mode simulation routes.
func TestHandler_TestEndpoints(t *testing.T) {
	defer lifecycle.SetPhase(lifecycle.PhaseStarting)
	defer traffic.Reset()
	traffic.Reset()
	lifecycle.SetPhase(lifecycle.PhaseReady)

	env := newTestEnv(t, envOptions{
		health:     &HealthConfig{WeatherEnabled: true, DegradedWindow: time.Minute, DegradedFallbackPct: 50, DegradedMinSamples: 4},
		routerOpts: RouterOptions{TestingMode: true},
	})

	w := env.do("POST", "/test/fallback", `{"count":4}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var action map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&action); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if action["state"] != "degraded" {
		t.Errorf("state = %v, want degraded", action["state"])
	}

	var status map[string]interface{}
	if err := json.NewDecoder(env.do("GET", "/test", "").Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status["fallbacks_in_window"] != float64(4) {
		t.Errorf("fallbacks_in_window = %v, want 4", status["fallbacks_in_window"])
	}

	env.do("POST", "/test/reset", "")
	if _, total := traffic.FallbackRate(time.Minute); total != 0 {
		t.Errorf("total after reset = %d, want 0", total)
	}

	if w := env.do("POST", "/test/explode", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown action status = %d, want %d", w.Code, http.StatusNotFound)
	}

	plain := newTestEnv(t, envOptions{})
	if w := plain.do("GET", "/test", ""); w.Code != http.StatusNotFound {
		t.Errorf("/test without testing mode = %d, want %d", w.Code, http.StatusNotFound)
	}
}
