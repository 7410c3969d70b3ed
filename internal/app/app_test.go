package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kjstillabower/workout-journal/internal/config"
	"github.com/kjstillabower/workout-journal/internal/mapview"
	"github.com/kjstillabower/workout-journal/internal/models"
	"github.com/kjstillabower/workout-journal/internal/session"
	"github.com/kjstillabower/workout-journal/internal/store"
)

type stubWeather struct{}

func (stubWeather) GetCurrentWeather(context.Context, models.Coords) (models.WeatherReport, error) {
	return models.WeatherReport{Conditions: "light rain", Temperature: 9.5}, nil
}

func testConfig(backend string) *config.Config {
	return &config.Config{
		StoreBackend:      backend,
		SQLitePath:        "workouts.db",
		WeatherAPIURL:     "http://127.0.0.1:1/weather",
		WeatherAPITimeout: time.Second,
		MapZoom:           13,
		ReplayInterval:    5 * time.Millisecond,
		ShareTimeout:      time.Second,
	}
}

func closeApp(t *testing.T, a *App) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// TestNew_WithoutAPIKey verifies that a missing key falls back to N/A weather.
func TestNew_WithoutAPIKey(t *testing.T) {
	a, err := New(context.Background(), testConfig(store.BackendInMemory), nil, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closeApp(t, a)

	if a.WeatherEnabled {
		t.Error("WeatherEnabled = true without an API key")
	}
	if err := a.ValidateWeather(context.Background()); err != nil {
		t.Errorf("ValidateWeather() error = %v, want nil when disabled", err)
	}
	if a.Session.MapReady() {
		t.Error("map initialized without a home position")
	}

	w, err := a.Session.CreateWorkout(context.Background(), session.Input{
		Type: models.TypeRunning, Coords: models.Coords{Lat: 1, Lng: 1}, Distance: 5, Duration: 30, Cadence: 170,
	})
	if err != nil {
		t.Fatalf("CreateWorkout() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Session.WaitEnrichment(ctx); err != nil {
		t.Fatalf("WaitEnrichment() error = %v", err)
	}
	if got := w.Weather(); got != models.WeatherUnavailable {
		t.Errorf("Weather() = %q, want %q", got, models.WeatherUnavailable)
	}
}

// TestNew_WithAPIKey verifies that a configured key builds a live client.
func TestNew_WithAPIKey(t *testing.T) {
	cfg := testConfig(store.BackendInMemory)
	cfg.WeatherAPIKey = "0123456789abcdef"
	cfg.BreakerFailures = 5
	cfg.BreakerCooldown = time.Second
	cfg.WeatherRateLimitRPS = 1
	cfg.WeatherRateLimitBurst = 1

	a, err := New(context.Background(), cfg, nil, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closeApp(t, a)
	if !a.WeatherEnabled || a.weather == nil {
		t.Error("weather client not built from API key")
	}
}

func TestNew_ShortAPIKeyRejected(t *testing.T) {
	cfg := testConfig(store.BackendInMemory)
	cfg.WeatherAPIKey = "short"

	if _, err := New(context.Background(), cfg, nil, Options{}); err == nil {
		t.Fatal("New() error = nil, want weather client error")
	}
}

// TestNew_HomeAndMapEvents verifies that a home position initializes the map and that
// map calls reach the event hook.
func TestNew_HomeAndMapEvents(t *testing.T) {
	cfg := testConfig(store.BackendInMemory)
	home := models.Coords{Lat: 52.52, Lng: 13.405}
	cfg.Home = &home
	var kinds []mapview.EventKind

	a, err := New(context.Background(), cfg, nil, Options{
		WeatherClient: stubWeather{},
		MapEvents:     func(ev mapview.Event) { kinds = append(kinds, ev.Kind) },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closeApp(t, a)

	if !a.Session.MapReady() || a.Canvas.View().Center != home {
		t.Errorf("view = %+v, want centered on home", a.Canvas.View())
	}
	if len(kinds) != 1 || kinds[0] != mapview.EventSetView {
		t.Errorf("events = %v, want [set_view]", kinds)
	}
}

func TestNew_InvalidHome(t *testing.T) {
	cfg := testConfig(store.BackendInMemory)
	cfg.Home = &models.Coords{Lat: 91, Lng: 0}

	if _, err := New(context.Background(), cfg, nil, Options{}); err == nil {
		t.Fatal("New() error = nil, want invalid home error")
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New(context.Background(), testConfig("redis"), nil, Options{}); err == nil {
		t.Fatal("New() error = nil, want store error")
	}
}

// TestNew_SQLiteReloadAndShare verifies reload from the SQLite backend and sharing to
// the configured writer.
func TestNew_SQLiteReloadAndShare(t *testing.T) {
	cfg := testConfig(store.BackendSQLite)
	cfg.SQLitePath = filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	first, err := New(ctx, cfg, nil, Options{WeatherClient: stubWeather{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := first.Session.CreateWorkout(ctx, session.Input{
		Type: models.TypeCycling, Coords: models.Coords{Lat: 48.85, Lng: 2.35}, Distance: 20, Duration: 60,
	}); err != nil {
		t.Fatalf("CreateWorkout() error = %v", err)
	}
	closeApp(t, first)

	var out bytes.Buffer
	second, err := New(ctx, cfg, nil, Options{ShareOutput: &out})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer closeApp(t, second)

	ws := second.Session.Workouts()
	if len(ws) != 1 || ws[0].Weather() != "light rain, 9.5°C" {
		t.Fatalf("reloaded workouts = %v", ws)
	}
	if _, err := second.Session.Share(ctx); err != nil {
		t.Fatalf("Share() error = %v", err)
	}
	if !strings.Contains(out.String(), "CYCLING Workout:") {
		t.Errorf("shared output = %q", out.String())
	}
}
