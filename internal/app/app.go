// Package app assembles the workout engine from configuration. Both entry points use it so
// the service and the CLI run the same store, weather client, map and session wiring.
package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/kjstillabower/workout-journal/internal/client"
	"github.com/kjstillabower/workout-journal/internal/config"
	"github.com/kjstillabower/workout-journal/internal/display"
	"github.com/kjstillabower/workout-journal/internal/mapview"
	"github.com/kjstillabower/workout-journal/internal/position"
	"github.com/kjstillabower/workout-journal/internal/service"
	"github.com/kjstillabower/workout-journal/internal/session"
	"github.com/kjstillabower/workout-journal/internal/share"
	"github.com/kjstillabower/workout-journal/internal/store"
)

// Options adjusts the assembly for an entry point.
type Options struct {
	// ShareOutput receives shared text when no webhook is configured. Nil leaves sharing
	// unsupported unless a webhook is set.
	ShareOutput io.Writer
	// MapEvents is called for every map surface call.
	MapEvents func(mapview.Event)
	// WeatherClient replaces the configured OpenWeather client.
	WeatherClient client.WeatherClient
}

// App is the assembled engine.
type App struct {
	Store   store.Backend
	Canvas  *mapview.Canvas
	Panel   *display.Panel
	Session *session.Session
	// WeatherEnabled is false when no API key is configured and every lookup falls back.
	WeatherEnabled bool
	weather        *client.OpenWeatherClient
	logger         *zap.Logger
}

// New opens the store, builds the weather client and session, and loads saved workouts.
// A failed position lookup leaves the map uninitialized and is only logged.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger}

	st, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = st
	logger.Info("store backend", zap.String("backend", cfg.StoreBackend))

	var wc client.WeatherClient
	switch {
	case opts.WeatherClient != nil:
		wc = opts.WeatherClient
		a.WeatherEnabled = true
	case cfg.WeatherAPIKey != "":
		owc, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPITimeout,
			client.WithCircuitBreaker(uint32(cfg.BreakerFailures), cfg.BreakerCooldown),
			client.WithRateLimit(cfg.WeatherRateLimitRPS, cfg.WeatherRateLimitBurst),
		)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("weather client: %w", err)
		}
		a.weather = owc
		wc = owc
		a.WeatherEnabled = true
		logger.Info("weather enrichment enabled",
			zap.Int("breaker_failures", cfg.BreakerFailures),
			zap.Duration("breaker_cooldown", cfg.BreakerCooldown))
	default:
		logger.Warn("no weather API key configured; workouts will show N/A weather")
	}

	var canvasOpts []mapview.Option
	if opts.MapEvents != nil {
		canvasOpts = append(canvasOpts, mapview.WithEventHook(opts.MapEvents))
	}
	a.Canvas = mapview.NewCanvas(logger, canvasOpts...)
	a.Panel = display.NewPanel()

	pos, err := position.NewStatic(cfg.Home)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("home position: %w", err)
	}

	sessOpts := []session.Option{
		session.WithSurface(a.Canvas),
		session.WithPanel(a.Panel),
		session.WithPosition(pos),
		session.WithEnricher(service.NewEnricher(wc, cfg.WeatherAPITimeout, logger)),
		session.WithReplayInterval(cfg.ReplayInterval),
		session.WithZoom(cfg.MapZoom),
	}
	switch {
	case cfg.ShareWebhookURL != "":
		sessOpts = append(sessOpts, session.WithSharer(share.NewWebhook(cfg.ShareWebhookURL, cfg.ShareTimeout)))
	case opts.ShareOutput != nil:
		sessOpts = append(sessOpts, session.WithSharer(share.NewWriter(opts.ShareOutput)))
	}
	a.Session = session.New(st, logger, sessOpts...)

	if err := a.Session.Load(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	if err := a.Session.InitMap(ctx); err != nil {
		logger.Warn("map not initialized", zap.Error(err))
	}
	return a, nil
}

// ValidateWeather checks the configured API key against the provider. It is a no-op
// when weather is disabled or a custom client was supplied.
func (a *App) ValidateWeather(ctx context.Context) error {
	if a.weather == nil {
		return nil
	}
	return a.weather.ValidateAPIKey(ctx)
}

// Close waits for in-flight weather lookups until ctx is done, then closes the store.
func (a *App) Close(ctx context.Context) error {
	if err := a.Session.WaitEnrichment(ctx); err != nil {
		a.logger.Warn("weather lookups still running at close", zap.Error(err))
	}
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
