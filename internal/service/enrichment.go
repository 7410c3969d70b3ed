// Package service runs asynchronous weather enrichment for workouts.
package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/workout-journal/internal/client"
	"github.com/kjstillabower/workout-journal/internal/models"
	"github.com/kjstillabower/workout-journal/internal/observability"
	"github.com/kjstillabower/workout-journal/internal/traffic"
)

// categoryUnconfigured labels fallbacks produced when no weather client is configured.
const categoryUnconfigured = "unconfigured"

// Enricher resolves the weather field of new workouts in the background. Every lookup
// is a single attempt; any failure resolves the workout to models.WeatherUnavailable.
type Enricher struct {
	client  client.WeatherClient
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewEnricher returns an Enricher bounded by timeout per lookup. A nil weather client
// is allowed: every workout then resolves to the fallback immediately.
func NewEnricher(c client.WeatherClient, timeout time.Duration, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{client: c, timeout: timeout, logger: logger}
}

// loggerFromContext extracts a request-scoped zap.Logger from ctx if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// Enrich starts the lookup for w and returns immediately. onResolved runs on the
// lookup goroutine only when this call moved w out of the pending state; it may be nil.
// ctx supplies request values (correlation id, logger) but its cancellation is ignored:
// the lookup outlives the request that created the workout.
func (e *Enricher) Enrich(ctx context.Context, w models.Workout, onResolved func(models.Workout)) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)

	e.wg.Add(1)
	observability.EnrichmentsInFlight.Inc()
	go func() {
		defer e.wg.Done()
		defer observability.EnrichmentsInFlight.Dec()
		e.run(ctx, w, onResolved)
	}()
}

func (e *Enricher) run(ctx context.Context, w models.Workout, onResolved func(models.Workout)) {
	logger := loggerFromContext(ctx)
	if logger == nil {
		logger = e.logger
	}
	logger = logger.With(zap.String("workout_id", w.ID()))

	text, category := e.lookup(ctx, w.Coords())

	if category == "" {
		observability.EnrichmentsTotal.WithLabelValues("resolved", "").Inc()
		traffic.RecordResolved()
	} else {
		observability.EnrichmentsTotal.WithLabelValues("fallback", category).Inc()
		traffic.RecordFallback()
	}

	if !w.ResolveWeather(text) {
		observability.EnrichmentStaleTotal.WithLabelValues("already_resolved").Inc()
		logger.Debug("weather already resolved", zap.String("weather", w.Weather()))
		return
	}
	logger.Debug("weather resolved", zap.String("weather", text), zap.String("category", category))

	if onResolved != nil {
		onResolved(w)
	}
}

// lookup returns the weather text and the failure category ("" on success).
func (e *Enricher) lookup(ctx context.Context, at models.Coords) (string, string) {
	if e.client == nil {
		return models.WeatherUnavailable, categoryUnconfigured
	}

	reqCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	report, err := e.client.GetCurrentWeather(reqCtx, at)
	if err != nil {
		category := string(client.CategorizeError(err))
		logger := loggerFromContext(ctx)
		if logger == nil {
			logger = e.logger
		}
		logger.Warn("weather lookup failed, using fallback",
			zap.String("coords", at.String()),
			zap.String("category", category),
			zap.Error(err),
		)
		return models.WeatherUnavailable, category
	}
	return report.Summary(), ""
}

// Wait blocks until every started lookup has finished or ctx is done.
func (e *Enricher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
