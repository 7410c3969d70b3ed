// Package session holds the authoritative, insertion-ordered workout collection for
// one running process and coordinates persistence, the map, the rendered list,
// weather enrichment and replay around it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/workout-journal/internal/codec"
	"github.com/kjstillabower/workout-journal/internal/display"
	"github.com/kjstillabower/workout-journal/internal/mapview"
	"github.com/kjstillabower/workout-journal/internal/models"
	"github.com/kjstillabower/workout-journal/internal/observability"
	"github.com/kjstillabower/workout-journal/internal/position"
	"github.com/kjstillabower/workout-journal/internal/replay"
	"github.com/kjstillabower/workout-journal/internal/service"
	"github.com/kjstillabower/workout-journal/internal/share"
	"github.com/kjstillabower/workout-journal/internal/store"
	"github.com/kjstillabower/workout-journal/internal/validation"
)

var (
	ErrInvalidInput        = errors.New("invalid workout input")
	ErrDuplicateID         = errors.New("duplicate workout id")
	ErrNotFound            = errors.New("workout not found")
	ErrNothingToShare      = errors.New("no workouts to share")
	ErrShareUnsupported    = errors.New("sharing not supported")
	ErrPositionUnavailable = errors.New("position unavailable")
)

// Notice returns the user-facing message for err, or "" when err has none.
func Notice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "Inputs have to be positive numbers!"
	case errors.Is(err, ErrNothingToShare):
		return "No workouts to share!"
	case errors.Is(err, ErrShareUnsupported):
		return "Sharing not supported on this device."
	case errors.Is(err, ErrPositionUnavailable):
		return "Could not get your position"
	case errors.Is(err, ErrNotFound):
		return "Workout not found"
	}
	return ""
}

// ShareTitle is the title handed to the share facility.
const ShareTitle = "My Workouts"

// refreshTimeout bounds the re-persist that follows a weather resolution.
const refreshTimeout = 5 * time.Second

// Input is a user's request to record a workout. Cadence applies to running,
// ElevationGain to cycling.
type Input struct {
	Type          models.Type
	Coords        models.Coords
	Distance      float64
	Duration      float64
	Cadence       float64
	ElevationGain float64
}

type Option func(*Session)

func WithSurface(s mapview.Surface) Option { return func(x *Session) { x.surface = s } }

func WithPanel(p *display.Panel) Option { return func(x *Session) { x.panel = p } }

func WithPosition(p position.Source) Option { return func(x *Session) { x.position = p } }

func WithSharer(s share.Sharer) Option { return func(x *Session) { x.sharer = s } }

func WithEnricher(e *service.Enricher) Option { return func(x *Session) { x.enricher = e } }

// WithReplayInterval sets the delay between replay pans.
func WithReplayInterval(d time.Duration) Option { return func(x *Session) { x.replayInterval = d } }

func WithZoom(z int) Option {
	return func(x *Session) {
		if z > 0 {
			x.zoom = z
		}
	}
}

// Session is the owned application state. All methods are safe for concurrent use;
// mutations are serialized and each one is written to the store before it is
// committed in memory.
type Session struct {
	store    store.Store
	logger   *zap.Logger
	surface  mapview.Surface
	panel    *display.Panel
	position position.Source
	sharer   share.Sharer
	enricher *service.Enricher
	replay   *replay.Scheduler

	zoom           int
	replayInterval time.Duration

	mu       sync.Mutex
	workouts []models.Workout
	markers  map[string]mapview.Handle
	mapReady bool
}

// New creates an empty session over st. Call Load to restore saved workouts.
func New(st store.Store, logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		store:   st,
		logger:  logger,
		zoom:    mapview.DefaultZoom,
		markers: make(map[string]mapview.Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.surface == nil {
		s.surface = mapview.NewCanvas(logger)
	}
	if s.panel == nil {
		s.panel = display.NewPanel()
	}
	if s.enricher == nil {
		s.enricher = service.NewEnricher(nil, 0, logger)
	}
	s.replay = replay.NewScheduler(s.surface, s.replayInterval, logger)
	return s
}

// Load replaces the collection with the saved blob. A blob that fails to decode is
// treated as no saved data. Restored workouts are not re-enriched.
func (s *Session) Load(ctx context.Context) error {
	blob, ok, err := s.store.Get(ctx, store.WorkoutsKey)
	if err != nil {
		return fmt.Errorf("load workouts: %w", err)
	}

	var restored []models.Workout
	if ok {
		restored, err = codec.Decode(blob)
		if err != nil {
			s.logger.Warn("saved workouts unreadable, starting empty", zap.Error(err))
			restored = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeMarkersLocked()
	s.panel.Reset()
	s.workouts = restored
	for _, w := range restored {
		s.panel.Render(w)
		if s.mapReady {
			s.addMarkerLocked(w)
		}
	}
	observability.SessionWorkouts.Set(float64(len(restored)))
	s.logger.Info("session loaded", zap.Int("workouts", len(restored)))
	return nil
}

// InitMap centers the map on the current position and draws a marker per workout.
// On failure the map stays uninitialized and ErrPositionUnavailable is returned.
func (s *Session) InitMap(ctx context.Context) error {
	if s.position == nil {
		return ErrPositionUnavailable
	}
	pos, err := s.position.CurrentPosition(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPositionUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.surface.SetView(pos, s.zoom)
	s.mapReady = true
	for _, w := range s.workouts {
		if _, ok := s.markers[w.ID()]; !ok {
			s.addMarkerLocked(w)
		}
	}
	return nil
}

// MapReady reports whether InitMap has succeeded.
func (s *Session) MapReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapReady
}

// CreateWorkout validates in, records the new workout and starts its weather lookup.
// The returned workout's weather is still pending.
func (s *Session) CreateWorkout(ctx context.Context, in Input) (models.Workout, error) {
	w, err := build(in)
	if err != nil {
		observability.WorkoutsRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}

	if err := s.Add(ctx, w); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.indexLocked(w.ID()) >= 0 {
		if s.mapReady {
			s.addMarkerLocked(w)
		}
		s.panel.Render(w)
	}
	s.mu.Unlock()

	observability.WorkoutsCreatedTotal.WithLabelValues(string(w.Type())).Inc()
	s.enricher.Enrich(ctx, w, s.weatherResolved)
	return w, nil
}

func build(in Input) (models.Workout, error) {
	var (
		w   models.Workout
		err error
	)
	switch in.Type {
	case models.TypeRunning:
		w, err = models.NewRunning(in.Coords, in.Distance, in.Duration, in.Cadence)
	case models.TypeCycling:
		w, err = models.NewCycling(in.Coords, in.Distance, in.Duration, in.ElevationGain)
	default:
		return nil, fmt.Errorf("%w: unknown workout type %q", ErrInvalidInput, in.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return w, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, validation.ErrNotFinite):
		return "not_finite"
	case errors.Is(err, validation.ErrNotPositive):
		return "not_positive"
	case errors.Is(err, validation.ErrNegative):
		return "negative"
	case errors.Is(err, validation.ErrInvalidCoords):
		return "invalid_coords"
	default:
		return "unknown_type"
	}
}

// Add appends w and persists the collection. Nothing changes if the id is already
// present or the write fails.
func (s *Session) Add(ctx context.Context, w models.Workout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(w.ID()) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, w.ID())
	}

	next := make([]models.Workout, len(s.workouts), len(s.workouts)+1)
	copy(next, s.workouts)
	next = append(next, w)
	if err := s.persistLocked(ctx, next); err != nil {
		return err
	}
	s.workouts = next
	observability.SessionWorkouts.Set(float64(len(next)))
	return nil
}

// FindByID returns the workout with id.
func (s *Session) FindByID(id string) (models.Workout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.workouts[i], true
	}
	return nil, false
}

// Select resolves id and, when the map is initialized, centers it on the workout.
func (s *Session) Select(id string) (models.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	w := s.workouts[i]
	if s.mapReady {
		s.surface.SetView(w.Coords(), s.zoom)
	}
	return w, nil
}

// ClearAll erases the saved blob, then empties the collection, the rendered list, the
// markers and any replay. Lookups still in flight resolve into dropped workouts and
// change nothing visible.
func (s *Session) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Remove(ctx, store.WorkoutsKey); err != nil {
		return fmt.Errorf("clear workouts: %w", err)
	}
	n := len(s.workouts)
	s.workouts = nil
	s.removeMarkersLocked()
	s.panel.Reset()
	s.replay.Stop()
	observability.SessionWorkouts.Set(0)
	s.logger.Info("workouts cleared", zap.Int("dropped", n))
	return nil
}

// Workouts returns the collection in insertion order.
func (s *Session) Workouts() []models.Workout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Workout(nil), s.workouts...)
}

// Coords returns the workout coordinates in insertion order.
func (s *Session) Coords() []models.Coords {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Coords, len(s.workouts))
	for i, w := range s.workouts {
		out[i] = w.Coords()
	}
	return out
}

// Cards returns the rendered list, newest first.
func (s *Session) Cards() []display.Card {
	return s.panel.List()
}

// ShareText formats every workout for sharing.
func (s *Session) ShareText() (string, error) {
	ws := s.Workouts()
	if len(ws) == 0 {
		return "", ErrNothingToShare
	}
	entries := make([]string, len(ws))
	for i, w := range ws {
		entries[i] = shareEntry(w)
	}
	return strings.Join(entries, "\n\n"), nil
}

func shareEntry(w models.Workout) string {
	c := w.Coords()
	return fmt.Sprintf("%s Workout:\n- Distance: %s km\n- Duration: %s min\n- Date: %s\n- Location: https://www.google.com/maps?q=%s\n- Weather: %s",
		strings.ToUpper(string(w.Type())),
		strconv.FormatFloat(w.Distance(), 'f', -1, 64),
		strconv.FormatFloat(w.Duration(), 'f', -1, 64),
		w.CreatedAt().Local().Format("1/2/2006, 3:04:05 PM"),
		c.String(),
		w.Weather(),
	)
}

// Share hands the share text to the configured sharer.
func (s *Session) Share(ctx context.Context) (string, error) {
	text, err := s.ShareText()
	if err != nil {
		return "", err
	}
	if s.sharer == nil {
		return text, ErrShareUnsupported
	}
	if err := s.sharer.Share(ctx, ShareTitle, text); err != nil {
		return text, fmt.Errorf("share workouts: %w", err)
	}
	return text, nil
}

// Replay plays the coordinate sequence. It returns false when there is nothing to play.
func (s *Session) Replay() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.workouts) == 0 {
		return false
	}
	coords := make([]models.Coords, len(s.workouts))
	for i, w := range s.workouts {
		coords[i] = w.Coords()
	}
	s.replay.Start(coords)
	return true
}

// ReplayState reports the scheduler state and its completed-run count.
func (s *Session) ReplayState() (replay.State, int) {
	return s.replay.State(), s.replay.Runs()
}

// WaitReplay blocks until the replay is idle or ctx is done.
func (s *Session) WaitReplay(ctx context.Context) error {
	return s.replay.Wait(ctx)
}

// WaitEnrichment blocks until every started weather lookup has finished or ctx is done.
func (s *Session) WaitEnrichment(ctx context.Context) error {
	return s.enricher.Wait(ctx)
}

// weatherResolved refreshes the card and re-saves the collection if w is still part of it.
func (s *Session) weatherResolved(w models.Workout) {
	s.panel.UpdateWeather(w.ID(), w.Weather())

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(w.ID())
	if i < 0 || s.workouts[i] != w {
		observability.EnrichmentStaleTotal.WithLabelValues("workout_gone").Inc()
		s.logger.Debug("weather resolved for dropped workout", zap.String("workout_id", w.ID()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := s.persistLocked(ctx, s.workouts); err != nil {
		s.logger.Warn("save after weather update failed", zap.String("workout_id", w.ID()), zap.Error(err))
	}
}

func (s *Session) persistLocked(ctx context.Context, ws []models.Workout) error {
	blob, err := codec.Encode(ws)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, store.WorkoutsKey, blob); err != nil {
		return fmt.Errorf("save workouts: %w", err)
	}
	return nil
}

func (s *Session) indexLocked(id string) int {
	for i, w := range s.workouts {
		if w.ID() == id {
			return i
		}
	}
	return -1
}

func (s *Session) addMarkerLocked(w models.Workout) {
	s.markers[w.ID()] = s.surface.AddMarker(w.Coords(), mapview.PopupContent(w))
}

func (s *Session) removeMarkersLocked() {
	for id, h := range s.markers {
		s.surface.RemoveLayer(h)
		delete(s.markers, id)
	}
}
