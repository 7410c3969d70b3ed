// Package replay pans the map along the sequence of workout coordinates.
//
// Each Start begins a new generation. Step timers carry the generation they were
// scheduled for and do nothing once a newer Start or a Stop has superseded it.
package replay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/workout-journal/internal/mapview"
	"github.com/kjstillabower/workout-journal/internal/models"
	"github.com/kjstillabower/workout-journal/internal/observability"
)

// DefaultInterval is the delay between consecutive pans.
const DefaultInterval = time.Second

type State int

const (
	Idle State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

// Scheduler owns the replay path layer and the step timers.
type Scheduler struct {
	surface  mapview.Surface
	interval time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	gen   uint64
	state State
	path  mapview.Handle
	timer *time.Timer
	runs  int
	idle  chan struct{}
}

func NewScheduler(surface mapview.Surface, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	idle := make(chan struct{})
	close(idle)
	return &Scheduler{surface: surface, interval: interval, logger: logger, idle: idle}
}

// Start draws the path through coords and pans to each point in turn, the first
// immediately. An empty sequence is a no-op. Starting while playing removes the
// previous path and restarts from the first point.
func (s *Scheduler) Start(coords []models.Coords) {
	if len(coords) == 0 {
		return
	}
	path := append([]models.Coords(nil), coords...)

	s.mu.Lock()
	if s.state == Playing {
		observability.ReplayRunsTotal.WithLabelValues("superseded").Inc()
		s.logger.Debug("replay superseded", zap.Uint64("generation", s.gen))
	}
	s.resetLocked()
	s.gen++
	gen := s.gen
	s.path = s.surface.DrawPolyline(path)
	if s.state == Idle {
		s.idle = make(chan struct{})
	}
	s.state = Playing
	observability.ReplayRunsTotal.WithLabelValues("started").Inc()
	s.logger.Info("replay started", zap.Uint64("generation", gen), zap.Int("points", len(path)))
	s.mu.Unlock()

	s.step(gen, path, 0)
}

func (s *Scheduler) step(gen uint64, path []models.Coords, i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}

	s.surface.PanTo(path[i])
	observability.ReplayStepsTotal.Inc()

	if i+1 < len(path) {
		s.timer = time.AfterFunc(s.interval, func() { s.step(gen, path, i+1) })
		return
	}

	s.timer = nil
	s.runs++
	s.enterIdleLocked()
	observability.ReplayRunsTotal.WithLabelValues("completed").Inc()
	s.logger.Info("replay completed", zap.Uint64("generation", gen))
}

// Stop cancels any pending steps and removes the path.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.state == Playing {
		observability.ReplayRunsTotal.WithLabelValues("stopped").Inc()
	}
	s.resetLocked()
	s.enterIdleLocked()
}

// resetLocked stops the pending timer and removes the drawn path.
func (s *Scheduler) resetLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.path != 0 {
		s.surface.RemoveLayer(s.path)
		s.path = 0
	}
}

func (s *Scheduler) enterIdleLocked() {
	if s.state == Playing {
		close(s.idle)
	}
	s.state = Idle
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Runs returns the number of replays that reached their last point.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Wait blocks until the scheduler is idle or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
