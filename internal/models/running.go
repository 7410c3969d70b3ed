package models

import "github.com/kjstillabower/workout-journal/internal/validation"

// Running adds cadence (steps/min) and derives pace (min/km).
type Running struct {
	base
	cadence float64
}

// NewRunning validates the inputs and builds a running workout with pending weather.
func NewRunning(coords Coords, distance, duration, cadence float64) (*Running, error) {
	if err := validation.Coords(coords.Lat, coords.Lng); err != nil {
		return nil, err
	}
	fields := []validation.Field{
		validation.F("distance", distance),
		validation.F("duration", duration),
		validation.F("cadence", cadence),
	}
	if err := validation.Finite(fields...); err != nil {
		return nil, err
	}
	if err := validation.Positive(fields...); err != nil {
		return nil, err
	}
	r := &Running{cadence: cadence}
	r.init(TypeRunning, coords, distance, duration)
	return r, nil
}

// RestoreRunning rebuilds a running workout from a persisted record. No validation.
func RestoreRunning(rec Record) *Running {
	r := &Running{cadence: rec.Cadence}
	r.restore(rec)
	return r
}

func (r *Running) Type() Type       { return TypeRunning }
func (r *Running) Cadence() float64 { return r.cadence }

// Pace is duration / distance in min/km.
func (r *Running) Pace() float64 {
	return r.duration / r.distance
}
