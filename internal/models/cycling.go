package models

import "github.com/kjstillabower/workout-journal/internal/validation"

// Cycling adds elevation gain (m) and derives speed (km/h).
type Cycling struct {
	base
	elevationGain float64
}

// NewCycling validates the inputs and builds a cycling workout with pending weather.
// Zero elevation gain is accepted.
func NewCycling(coords Coords, distance, duration, elevationGain float64) (*Cycling, error) {
	if err := validation.Coords(coords.Lat, coords.Lng); err != nil {
		return nil, err
	}
	if err := validation.Finite(
		validation.F("distance", distance),
		validation.F("duration", duration),
		validation.F("elevationGain", elevationGain),
	); err != nil {
		return nil, err
	}
	if err := validation.Positive(validation.F("distance", distance), validation.F("duration", duration)); err != nil {
		return nil, err
	}
	if err := validation.NonNegative(validation.F("elevationGain", elevationGain)); err != nil {
		return nil, err
	}
	c := &Cycling{elevationGain: elevationGain}
	c.init(TypeCycling, coords, distance, duration)
	return c, nil
}

// RestoreCycling rebuilds a cycling workout from a persisted record. No validation.
func RestoreCycling(rec Record) *Cycling {
	c := &Cycling{elevationGain: rec.ElevationGain}
	c.restore(rec)
	return c
}

func (c *Cycling) Type() Type             { return TypeCycling }
func (c *Cycling) ElevationGain() float64 { return c.elevationGain }

// Speed is distance / (duration/60) in km/h.
func (c *Cycling) Speed() float64 {
	return c.distance / (c.duration / 60)
}
