package models

import "time"

// Record is the flat, behavior-free view of a workout: every stored field plus
// the derived metric of its variant. It is what codecs read and write.
type Record struct {
	ID            string
	Type          Type
	CreatedAt     time.Time
	Coords        Coords
	Distance      float64
	Duration      float64
	Description   string
	Weather       string
	Cadence       float64
	Pace          float64
	ElevationGain float64
	Speed         float64
}

// ToRecord flattens w, including its variant's derived metric.
func ToRecord(w Workout) Record {
	rec := Record{
		ID:          w.ID(),
		Type:        w.Type(),
		CreatedAt:   w.CreatedAt(),
		Coords:      w.Coords(),
		Distance:    w.Distance(),
		Duration:    w.Duration(),
		Description: w.Description(),
		Weather:     w.Weather(),
	}
	switch v := w.(type) {
	case *Running:
		rec.Cadence = v.Cadence()
		rec.Pace = v.Pace()
	case *Cycling:
		rec.ElevationGain = v.ElevationGain()
		rec.Speed = v.Speed()
	}
	return rec
}
