// Package codec converts the ordered workout collection to and from the single
// string blob kept in the durable store.
//
// Encode writes every field of every workout, derived ones included. Decode
// dispatches on the stored "type" and rebuilds the matching variant, so the
// returned values carry their Pace/Speed behavior rather than being bare records.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kjstillabower/workout-journal/internal/models"
	"github.com/kjstillabower/workout-journal/internal/validation"
)

// ErrUnknownType is returned when a stored record has a type with no variant.
var ErrUnknownType = errors.New("unknown workout type")

// ErrInvalidRecord is returned when a stored record's distance or duration
// cannot produce a finite pace or speed.
var ErrInvalidRecord = errors.New("invalid workout record")

type record struct {
	ID          string     `json:"id"`
	Date        time.Time  `json:"date"`
	Coords      [2]float64 `json:"coords"`
	Distance    float64    `json:"distance"`
	Duration    float64    `json:"duration"`
	Weather     string     `json:"weather"`
	Type        string     `json:"type"`
	Description string     `json:"description"`

	Cadence *float64 `json:"cadence,omitempty"`
	Pace    *float64 `json:"pace,omitempty"`

	ElevationGain *float64 `json:"elevationGain,omitempty"`
	Speed         *float64 `json:"speed,omitempty"`
}

// Encode serializes workouts in order. A nil or empty slice encodes to "[]".
func Encode(workouts []models.Workout) (string, error) {
	out := make([]record, 0, len(workouts))
	for _, w := range workouts {
		out = append(out, fromModel(models.ToRecord(w)))
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode workouts: %w", err)
	}
	return string(raw), nil
}

// Decode rebuilds workouts from a blob produced by Encode. An empty blob, or the
// literal "null", yields an empty slice and no error. Only distance and duration
// are checked, since pace and speed derive from them; weather is taken as stored.
func Decode(blob string) ([]models.Workout, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" || blob == "null" {
		return []models.Workout{}, nil
	}
	var in []record
	if err := json.Unmarshal([]byte(blob), &in); err != nil {
		return nil, fmt.Errorf("decode workouts: %w", err)
	}
	out := make([]models.Workout, 0, len(in))
	for i, r := range in {
		w, err := toModel(r)
		if err != nil {
			return nil, fmt.Errorf("decode workout %d (%s): %w", i, r.ID, err)
		}
		out = append(out, w)
	}
	return out, nil
}

// Records flattens workouts for callers that need plain data (exports, listings).
func Records(workouts []models.Workout) []models.Record {
	out := make([]models.Record, 0, len(workouts))
	for _, w := range workouts {
		out = append(out, models.ToRecord(w))
	}
	return out
}

func fromModel(m models.Record) record {
	r := record{
		ID:          m.ID,
		Date:        m.CreatedAt,
		Coords:      [2]float64{m.Coords.Lat, m.Coords.Lng},
		Distance:    m.Distance,
		Duration:    m.Duration,
		Weather:     m.Weather,
		Type:        string(m.Type),
		Description: m.Description,
	}
	switch m.Type {
	case models.TypeRunning:
		r.Cadence, r.Pace = ptr(m.Cadence), ptr(m.Pace)
	case models.TypeCycling:
		r.ElevationGain, r.Speed = ptr(m.ElevationGain), ptr(m.Speed)
	}
	return r
}

func toModel(r record) (models.Workout, error) {
	t := models.Type(r.Type)
	if t != models.TypeRunning && t != models.TypeCycling {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, r.Type)
	}
	if err := validation.Positive(validation.F("distance", r.Distance), validation.F("duration", r.Duration)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	m := models.Record{
		ID:            r.ID,
		Type:          t,
		CreatedAt:     r.Date,
		Coords:        models.Coords{Lat: r.Coords[0], Lng: r.Coords[1]},
		Distance:      r.Distance,
		Duration:      r.Duration,
		Description:   r.Description,
		Weather:       r.Weather,
		Cadence:       deref(r.Cadence),
		ElevationGain: deref(r.ElevationGain),
	}
	if t == models.TypeRunning {
		return models.RestoreRunning(m), nil
	}
	return models.RestoreCycling(m), nil
}

func ptr(v float64) *float64 { return &v }

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
