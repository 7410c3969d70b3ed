package models

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Type discriminates workout variants. The string value is what gets persisted.
type Type string

const (
	TypeRunning Type = "running"
	TypeCycling Type = "cycling"
)

// ParseType accepts "running"/"cycling" in any case, plus the short forms "run"/"ride".
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "running", "run":
		return TypeRunning, nil
	case "cycling", "ride", "cycle":
		return TypeCycling, nil
	}
	return "", fmt.Errorf("unknown workout type %q", s)
}

// Title returns the type with its first letter upper-cased ("Running").
func (t Type) Title() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// Coords is a (latitude, longitude) pair.
type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coords) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

// Workout is one recorded exercise session. Implemented by *Running and *Cycling.
type Workout interface {
	ID() string
	Type() Type
	CreatedAt() time.Time
	Coords() Coords
	Distance() float64
	Duration() float64
	Description() string
	Weather() string
	// WeatherResolved reports whether Weather has left the pending state.
	WeatherResolved() bool
	// ResolveWeather sets the weather text if it is still pending.
	// It returns false, leaving the value untouched, when already resolved.
	ResolveWeather(text string) bool
}

// base holds the fields shared by every variant. Only weather changes after construction.
type base struct {
	id          string
	createdAt   time.Time
	coords      Coords
	distance    float64
	duration    float64
	description string
	weather     atomic.Pointer[string]
}

func (b *base) init(t Type, coords Coords, distance, duration float64) {
	now := time.Now()
	b.id = uuid.NewString()
	b.createdAt = now
	b.coords = coords
	b.distance = distance
	b.duration = duration
	b.description = Describe(t, now)
	pending := WeatherPending
	b.weather.Store(&pending)
}

// restore fills b from persisted values without re-deriving anything.
func (b *base) restore(r Record) {
	b.id = r.ID
	b.createdAt = r.CreatedAt
	b.coords = r.Coords
	b.distance = r.Distance
	b.duration = r.Duration
	b.description = r.Description
	weather := r.Weather
	if weather == "" {
		weather = WeatherPending
	}
	b.weather.Store(&weather)
}

func (b *base) ID() string           { return b.id }
func (b *base) CreatedAt() time.Time { return b.createdAt }
func (b *base) Coords() Coords       { return b.coords }
func (b *base) Distance() float64    { return b.distance }
func (b *base) Duration() float64    { return b.duration }
func (b *base) Description() string  { return b.description }

func (b *base) Weather() string {
	if p := b.weather.Load(); p != nil {
		return *p
	}
	return WeatherPending
}

func (b *base) WeatherResolved() bool {
	return b.Weather() != WeatherPending
}

func (b *base) ResolveWeather(text string) bool {
	cur := b.weather.Load()
	if cur != nil && *cur != WeatherPending {
		return false
	}
	return b.weather.CompareAndSwap(cur, &text)
}

var months = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Describe builds the "<Type> on <Month> <Day>" label for a workout created at t.
func Describe(t Type, at time.Time) string {
	return fmt.Sprintf("%s on %s %d", t.Title(), months[at.Month()-1], at.Day())
}
