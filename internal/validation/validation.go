package validation

import (
	"errors"
	"fmt"
	"math"
)

// ErrNotFinite is returned when a numeric input is NaN or infinite.
var ErrNotFinite = errors.New("input is not a finite number")

// ErrNotPositive is returned when a numeric input must be strictly positive.
var ErrNotPositive = errors.New("input must be positive")

// ErrNegative is returned when a numeric input must not be negative.
var ErrNegative = errors.New("input must not be negative")

// ErrInvalidCoords is returned when latitude or longitude is out of range.
var ErrInvalidCoords = errors.New("coordinates out of range")

// Field is a named numeric input, used so errors can say which value was rejected.
type Field struct {
	Name  string
	Value float64
}

// F is shorthand for Field{name, value}.
func F(name string, value float64) Field {
	return Field{Name: name, Value: value}
}

// Finite rejects NaN and ±Inf in any of the fields.
func Finite(fields ...Field) error {
	for _, f := range fields {
		if math.IsNaN(f.Value) || math.IsInf(f.Value, 0) {
			return fmt.Errorf("%w: %s", ErrNotFinite, f.Name)
		}
	}
	return nil
}

// Positive rejects zero or negative values. Fields are assumed finite.
func Positive(fields ...Field) error {
	for _, f := range fields {
		if f.Value <= 0 {
			return fmt.Errorf("%w: %s", ErrNotPositive, f.Name)
		}
	}
	return nil
}

// NonNegative rejects negative values; zero is allowed.
func NonNegative(fields ...Field) error {
	for _, f := range fields {
		if f.Value < 0 {
			return fmt.Errorf("%w: %s", ErrNegative, f.Name)
		}
	}
	return nil
}

// Coords checks latitude in [-90, 90] and longitude in [-180, 180].
func Coords(lat, lng float64) error {
	if err := Finite(F("lat", lat), F("lng", lng)); err != nil {
		return err
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: (%g, %g)", ErrInvalidCoords, lat, lng)
	}
	return nil
}
