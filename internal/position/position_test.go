package position

import (
	"context"
	"errors"
	"testing"

	"github.com/kjstillabower/workout-journal/internal/models"
	"github.com/kjstillabower/workout-journal/internal/validation"
)

func TestStatic_CurrentPosition(t *testing.T) {
	home := models.Coords{Lat: 51.5, Lng: -0.12}
	tests := []struct {
		name    string
		pos     *models.Coords
		want    models.Coords
		wantErr error
	}{
		{"configured", &home, home, nil},
		{"unset", nil, models.Coords{}, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStatic(tt.pos)
			if err != nil {
				t.Fatalf("NewStatic() error = %v", err)
			}
			got, err := s.CurrentPosition(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CurrentPosition() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CurrentPosition() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewStatic_InvalidCoords(t *testing.T) {
	_, err := NewStatic(&models.Coords{Lat: 120, Lng: 0})
	if !errors.Is(err, validation.ErrInvalidCoords) {
		t.Errorf("NewStatic() error = %v, want ErrInvalidCoords", err)
	}
}

func TestStatic_CanceledContext(t *testing.T) {
	s, _ := NewStatic(&models.Coords{Lat: 1, Lng: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.CurrentPosition(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("CurrentPosition() error = %v, want context.Canceled", err)
	}
}
