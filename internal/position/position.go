// Package position supplies the user's current location for map initialization.
package position

import (
	"context"
	"errors"

	"github.com/kjstillabower/workout-journal/internal/models"
	"github.com/kjstillabower/workout-journal/internal/validation"
)

// ErrUnavailable is returned when no position can be determined.
var ErrUnavailable = errors.New("could not get your position")

// Source is a one-shot, best-effort positioning source.
type Source interface {
	CurrentPosition(ctx context.Context) (models.Coords, error)
}

// Static always reports the same configured position, or ErrUnavailable when none is set.
type Static struct {
	pos *models.Coords
}

// NewStatic returns a Static source for pos. A nil pos yields a source that always fails.
// Out-of-range coordinates are rejected.
func NewStatic(pos *models.Coords) (*Static, error) {
	if pos != nil {
		if err := validation.Coords(pos.Lat, pos.Lng); err != nil {
			return nil, err
		}
		p := *pos
		pos = &p
	}
	return &Static{pos: pos}, nil
}

func (s *Static) CurrentPosition(ctx context.Context) (models.Coords, error) {
	if err := ctx.Err(); err != nil {
		return models.Coords{}, err
	}
	if s == nil || s.pos == nil {
		return models.Coords{}, ErrUnavailable
	}
	return *s.pos, nil
}
