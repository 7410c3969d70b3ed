package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kjstillabower/workout-journal/internal/display"
	"github.com/kjstillabower/workout-journal/internal/models"
	"github.com/kjstillabower/workout-journal/internal/position"
	"github.com/kjstillabower/workout-journal/internal/session"
)

type workoutFlags struct {
	lat, lng           float64
	distance, duration float64
	cadence, elevation float64
	noWait             bool
}

func (f *workoutFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "latitude of the workout (default: configured home)")
	cmd.Flags().Float64Var(&f.lng, "lng", 0, "longitude of the workout (default: configured home)")
	cmd.Flags().Float64VarP(&f.distance, "distance", "d", 0, "distance in km")
	cmd.Flags().Float64VarP(&f.duration, "duration", "t", 0, "duration in minutes")
	cmd.Flags().BoolVar(&f.noWait, "no-wait", false, "do not wait for the weather lookup")
	_ = cmd.MarkFlagRequired("distance")
	_ = cmd.MarkFlagRequired("duration")
	cmd.MarkFlagsRequiredTogether("lat", "lng")
}

func (c *cli) runCmd() *cobra.Command {
	var f workoutFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Record a running workout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.record(cmd, models.TypeRunning, &f)
		},
	}
	f.register(cmd)
	cmd.Flags().Float64VarP(&f.cadence, "cadence", "c", 0, "cadence in steps/min")
	_ = cmd.MarkFlagRequired("cadence")
	return cmd
}

func (c *cli) rideCmd() *cobra.Command {
	var f workoutFlags
	cmd := &cobra.Command{
		Use:   "ride",
		Short: "Record a cycling workout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.record(cmd, models.TypeCycling, &f)
		},
	}
	f.register(cmd)
	cmd.Flags().Float64VarP(&f.elevation, "elevation", "e", 0, "elevation gain in meters")
	return cmd
}

func (c *cli) record(cmd *cobra.Command, t models.Type, f *workoutFlags) error {
	ctx := cmd.Context()
	at := models.Coords{Lat: f.lat, Lng: f.lng}
	if !cmd.Flags().Changed("lat") {
		src, err := position.NewStatic(c.cfg.Home)
		if err != nil {
			return c.notice(fmt.Errorf("%w: %v", session.ErrPositionUnavailable, err))
		}
		pos, err := src.CurrentPosition(ctx)
		if err != nil {
			return c.notice(fmt.Errorf("%w: %v", session.ErrPositionUnavailable, err))
		}
		at = pos
	}

	w, err := c.engine.Session.CreateWorkout(ctx, session.Input{
		Type:          t,
		Coords:        at,
		Distance:      f.distance,
		Duration:      f.duration,
		Cadence:       f.cadence,
		ElevationGain: f.elevation,
	})
	if err != nil {
		return c.notice(err)
	}
	if !f.noWait {
		c.waitWeather(ctx)
	}

	fmt.Fprintf(c.out, "%s %s\n", color.GreenString("✅ Saved"), w.ID())
	fmt.Fprintln(c.out, display.NewCard(w))
	return nil
}
