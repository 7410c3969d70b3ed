package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kjstillabower/workout-journal/internal/codec"
	"github.com/kjstillabower/workout-journal/internal/models"
)

func (c *cli) shareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share",
		Short: "Share every workout (webhook when configured, else stdout)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.engine.Session.Share(cmd.Context()); err != nil {
				return c.notice(err)
			}
			if c.cfg.ShareWebhookURL != "" {
				fmt.Fprintln(c.out, color.GreenString("✅ Shared to %s", c.cfg.ShareWebhookURL))
			}
			return nil
		},
	}
}

func (c *cli) clearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved workout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete %d workouts without --yes", len(c.engine.Session.Workouts()))
			}
			if err := c.engine.Session.ClearAll(cmd.Context()); err != nil {
				return c.notice(err)
			}
			fmt.Fprintln(c.out, color.GreenString("✅ All workouts deleted"))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

// exportFile is the TOML dump layout. Variant fields are pointers so each workout only
// carries its own.
type exportFile struct {
	ExportedAt time.Time       `toml:"exported_at"`
	Workouts   []exportWorkout `toml:"workout"`
}

type exportWorkout struct {
	ID            string    `toml:"id"`
	Type          string    `toml:"type"`
	Date          time.Time `toml:"date"`
	Description   string    `toml:"description"`
	Lat           float64   `toml:"lat"`
	Lng           float64   `toml:"lng"`
	Distance      float64   `toml:"distance_km"`
	Duration      float64   `toml:"duration_min"`
	Weather       string    `toml:"weather"`
	Cadence       *float64  `toml:"cadence,omitempty"`
	Pace          *float64  `toml:"pace,omitempty"`
	ElevationGain *float64  `toml:"elevation_gain,omitempty"`
	Speed         *float64  `toml:"speed,omitempty"`
}

func toExport(rec models.Record) exportWorkout {
	e := exportWorkout{
		ID:          rec.ID,
		Type:        string(rec.Type),
		Date:        rec.CreatedAt.UTC(),
		Description: rec.Description,
		Lat:         rec.Coords.Lat,
		Lng:         rec.Coords.Lng,
		Distance:    rec.Distance,
		Duration:    rec.Duration,
		Weather:     rec.Weather,
	}
	switch rec.Type {
	case models.TypeRunning:
		cadence, pace := rec.Cadence, rec.Pace
		e.Cadence, e.Pace = &cadence, &pace
	case models.TypeCycling:
		gain, speed := rec.ElevationGain, rec.Speed
		e.ElevationGain, e.Speed = &gain, &speed
	}
	return e
}

func (c *cli) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [output-file]",
		Short: "Export all workouts to a TOML file (\"-\" for stdout)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFile := "workouts.toml"
			if len(args) == 1 {
				outputFile = args[0]
			}

			dump := exportFile{ExportedAt: time.Now().UTC()}
			for _, rec := range codec.Records(c.engine.Session.Workouts()) {
				dump.Workouts = append(dump.Workouts, toExport(rec))
			}

			var w io.Writer = c.out
			if outputFile != "-" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := toml.NewEncoder(w).Encode(dump); err != nil {
				return fmt.Errorf("encode export: %w", err)
			}
			if outputFile != "-" {
				fmt.Fprintf(c.out, "✅ Exported %d workouts to %s\n", len(dump.Workouts), outputFile)
			}
			return nil
		},
	}
}
