package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kjstillabower/workout-journal/internal/replay"
)

func (c *cli) replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Replay every workout location in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.showPans.Store(true)
			defer c.showPans.Store(false)

			if !c.engine.Session.Replay() {
				fmt.Fprintln(c.out, color.YellowString("No workouts to replay!"))
				return nil
			}
			if err := c.engine.Session.WaitReplay(cmd.Context()); err != nil {
				return fmt.Errorf("replay interrupted: %w", err)
			}
			if state, _ := c.engine.Session.ReplayState(); state == replay.Idle {
				fmt.Fprintln(c.out, color.GreenString("✅ Replay finished"))
			}
			return nil
		},
	}
}
