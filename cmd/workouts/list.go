package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kjstillabower/workout-journal/internal/display"
)

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved workouts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cards := c.engine.Session.Cards()
			if len(cards) == 0 {
				fmt.Fprintln(c.out, color.YellowString("No workouts yet."))
				return nil
			}
			for _, card := range cards {
				fmt.Fprintf(c.out, "%s %s\n", color.CyanString(card.ID), card)
			}
			fmt.Fprintf(c.out, "\n%s %d\n", color.GreenString("Total:"), len(cards))
			return nil
		},
	}
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [workout-id]",
		Short: "Show one workout and center the map on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := c.engine.Session.Select(args[0])
			if err != nil {
				return c.notice(err)
			}
			fmt.Fprintln(c.out, display.NewCard(w))
			at := w.Coords()
			fmt.Fprintf(c.out, "  %s https://www.google.com/maps?q=%s\n", color.CyanString("Map:"), at)
			return nil
		},
	}
}
