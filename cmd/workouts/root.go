package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/workout-journal/internal/app"
	"github.com/kjstillabower/workout-journal/internal/client"
	"github.com/kjstillabower/workout-journal/internal/config"
	"github.com/kjstillabower/workout-journal/internal/mapview"
	"github.com/kjstillabower/workout-journal/internal/observability"
	"github.com/kjstillabower/workout-journal/internal/session"
	"github.com/kjstillabower/workout-journal/internal/store"
)

// closeTimeout bounds the wait for weather lookups before the store is closed.
const closeTimeout = 10 * time.Second

type cli struct {
	out    io.Writer
	errOut io.Writer

	configRoot string
	backend    string
	dbPath     string
	verbose    bool

	// weather and logger replace the configured ones when set.
	weather client.WeatherClient
	logger  *zap.Logger

	cfg      *config.Config
	engine   *app.App
	showPans atomic.Bool
}

func newCLI(out, errOut io.Writer) *cli {
	return &cli{out: out, errOut: errOut}
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "workouts",
		Short:             "Record running and cycling workouts with the weather at the time",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return c.open(cmd.Context()) },
	}
	root.PersistentFlags().StringVar(&c.configRoot, "config-dir", ".", "directory containing config/ and .env")
	root.PersistentFlags().StringVar(&c.backend, "backend", "", "store backend: in_memory, memcached or sqlite (default from config, else sqlite)")
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database path")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log engine activity to stderr")

	root.AddCommand(
		c.runCmd(),
		c.rideCmd(),
		c.listCmd(),
		c.showCmd(),
		c.shareCmd(),
		c.replayCmd(),
		c.clearCmd(),
		c.exportCmd(),
	)
	return root
}

// execute runs the command line and always closes the engine, which cobra's post-run
// hooks skip when a command fails.
func (c *cli) execute(args []string) error {
	root := c.rootCmd()
	root.SetArgs(args)
	err := root.Execute()
	return errors.Join(err, c.close())
}

func (c *cli) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.LoadWith(config.LoadOptions{Root: c.configRoot, DefaultBackend: store.BackendSQLite})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.backend != "" {
		cfg.StoreBackend = c.backend
	}
	if c.dbPath != "" {
		cfg.SQLitePath = c.dbPath
	}
	c.cfg = cfg

	if c.logger == nil {
		logger, err := observability.NewCLILogger(c.verbose)
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		c.logger = logger
	}

	engine, err := app.New(ctx, cfg, c.logger, app.Options{
		ShareOutput:   c.out,
		MapEvents:     c.mapEvent,
		WeatherClient: c.weather,
	})
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

func (c *cli) close() error {
	if c.engine == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	err := c.engine.Close(ctx)
	c.engine = nil
	_ = observability.FlushLogs(c.logger)
	return err
}

// mapEvent prints replay movement. Other map calls are silent.
func (c *cli) mapEvent(ev mapview.Event) {
	if !c.showPans.Load() {
		return
	}
	switch ev.Kind {
	case mapview.EventDrawPolyline:
		fmt.Fprintf(c.out, "%s %d points\n", color.CyanString("🗺  route"), len(ev.Path))
	case mapview.EventPanTo:
		if len(ev.Path) == 1 {
			fmt.Fprintf(c.out, "%s %s\n", color.YellowString("📍"), ev.Path[0])
		}
	}
}

// noticeError shows the user-facing message while keeping the cause for errors.Is.
type noticeError struct {
	msg string
	err error
}

func (e *noticeError) Error() string { return e.msg }
func (e *noticeError) Unwrap() error { return e.err }

// notice swaps err for its user-facing message when it has one. The cause is logged.
func (c *cli) notice(err error) error {
	msg := session.Notice(err)
	if msg == "" {
		return err
	}
	c.logger.Debug("command failed", zap.Error(err))
	return &noticeError{msg: msg, err: err}
}

// waitWeather blocks until pending lookups finish so the printed card is final.
func (c *cli) waitWeather(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()
	if err := c.engine.Session.WaitEnrichment(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		fmt.Fprintln(c.errOut, color.YellowString("weather lookup interrupted: %v", err))
	}
}
