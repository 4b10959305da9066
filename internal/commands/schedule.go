package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/gamedata-etl/internal/archiver"
	"github.com/dwsmith1983/gamedata-etl/internal/schedule"
	"github.com/dwsmith1983/gamedata-etl/internal/scheduler"
	"github.com/dwsmith1983/gamedata-etl/internal/telemetry"
)

const stopTimeout = 10 * time.Second

// NewScheduleCmd creates the schedule command.
func NewScheduleCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline every schedule_interval_hours until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSchedule(ctx, opts)
		},
	}
}

func runSchedule(ctx context.Context, opts *GlobalOptions) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	interval := schedule.Interval(e.cfg.IntervalHours())
	if interval <= 0 {
		return fmt.Errorf("schedule_interval_hours must be positive to schedule runs")
	}

	shutdown, err := telemetry.Setup(ctx, e.cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer flushTelemetry(shutdown, e)

	p, err := newPipeline(e.cfg, e.store, e.logger, nil)
	if err != nil {
		return err
	}
	sched, err := scheduler.New(p, scheduler.Options{
		Interval:   interval,
		RunOnStart: e.cfg.RunOnStart == nil || *e.cfg.RunOnStart,
		Breaker:    e.cfg.Breaker,
		Logger:     e.logger,
	})
	if err != nil {
		return err
	}

	// The archive must be reachable before the first run starts.
	var arc *archiver.Archiver
	if a := e.cfg.Archive; a != nil && a.Enabled {
		every, err := schedule.ParseDuration(a.Interval, 0)
		if err != nil {
			return fmt.Errorf("archive.interval: %w", err)
		}
		pg, err := openArchive(ctx, e.cfg)
		if err != nil {
			return err
		}
		defer pg.Close()
		arc = archiver.New(e.store, pg, every, e.logger)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })

	if arc != nil {
		arc.Start(gctx)
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			arc.Stop(stopCtx)
			return nil
		})
	}

	color.Cyan("Scheduling runs every %s (Ctrl+C to stop)", interval)
	err = g.Wait()
	color.Green("Scheduler stopped")
	return err
}
