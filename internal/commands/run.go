package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/gamedata-etl/internal/pipeline"
	"github.com/dwsmith1983/gamedata-etl/internal/recorder"
	"github.com/dwsmith1983/gamedata-etl/internal/telemetry"
)

const telemetryFlushTimeout = 10 * time.Second

// NewRunCmd creates the run command.
func NewRunCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Long:  "Fetches every configured endpoint, refreshes the local tables and records the run. Exits non-zero when the run fails.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runOnce(ctx, opts, cmd.OutOrStdout())
		},
	}
}

func runOnce(ctx context.Context, opts *GlobalOptions, w io.Writer) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	shutdown, err := telemetry.Setup(ctx, e.cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer flushTelemetry(shutdown, e)

	p, err := newPipeline(e.cfg, e.store, e.logger, nil)
	if err != nil {
		return err
	}

	out := p.RunOnce(ctx)
	printOutcome(w, out)
	if !out.OK() {
		return fmt.Errorf("run %s failed: %s", out.RunID, recorder.KindOf(out.Err))
	}
	return nil
}

func printOutcome(w io.Writer, out pipeline.Outcome) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "Run %s: %s\n", out.RunID, statusString(out.Status))
	if out.Err != nil {
		_, _ = fmt.Fprintf(w, "  %s\n", color.RedString(recorder.Summary(out.Err)))
		return
	}
	_, _ = fmt.Fprintf(w, "  tables:  %d\n", len(out.Report))
	_, _ = fmt.Fprintf(w, "  rows:    %d\n", out.Report.Total())
	_, _ = fmt.Fprintf(w, "  counts:  %s\n", formatCounts(out.Report))
	if n := out.Record.DroppedRecords; n > 0 {
		_, _ = fmt.Fprintf(w, "  dropped: %s\n", color.YellowString("%d", n))
	}
}

func flushTelemetry(shutdown telemetry.Shutdown, e *env) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		e.logger.Warn("telemetry shutdown failed", "error", err)
	}
}
