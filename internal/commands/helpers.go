// Package commands implements the CLI subcommands for the gamedata-etl binary.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/gamedata-etl/internal/config"
	"github.com/dwsmith1983/gamedata-etl/internal/fetcher"
	"github.com/dwsmith1983/gamedata-etl/internal/logging"
	"github.com/dwsmith1983/gamedata-etl/internal/pipeline"
	pgstore "github.com/dwsmith1983/gamedata-etl/internal/provider/postgres"
	"github.com/dwsmith1983/gamedata-etl/internal/provider/sqlite"
	"github.com/dwsmith1983/gamedata-etl/internal/recorder"
	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

// GlobalOptions holds the persistent root flags.
type GlobalOptions struct {
	ConfigPath string
	LogLevel   string
}

// AddGlobalFlags registers the persistent flags on root.
func AddGlobalFlags(root *cobra.Command) *GlobalOptions {
	opts := &GlobalOptions{}
	root.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "path to the pipeline configuration")
	root.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override log_level from the configuration")
	return opts
}

// env is the set of resources a command needs for its lifetime.
type env struct {
	cfg     *types.ProjectConfig
	logger  *slog.Logger
	store   *sqlite.Store
	closers []io.Closer
}

// setup loads the configuration, builds the logger and opens the store,
// migrating its schema.
func setup(ctx context.Context, opts *GlobalOptions) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if opts.LogLevel != "" {
		if _, err := logging.ParseLevel(opts.LogLevel); err != nil {
			return nil, err
		}
		cfg.LogLevel = opts.LogLevel
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	slog.SetDefault(logger)

	e := &env{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	store, err := sqlite.Open(ctx, cfg.StorePath)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}
	e.store = store
	e.closers = append(e.closers, store)

	if err := store.Migrate(ctx); err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	return e, nil
}

// Close releases resources in reverse order of acquisition.
func (e *env) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		errs = append(errs, e.closers[i].Close())
	}
	e.closers = nil
	return errors.Join(errs...)
}

// newPipeline wires fetcher, store and recorder into a pipeline for cfg.
func newPipeline(cfg *types.ProjectConfig, store *sqlite.Store, logger *slog.Logger, client fetcher.Doer) (*pipeline.Pipeline, error) {
	if client == nil {
		client = &http.Client{}
	}
	f := fetcher.New(fetcher.Options{
		Policy:    cfg.Retry,
		RateLimit: seconds(cfg.RateLimitDelay()),
		Client:    client,
		Logger:    logger,
	})
	return pipeline.New(pipeline.Options{
		Endpoints: fetcher.Resolve(cfg),
		Fetcher:   f,
		Loader:    store,
		Recorder:  recorder.New(store, logger),
		Logger:    logger,
	})
}

// openArchive connects to and migrates the Postgres archive.
func openArchive(ctx context.Context, cfg *types.ProjectConfig) (*pgstore.Store, error) {
	if cfg.Archive == nil || cfg.Archive.DSN == "" {
		return nil, errors.New("archive.dsn is not configured")
	}
	pg, err := pgstore.New(ctx, cfg.Archive.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to Postgres: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("migrating Postgres: %w", err)
	}
	return pg, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func statusString(status types.RunStatus) string {
	s := string(status)
	switch status {
	case types.RunSuccess:
		return color.GreenString(s)
	case types.RunPartial:
		return color.YellowString(s)
	case types.RunFailure:
		return color.RedString(s)
	}
	return s
}

// formatCounts renders per-entity counts in load order, then any others
// sorted by name.
func formatCounts(counts types.LoadReport) string {
	if len(counts) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(counts))
	seen := make(map[types.Entity]bool, len(counts))
	for _, e := range types.LoadOrder {
		if n, ok := counts[e]; ok {
			parts = append(parts, fmt.Sprintf("%s=%d", e, n))
			seen[e] = true
		}
	}
	var rest []string
	for e, n := range counts {
		if !seen[e] {
			rest = append(rest, fmt.Sprintf("%s=%d", e, n))
		}
	}
	sort.Strings(rest)
	return strings.Join(append(parts, rest...), " ")
}

func printRun(w io.Writer, r types.RunRecord) {
	_, _ = fmt.Fprintf(w, "  %s  %-16s  %s  %6.1fs  rows=%-6d %s\n",
		r.RunID,
		statusString(r.Status),
		r.StartedAt.UTC().Format(time.RFC3339),
		r.DurationSeconds,
		r.TotalRows,
		formatCounts(r.Counts),
	)
	if r.ErrorMessage != "" {
		_, _ = fmt.Fprintf(w, "      %s\n", color.RedString(r.ErrorMessage))
	}
}
