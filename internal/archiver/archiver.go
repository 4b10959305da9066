// Package archiver copies the local run history to the Postgres archive in
// the background.
package archiver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dwsmith1983/gamedata-etl/internal/metrics"
	"github.com/dwsmith1983/gamedata-etl/internal/provider"
)

const (
	defaultInterval = 15 * time.Minute
	runBatchSize    = 500

	// CursorSource names the archive cursor for run history.
	CursorSource = "etl_runs"
)

// Archiver periodically archives run history to a durable destination.
type Archiver struct {
	source   provider.RunHistory
	dest     provider.RunArchive
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a new Archiver.
func New(source provider.RunHistory, dest provider.RunArchive, interval time.Duration, logger *slog.Logger) *Archiver {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		source:   source,
		dest:     dest,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the archiver background loop.
func (a *Archiver) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go a.loop(ctx)
	a.logger.Info("archiver started", "interval", a.interval)
}

// Stop signals the archiver to stop and waits for it to finish.
func (a *Archiver) Stop(_ context.Context) {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.logger.Info("archiver stopped")
}

func (a *Archiver) loop(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Archiver) tick(ctx context.Context) {
	n, err := a.ArchiveOnce(ctx)
	if err != nil {
		a.logger.Error("archiver: archive failed", "archived", n, "error", err)
		return
	}
	if n > 0 {
		a.logger.Info("archiver: runs archived", "archived", n)
	}
}

// ArchiveOnce copies every run newer than the stored cursor and returns how
// many were written. The cursor only advances past a batch once every run in
// it has been written.
func (a *Archiver) ArchiveOnce(ctx context.Context) (int, error) {
	cursor, err := a.dest.GetCursor(ctx, CursorSource)
	if err != nil {
		return 0, fmt.Errorf("archiver: get cursor: %w", err)
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		runs, err := a.source.ListRunsAfter(ctx, cursor, runBatchSize)
		if err != nil {
			return total, fmt.Errorf("archiver: list runs after %q: %w", cursor, err)
		}
		if len(runs) == 0 {
			return total, nil
		}

		for _, run := range runs {
			if err := a.dest.UpsertRun(ctx, run); err != nil {
				return total, fmt.Errorf("archiver: upsert run %s: %w", run.RunID, err)
			}
		}

		last := runs[len(runs)-1].RunID
		if err := a.dest.SetCursor(ctx, CursorSource, last); err != nil {
			return total, fmt.Errorf("archiver: set cursor: %w", err)
		}
		cursor = last
		total += len(runs)
		metrics.RecordArchived(ctx, len(runs))

		if len(runs) < runBatchSize {
			return total, nil
		}
	}
}
