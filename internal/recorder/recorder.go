// Package recorder writes one run history row per pipeline execution.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/dwsmith1983/gamedata-etl/internal/logging"
	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

// maxErrorRunes bounds the stored error summary.
const maxErrorRunes = 500

// Writer persists run history rows.
type Writer interface {
	InsertRun(ctx context.Context, rec types.RunRecord) error
}

// Run is what the orchestrator knows when a run ends.
type Run struct {
	RunID       string
	StartedAt   time.Time
	CompletedAt time.Time
	Report      types.LoadReport // nil when Load did not commit
	Dropped     int
	Err         error
}

// RecordingError reports that the run history row could not be written.
type RecordingError struct {
	RunID string
	Err   error
}

func (e *RecordingError) Error() string {
	return fmt.Sprintf("recording run %s: %v", e.RunID, e.Err)
}

func (e *RecordingError) Unwrap() error { return e.Err }

// Kind identifies the error class.
func (e *RecordingError) Kind() string { return "RecordingError" }

// Recorder writes run history.
type Recorder struct {
	store  Writer
	logger *slog.Logger
}

// New creates a Recorder.
func New(store Writer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// Record writes the history row for run. A failed write is logged at
// critical level and returned as a RecordingError; it is not retried.
func (r *Recorder) Record(ctx context.Context, run Run) (types.RunRecord, error) {
	rec := Build(run)
	if err := r.store.InsertRun(ctx, rec); err != nil {
		logging.Critical(ctx, r.logger, "run history write failed",
			"run_id", rec.RunID,
			"status", rec.Status,
			"total_rows", rec.TotalRows,
			"run_error", rec.ErrorMessage,
			"error", err,
		)
		return rec, &RecordingError{RunID: rec.RunID, Err: err}
	}
	return rec, nil
}

// Build derives the history row for a finished run.
func Build(run Run) types.RunRecord {
	rec := types.RunRecord{
		RunID:           run.RunID,
		StartedAt:       run.StartedAt,
		CompletedAt:     run.CompletedAt,
		DroppedRecords:  run.Dropped,
		DurationSeconds: run.CompletedAt.Sub(run.StartedAt).Seconds(),
	}
	if len(run.Report) > 0 {
		rec.Counts = make(types.LoadReport, len(run.Report))
		for e, n := range run.Report {
			rec.Counts[e] = n
		}
		rec.TablesLoaded = len(run.Report)
		rec.TotalRows = run.Report.Total()
	}

	switch {
	case run.Err != nil:
		rec.Status = types.RunFailure
		rec.ErrorKind = KindOf(run.Err)
		rec.ErrorMessage = Summary(run.Err)
	case run.Dropped > 0:
		rec.Status = types.RunPartial
	default:
		rec.Status = types.RunSuccess
	}
	return rec
}

type kinded interface {
	Kind() string
}

// KindOf names the class of err: the Kind of the outermost typed error in its
// chain, or a generic name for cancellations and untyped errors.
func KindOf(err error) string {
	var k kinded
	switch {
	case err == nil:
		return ""
	case errors.As(err, &k):
		return k.Kind()
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	}
	return "InternalError"
}

// Summary renders "<Kind>: <message>", truncated to 500 runes.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	s := KindOf(err) + ": " + err.Error()
	if utf8.RuneCountInString(s) <= maxErrorRunes {
		return s
	}
	return string([]rune(s)[:maxErrorRunes])
}
