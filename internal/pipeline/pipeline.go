// Package pipeline orchestrates one Extract -> Transform -> Load -> Record run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/gamedata-etl/internal/fetcher"
	"github.com/dwsmith1983/gamedata-etl/internal/lifecycle"
	"github.com/dwsmith1983/gamedata-etl/internal/metrics"
	"github.com/dwsmith1983/gamedata-etl/internal/normalize"
	"github.com/dwsmith1983/gamedata-etl/internal/recorder"
	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

var tracer = otel.Tracer("github.com/dwsmith1983/gamedata-etl/internal/pipeline")

// Fetcher retrieves one endpoint payload.
type Fetcher interface {
	Fetch(ctx context.Context, ep fetcher.Endpoint) (*fetcher.RawPayload, error)
}

// Loader atomically replaces the entities present in a batch.
type Loader interface {
	LoadAll(ctx context.Context, runID string, batch *types.Batch) (types.LoadReport, error)
}

// Recorder writes the run history row.
type Recorder interface {
	Record(ctx context.Context, run recorder.Run) (types.RunRecord, error)
}

// Options configures a Pipeline.
type Options struct {
	Endpoints []fetcher.Endpoint
	Fetcher   Fetcher
	Loader    Loader
	Recorder  Recorder
	Logger    *slog.Logger
	Now       func() time.Time
	NewID     func(time.Time) string
}

type step struct {
	endpoint  fetcher.Endpoint
	normalize normalize.Func
}

// Pipeline runs the configured endpoints through fetch, normalize, load and
// record. It keeps no state between runs.
type Pipeline struct {
	steps    []step
	fetcher  Fetcher
	loader   Loader
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
	newID    func(time.Time) string
}

// Outcome is the result of one run.
type Outcome struct {
	RunID    string
	Status   types.RunStatus
	Report   types.LoadReport
	Record   types.RunRecord
	Warnings []normalize.Warning
	Err      error
}

// OK reports whether the run loaded and was recorded.
func (o Outcome) OK() bool { return o.Err == nil }

// New creates a Pipeline. Every endpoint must name a known normalizer.
func New(opts Options) (*Pipeline, error) {
	if len(opts.Endpoints) == 0 {
		return nil, errors.New("pipeline: at least one endpoint is required")
	}
	if opts.Fetcher == nil || opts.Loader == nil || opts.Recorder == nil {
		return nil, errors.New("pipeline: fetcher, loader and recorder are required")
	}

	steps := make([]step, 0, len(opts.Endpoints))
	for _, ep := range opts.Endpoints {
		fn, ok := normalize.Lookup(ep.Name)
		if !ok {
			return nil, fmt.Errorf("pipeline: no normalizer for endpoint %q", ep.Name)
		}
		steps = append(steps, step{endpoint: ep, normalize: fn})
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = NewRunID
	}
	return &Pipeline{
		steps:    steps,
		fetcher:  opts.Fetcher,
		loader:   opts.Loader,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		now:      opts.Now,
		newID:    opts.NewID,
	}, nil
}

// NewRunID returns a ULID for a run started at t. IDs from one process are
// strictly increasing, so they sort in start order.
func NewRunID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

// RunOnce executes one full run. Cancellation is honoured between endpoints
// and during fetch waits; once Load starts, Load and Record run to completion.
// A history row is written for every run, successful or not.
func (p *Pipeline) RunOnce(ctx context.Context) Outcome {
	started := p.now()
	runID := p.newID(started)
	logger := p.logger.With("run_id", runID)

	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("etl.run_id", runID)))
	defer span.End()

	logger.Info("run started", "endpoints", len(p.steps))
	m := lifecycle.NewMachine()

	batch, warnings, dropped, err := p.extract(ctx, m, logger)

	var report types.LoadReport
	if err == nil {
		report, err = p.load(ctx, m, logger, runID, batch)
	}

	rec, recErr := p.record(ctx, m, logger, recorder.Run{
		RunID:       runID,
		StartedAt:   started,
		CompletedAt: p.now(),
		Report:      report,
		Dropped:     dropped,
		Err:         err,
	})

	out := Outcome{
		RunID:    runID,
		Status:   rec.Status,
		Report:   report,
		Record:   rec,
		Warnings: warnings,
		Err:      err,
	}
	if recErr != nil {
		out.Status = types.RunFailure
		out.Err = errors.Join(err, recErr)
	}

	duration := time.Duration(rec.DurationSeconds * float64(time.Second))
	metrics.RecordRun(context.WithoutCancel(ctx), string(out.Status), duration)
	span.SetAttributes(attribute.String("etl.status", string(out.Status)))

	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
		logger.Error("run failed",
			"status", out.Status,
			"error_kind", recorder.KindOf(out.Err),
			"error", out.Err,
			"duration", duration,
		)
		return out
	}

	args := []any{"status", out.Status, "total_rows", report.Total(), "dropped_records", dropped, "duration", duration}
	for _, e := range batch.Entities() {
		args = append(args, string(e), report[e])
	}
	logger.Info("run completed", args...)
	return out
}

func (p *Pipeline) extract(ctx context.Context, m *lifecycle.Machine, logger *slog.Logger) (*types.Batch, []normalize.Warning, int, error) {
	batch := &types.Batch{}
	var (
		warnings []normalize.Warning
		dropped  int
	)

	for _, s := range p.steps {
		name := s.endpoint.Name
		if err := ctx.Err(); err != nil {
			return nil, warnings, dropped, fmt.Errorf("run cancelled before %s: %w", name, err)
		}

		if err := p.enter(m, logger, types.StageExtracting, name); err != nil {
			return nil, warnings, dropped, err
		}
		raw, err := p.fetcher.Fetch(ctx, s.endpoint)
		if err != nil {
			return nil, warnings, dropped, err
		}

		if err := p.enter(m, logger, types.StageTransforming, name); err != nil {
			return nil, warnings, dropped, err
		}
		res, err := s.normalize(raw.Body)
		if err != nil {
			return nil, warnings, dropped, err
		}

		for _, w := range res.Warnings {
			logger.Warn("normalization warning",
				"endpoint", name,
				"entity", w.Entity,
				"key", w.Key,
				"reason", w.Reason,
				"dropped", w.Dropped,
			)
			if w.Dropped {
				metrics.RecordDropped(ctx, string(w.Entity), 1)
			}
		}
		warnings = append(warnings, res.Warnings...)
		dropped += res.Dropped()
		batch.Merge(&res.Batch)

		logger.Debug("endpoint normalized", "endpoint", name, "attempts", raw.Attempts, "bytes", len(raw.Body))
	}
	return batch, warnings, dropped, nil
}

func (p *Pipeline) load(ctx context.Context, m *lifecycle.Machine, logger *slog.Logger, runID string, batch *types.Batch) (types.LoadReport, error) {
	if err := p.enter(m, logger, types.StageLoading, ""); err != nil {
		return nil, err
	}

	lctx, span := tracer.Start(context.WithoutCancel(ctx), "pipeline.load")
	defer span.End()

	report, err := p.loader.LoadAll(lctx, runID, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	for e, n := range report {
		metrics.RecordRows(lctx, string(e), n)
	}
	span.SetAttributes(attribute.Int("etl.total_rows", report.Total()))
	return report, nil
}

func (p *Pipeline) record(ctx context.Context, m *lifecycle.Machine, logger *slog.Logger, run recorder.Run) (types.RunRecord, error) {
	if err := p.enter(m, logger, types.StageRecording, ""); err != nil {
		run.Err = errors.Join(run.Err, err)
	}
	rec, err := p.recorder.Record(context.WithoutCancel(ctx), run)
	if terr := m.Enter(types.StageIdle); terr != nil {
		logger.Error("stage transition rejected", "error", terr)
	}
	return rec, err
}

func (p *Pipeline) enter(m *lifecycle.Machine, logger *slog.Logger, stage types.Stage, endpoint string) error {
	if err := m.Enter(stage); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if endpoint != "" {
		logger.Info("stage entered", "stage", stage, "endpoint", endpoint)
	} else {
		logger.Info("stage entered", "stage", stage)
	}
	return nil
}
