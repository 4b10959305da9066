// Package scheduler invokes pipeline runs at a fixed interval until stopped.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/gamedata-etl/internal/metrics"
	"github.com/dwsmith1983/gamedata-etl/internal/pipeline"
	"github.com/dwsmith1983/gamedata-etl/internal/schedule"
	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

const defaultCooldown = time.Hour

// Runner executes one pipeline run. *pipeline.Pipeline satisfies it.
type Runner interface {
	RunOnce(ctx context.Context) pipeline.Outcome
}

// Options configures a Scheduler.
type Options struct {
	Interval   time.Duration
	RunOnStart bool
	Breaker    *types.BreakerConfig
	Logger     *slog.Logger
}

// Scheduler triggers runs back to back at Interval. Runs never overlap; ticks
// that fall inside a long run are skipped.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler.
func New(runner Runner, opts Options) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler: runner is required")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive, got %s", opts.Interval)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Scheduler{
		runner:     runner,
		interval:   opts.Interval,
		runOnStart: opts.RunOnStart,
		logger:     opts.Logger,
	}
	if opts.Breaker != nil && opts.Breaker.FailThreshold > 0 {
		cooldown, err := schedule.ParseDuration(opts.Breaker.Cooldown, defaultCooldown)
		if err != nil {
			return nil, fmt.Errorf("scheduler: breaker cooldown: %w", err)
		}
		s.breaker = newBreaker(uint32(opts.Breaker.FailThreshold), cooldown, s.logger)
	}
	return s, nil
}

func newBreaker(threshold uint32, cooldown time.Duration, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "pipeline",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("run breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Start runs the loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.Run(ctx)
	}()
}

// Stop cancels the loop and waits for an in-flight run to finish, or for ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
}

// Run blocks, triggering runs until ctx is cancelled. It always returns nil;
// individual run failures are recorded and logged, not propagated.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "run_on_start", s.runOnStart)

	now := time.Now()
	next := now.Add(s.interval)
	if s.runOnStart {
		next = now
	}

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return nil
		case <-timer.C:
		}

		started := time.Now()
		s.trigger(ctx)
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopping")
			return nil
		}

		next = schedule.NextRun(started, s.interval, time.Now())
		s.logger.Info("next run scheduled", "at", next.UTC().Format(time.RFC3339))
		timer.Reset(time.Until(next))
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	if s.breaker == nil {
		s.runner.RunOnce(ctx)
		return
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		out := s.runner.RunOnce(ctx)
		return nil, out.Err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RecordSkipped(ctx)
		s.logger.Warn("run skipped", "reason", "breaker open", "state", s.breaker.State().String())
	}
}
