// Package fetcher retrieves raw endpoint payloads from the upstream API with
// bounded retries, exponential backoff and a fixed delay between calls.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/gamedata-etl/internal/metrics"
	"github.com/dwsmith1983/gamedata-etl/internal/schedule"
	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

const (
	maxBodyBytes     = 32 << 20
	maxErrorBodySize = 256
	defaultUserAgent = "gamedata-etl/1.0"
)

var tracer = otel.Tracer("github.com/dwsmith1983/gamedata-etl/internal/fetcher")

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Fetcher. Zero values fall back to defaults.
type Options struct {
	Policy    types.RetryPolicy
	RateLimit time.Duration
	Client    Doer
	Clock     Clock
	Logger    *slog.Logger
	UserAgent string
}

// Fetcher issues one logical GET per endpoint. It holds no per-run state and
// is safe to reuse across runs.
type Fetcher struct {
	policy    types.RetryPolicy
	rateLimit time.Duration
	client    Doer
	clock     Clock
	logger    *slog.Logger
	userAgent string
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	if opts.Policy.MaxAttempts < 1 {
		opts.Policy.MaxAttempts = 1
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Fetcher{
		policy:    opts.Policy,
		rateLimit: opts.RateLimit,
		client:    opts.Client,
		clock:     opts.Clock,
		logger:    opts.Logger,
		userAgent: opts.UserAgent,
	}
}

type state int

const (
	stateAttempting state = iota
	stateWaiting
	stateSucceeded
	stateExhausted
	stateFailed
)

// Fetch retrieves one endpoint. Attempt n (n >= 2) is preceded by a backoff
// wait; 4xx responses fail after a single attempt. Whatever the outcome, the
// rate-limit delay elapses before Fetch returns.
func (f *Fetcher) Fetch(ctx context.Context, ep Endpoint) (*RawPayload, error) {
	ctx, span := tracer.Start(ctx, "fetch "+ep.Name, trace.WithAttributes(
		attribute.String("etl.endpoint", ep.Name),
	))
	defer span.End()
	defer f.pause(ctx)

	payload, err := f.run(ctx, ep)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("etl.attempts", payload.Attempts), attribute.Int("etl.bytes", len(payload.Body)))
	return payload, nil
}

func (f *Fetcher) run(ctx context.Context, ep Endpoint) (*RawPayload, error) {
	u, err := ep.requestURL()
	if err != nil {
		return nil, &ClientRequestError{Endpoint: ep.Name, URL: ep.URL, Body: err.Error()}
	}

	var (
		st      = stateAttempting
		attempt = 1
		payload *RawPayload
		lastErr error
	)
	for {
		switch st {
		case stateAttempting:
			payload, lastErr = f.attempt(ctx, ep, u, attempt)
			switch {
			case lastErr == nil:
				st = stateSucceeded
			case !f.retryable(lastErr):
				st = stateFailed
			case attempt >= f.policy.MaxAttempts:
				st = stateExhausted
			default:
				st = stateWaiting
			}

		case stateWaiting:
			attempt++
			wait := schedule.CalculateBackoff(f.policy, attempt)
			f.logger.Warn("retrying fetch",
				"endpoint", ep.Name,
				"attempt", attempt,
				"max_attempts", f.policy.MaxAttempts,
				"wait", wait,
				"error", lastErr,
			)
			metrics.RecordRetry(ctx, ep.Name)
			if err := f.clock.Sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("fetching %s: waiting to retry: %w", ep.Name, err)
			}
			st = stateAttempting

		case stateSucceeded:
			return payload, nil

		case stateExhausted:
			return nil, &FetchExhaustedError{Endpoint: ep.Name, Attempts: attempt, Last: lastErr}

		case stateFailed:
			var ne *NetworkError
			if errors.As(lastErr, &ne) {
				return nil, &FetchExhaustedError{Endpoint: ep.Name, Attempts: attempt, Last: lastErr}
			}
			return nil, lastErr
		}
	}
}

func (f *Fetcher) attempt(ctx context.Context, ep Endpoint, u string, attempt int) (*RawPayload, error) {
	actx := ctx
	if ep.Timeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, ep.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(actx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &ClientRequestError{Endpoint: ep.Name, URL: u, Body: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)

	f.logger.Debug("fetching endpoint", "endpoint", ep.Name, "url", u, "attempt", attempt)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			metrics.RecordFetchAttempt(ctx, ep.Name, "cancelled")
			return nil, ctx.Err()
		}
		ne := &NetworkError{Endpoint: ep.Name, Attempt: attempt, Category: classifyTransport(err), Err: err}
		metrics.RecordFetchAttempt(ctx, ep.Name, string(ne.Category))
		return nil, ne
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		ne := &NetworkError{Endpoint: ep.Name, Attempt: attempt, Category: classifyTransport(err), Err: fmt.Errorf("reading body: %w", err)}
		metrics.RecordFetchAttempt(ctx, ep.Name, string(ne.Category))
		return nil, ne
	}

	switch {
	case resp.StatusCode >= 500:
		metrics.RecordFetchAttempt(ctx, ep.Name, "server_error")
		return nil, &NetworkError{
			Endpoint:   ep.Name,
			Attempt:    attempt,
			StatusCode: resp.StatusCode,
			Category:   types.FailureTransient,
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		metrics.RecordFetchAttempt(ctx, ep.Name, "client_error")
		return nil, &ClientRequestError{
			Endpoint:   ep.Name,
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       snippet(body),
		}
	}

	metrics.RecordFetchAttempt(ctx, ep.Name, "ok")
	return &RawPayload{
		Endpoint:  ep.Name,
		URL:       u,
		Body:      body,
		Attempts:  attempt,
		FetchedAt: f.clock.Now(),
	}, nil
}

func (f *Fetcher) retryable(err error) bool {
	var ne *NetworkError
	if !errors.As(err, &ne) {
		return false
	}
	return schedule.IsRetryable(ne.Category)
}

// pause applies the rate-limit delay. Cancellation cuts it short.
func (f *Fetcher) pause(ctx context.Context) {
	if f.rateLimit <= 0 {
		return
	}
	_ = f.clock.Sleep(ctx, f.rateLimit)
}

func classifyTransport(err error) types.FailureCategory {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.FailureTimeout
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return types.FailureTimeout
	}
	return types.FailureTransient
}

func snippet(body []byte) string {
	if len(body) > maxErrorBodySize {
		return string(body[:maxErrorBodySize]) + "..."
	}
	return string(body)
}
