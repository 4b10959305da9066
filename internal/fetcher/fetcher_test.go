package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func policy(attempts int) types.RetryPolicy {
	return types.RetryPolicy{MaxAttempts: attempts, BaseDelaySeconds: 1}
}

func newTestFetcher(clock Clock, client Doer, attempts int) *Fetcher {
	return New(Options{
		Policy:    policy(attempts),
		RateLimit: 500 * time.Millisecond,
		Client:    client,
		Clock:     clock,
	})
}

func TestFetch_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, `{"status":200,"data":[]}`)
	}))
	defer srv.Close()

	clock := newFakeClock()
	f := newTestFetcher(clock, srv.Client(), 3)

	payload, err := f.Fetch(context.Background(), Endpoint{Name: "agents", URL: srv.URL + "/agents"})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, payload.Attempts)
	assert.JSONEq(t, `{"status":200,"data":[]}`, string(payload.Body))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 500 * time.Millisecond}, clock.Sleeps())
}

func TestFetch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such resource", http.StatusNotFound)
	}))
	defer srv.Close()

	clock := newFakeClock()
	f := newTestFetcher(clock, srv.Client(), 3)

	_, err := f.Fetch(context.Background(), Endpoint{Name: "sprays", URL: srv.URL + "/sprays"})
	require.Error(t, err)
	var ce *ClientRequestError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, http.StatusNotFound, ce.StatusCode)
	assert.Contains(t, ce.Body, "no such resource")
	assert.Equal(t, "ClientRequestError", ce.Kind())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, clock.Sleeps(), "only the rate-limit delay")
}

func TestFetch_TooManyRequestsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newTestFetcher(newFakeClock(), srv.Client(), 3)
	_, err := f.Fetch(context.Background(), Endpoint{Name: "agents", URL: srv.URL})
	var ce *ClientRequestError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_Exhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	clock := newFakeClock()
	f := newTestFetcher(clock, srv.Client(), 3)

	_, err := f.Fetch(context.Background(), Endpoint{Name: "maps", URL: srv.URL})
	require.Error(t, err)
	var fe *FetchExhaustedError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "maps", fe.Endpoint)
	assert.Equal(t, 3, fe.Attempts)
	assert.Equal(t, "FetchExhaustedError", fe.Kind())

	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, http.StatusBadGateway, ne.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 500 * time.Millisecond}, clock.Sleeps())
}

func TestFetch_SingleAttemptPolicy(t *testing.T) {
	var calls atomic.Int32
	client := doerFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, &url.Error{Op: "Get", URL: req.URL.String(), Err: errors.New("connection refused")}
	})

	f := newTestFetcher(newFakeClock(), client, 1)
	_, err := f.Fetch(context.Background(), Endpoint{Name: "agents", URL: "http://upstream.invalid/agents"})
	var fe *FetchExhaustedError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 1, fe.Attempts)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_TimeoutIsRetried(t *testing.T) {
	var calls atomic.Int32
	client := doerFunc(func(req *http.Request) (*http.Response, error) {
		if calls.Add(1) == 1 {
			return nil, &url.Error{Op: "Get", URL: req.URL.String(), Err: context.DeadlineExceeded}
		}
		rec := httptest.NewRecorder()
		_, _ = rec.WriteString(`{"status":200,"data":[]}`)
		return rec.Result(), nil
	})

	clock := newFakeClock()
	f := newTestFetcher(clock, client, 3)
	payload, err := f.Fetch(context.Background(), Endpoint{Name: "weapons", URL: "http://upstream.invalid/weapons", Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 2, payload.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 500 * time.Millisecond}, clock.Sleeps())
}

func TestFetch_PerAttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := newTestFetcher(newFakeClock(), srv.Client(), 2)
	_, err := f.Fetch(context.Background(), Endpoint{Name: "maps", URL: srv.URL, Timeout: 20 * time.Millisecond})
	var fe *FetchExhaustedError
	require.True(t, errors.As(err, &fe))
	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, types.FailureTimeout, ne.Category)
}

func TestFetch_CancelledDuringAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := doerFunc(func(req *http.Request) (*http.Response, error) {
		cancel()
		return nil, &url.Error{Op: "Get", URL: req.URL.String(), Err: context.Canceled}
	})

	clock := newFakeClock()
	f := newTestFetcher(clock, client, 3)
	_, err := f.Fetch(ctx, Endpoint{Name: "agents", URL: "http://upstream.invalid/agents"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, clock.Sleeps(), "no backoff or rate-limit wait after cancellation")
}

func TestFetch_TransportFailuresAlwaysEndExhausted(t *testing.T) {
	var calls atomic.Int32
	client := doerFunc(func(req *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, &url.Error{Op: "Get", URL: req.URL.String(), Err: context.DeadlineExceeded}
	})

	f := newTestFetcher(newFakeClock(), client, 2)
	_, err := f.Fetch(context.Background(), Endpoint{Name: "agents", URL: "http://upstream.invalid/agents"})
	var fe *FetchExhaustedError
	require.True(t, errors.As(err, &fe), "network failures leave the fetcher wrapped")
	assert.Equal(t, 2, fe.Attempts)
	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, types.FailureTimeout, ne.Category)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_ServiceUnavailableRetriedUpToPolicy(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(newFakeClock(), srv.Client(), 4)
	_, err := f.Fetch(context.Background(), Endpoint{Name: "agents", URL: srv.URL})
	var fe *FetchExhaustedError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 4, fe.Attempts)
	assert.Equal(t, int32(4), calls.Load())
}

func TestFetch_SendsQueryAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/agents", r.URL.Path)
		assert.Equal(t, "en-US", r.URL.Query().Get("language"))
		assert.Equal(t, "true", r.URL.Query().Get("isPlayableCharacter"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = fmt.Fprint(w, `{"status":200,"data":[]}`)
	}))
	defer srv.Close()

	cfg := &types.ProjectConfig{
		API: types.APIConfig{BaseURL: srv.URL + "/v1/", Language: "en-US", TimeoutSeconds: 5},
		Endpoints: []types.EndpointConfig{
			{Name: "agents", URL: "/agents", Query: map[string]string{"isPlayableCharacter": "true"}},
		},
	}
	eps := Resolve(cfg)
	require.Len(t, eps, 1)

	f := newTestFetcher(newFakeClock(), srv.Client(), 1)
	payload, err := f.Fetch(context.Background(), eps[0])
	require.NoError(t, err)
	assert.Contains(t, payload.URL, "language=en-US")
}

func TestResolve(t *testing.T) {
	cfg := &types.ProjectConfig{
		API: types.APIConfig{BaseURL: "https://valorant-api.com/v1", Language: "en-US", TimeoutSeconds: 30},
		Endpoints: []types.EndpointConfig{
			{Name: "agents", URL: "agents"},
			{Name: "maps", URL: "https://mirror.example.com/maps", Query: map[string]string{"language": "fr-FR"}, TimeoutSeconds: 2.5},
		},
	}

	eps := Resolve(cfg)
	require.Len(t, eps, 2)
	assert.Equal(t, "https://valorant-api.com/v1/agents", eps[0].URL)
	assert.Equal(t, "en-US", eps[0].Query["language"])
	assert.Equal(t, 30*time.Second, eps[0].Timeout)

	assert.Equal(t, "https://mirror.example.com/maps", eps[1].URL)
	assert.Equal(t, "fr-FR", eps[1].Query["language"])
	assert.Equal(t, 2500*time.Millisecond, eps[1].Timeout)

	u, err := eps[1].requestURL()
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example.com/maps?language=fr-FR", u)
}

func TestSystemClock_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := SystemClock{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
