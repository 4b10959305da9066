package fetcher

import (
	"fmt"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

// NetworkError is a failed attempt that may succeed when retried: a transport
// failure, a per-attempt timeout or a 5xx response. It stays inside the
// fetcher unless the retry policy classifies it as permanent.
type NetworkError struct {
	Endpoint   string
	Attempt    int
	StatusCode int // 0 when no response was received
	Category   types.FailureCategory
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s attempt %d: server returned %d", e.Endpoint, e.Attempt, e.StatusCode)
	}
	return fmt.Sprintf("%s attempt %d: %v", e.Endpoint, e.Attempt, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Kind identifies the error in run history.
func (e *NetworkError) Kind() string { return "NetworkError" }

// ClientRequestError is a non-2xx, non-5xx response. It is never retried.
type ClientRequestError struct {
	Endpoint   string
	URL        string
	StatusCode int
	Body       string
}

func (e *ClientRequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: GET %s returned %d", e.Endpoint, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: GET %s returned %d: %s", e.Endpoint, e.URL, e.StatusCode, e.Body)
}

// Kind identifies the error in run history.
func (e *ClientRequestError) Kind() string { return "ClientRequestError" }

// FetchExhaustedError reports that every allowed attempt failed.
type FetchExhaustedError struct {
	Endpoint string
	Attempts int
	Last     error
}

func (e *FetchExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Endpoint, e.Attempts, e.Last)
}

func (e *FetchExhaustedError) Unwrap() error { return e.Last }

// Kind identifies the error in run history.
func (e *FetchExhaustedError) Kind() string { return "FetchExhaustedError" }
