// Package schedule holds the timing rules shared by the fetcher and the
// scheduler: retry backoff and run intervals.
package schedule

import (
	"math"
	"time"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

const maxBackoff = time.Hour

// DefaultRetryPolicy returns the default retry configuration.
func DefaultRetryPolicy() types.RetryPolicy {
	return types.RetryPolicy{
		MaxAttempts:      3,
		BaseDelaySeconds: 1,
	}
}

// CalculateBackoff returns the wait before the given attempt is issued.
// The first attempt is not delayed; attempt n waits base * 2^(n-2), capped at
// MaxDelaySeconds (one hour when unset).
func CalculateBackoff(policy types.RetryPolicy, attempt int) time.Duration {
	if attempt <= 1 || policy.BaseDelaySeconds <= 0 {
		return 0
	}
	limit := maxBackoff
	if policy.MaxDelaySeconds > 0 {
		limit = seconds(policy.MaxDelaySeconds)
	}
	backoff := policy.BaseDelaySeconds * math.Pow(2, float64(attempt-2))
	if backoff >= limit.Seconds() {
		return limit
	}
	return seconds(backoff)
}

// IsRetryable returns whether a failure category should be retried. The set
// is fixed: transport failures, timeouts and 5xx responses.
func IsRetryable(category types.FailureCategory) bool {
	return category == types.FailureTransient || category == types.FailureTimeout
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
