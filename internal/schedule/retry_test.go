package schedule

import (
	"testing"
	"time"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestCalculateBackoff(t *testing.T) {
	policy := types.RetryPolicy{BaseDelaySeconds: 1}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 0},
		{2, 1 * time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 8 * time.Second},
	}

	for _, tc := range tests {
		result := CalculateBackoff(policy, tc.attempt)
		assert.Equal(t, tc.expected, result, "attempt %d", tc.attempt)
	}
}

func TestCalculateBackoff_Fractional(t *testing.T) {
	policy := types.RetryPolicy{BaseDelaySeconds: 0.25}
	assert.Equal(t, 250*time.Millisecond, CalculateBackoff(policy, 2))
	assert.Equal(t, 500*time.Millisecond, CalculateBackoff(policy, 3))
}

func TestCalculateBackoff_CapsAtOneHour(t *testing.T) {
	policy := types.RetryPolicy{BaseDelaySeconds: 1800}
	assert.Equal(t, time.Hour, CalculateBackoff(policy, 4))
}

func TestCalculateBackoff_CustomCap(t *testing.T) {
	policy := types.RetryPolicy{BaseDelaySeconds: 1, MaxDelaySeconds: 3}
	assert.Equal(t, 2*time.Second, CalculateBackoff(policy, 3))
	assert.Equal(t, 3*time.Second, CalculateBackoff(policy, 4))
}

func TestCalculateBackoff_ZeroBase(t *testing.T) {
	assert.Equal(t, time.Duration(0), CalculateBackoff(types.RetryPolicy{}, 3))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category types.FailureCategory
		expected bool
	}{
		{types.FailureTransient, true},
		{types.FailureTimeout, true},
		{types.FailurePermanent, false},
		{types.FailureCategory("BOGUS"), false},
		{types.FailureCategory(""), false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.expected, IsRetryable(tc.category), "category %q", tc.category)
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 1.0, policy.BaseDelaySeconds)
}
