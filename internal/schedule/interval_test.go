package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterval(t *testing.T) {
	assert.Equal(t, 6*time.Hour, Interval(6))
	assert.Equal(t, 30*time.Minute, Interval(0.5))
	assert.Equal(t, time.Duration(0), Interval(0))
	assert.Equal(t, time.Duration(0), Interval(-1))
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("15m", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d)

	d, err = ParseDuration("", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, d)

	_, err = ParseDuration("soon", time.Hour)
	assert.Error(t, err)

	_, err = ParseDuration("-5m", time.Hour)
	assert.Error(t, err)
}

func TestNextRun(t *testing.T) {
	last := time.Date(2025, 6, 15, 6, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"within interval", last.Add(time.Hour), last.Add(6 * time.Hour)},
		{"exactly due", last.Add(6 * time.Hour), last.Add(12 * time.Hour)},
		{"overran two ticks", last.Add(13 * time.Hour), last.Add(18 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextRun(last, 6*time.Hour, tt.now))
		})
	}
}

func TestNextRun_NoInterval(t *testing.T) {
	now := time.Date(2025, 6, 15, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, now, NextRun(now.Add(-time.Hour), 0, now))
}
