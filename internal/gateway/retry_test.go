package gateway

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffBounds(t *testing.T) {
	t.Parallel()

	base, maxDelay := 100*time.Millisecond, 400*time.Millisecond
	for attempt := 0; attempt < 6; attempt++ {
		d := backoff(attempt, base, maxDelay)
		assert.GreaterOrEqual(t, d, base/2)
		assert.Less(t, d, maxDelay)
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, retryable(&Error{Status: http.StatusTooManyRequests}))
	assert.True(t, retryable(&Error{Status: http.StatusServiceUnavailable}))
	assert.False(t, retryable(&Error{Status: http.StatusNotFound}))
	assert.False(t, retryable(errors.New("plain")))
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"-1", 0},
		{"soon", 0},
		{now.Add(10 * time.Second).Format(http.TimeFormat), 10 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, parseRetryAfter(tc.header, now), tc.header)
	}
}

func TestRateLimiterPerHost(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(10, 2)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	unlimited := NewRateLimiter(0, 0)
	for range 100 {
		assert.True(t, unlimited.Allow("a"))
	}
}
