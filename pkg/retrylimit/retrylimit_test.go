package retrylimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (s statusErr) Error() string   { return "status" }
func (s statusErr) StatusCode() int { return int(s) }

func fastConfig(attempts int) RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.RateLimitDelay = time.Millisecond
	return cfg
}

func TestWithRetryConfig_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastConfig(5)
	cfg.OnRetry = func(attempt int, err error) { retried = append(retried, attempt) }

	err := WithRetryConfig(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, nil, cfg)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestWithRetryConfig_ExhaustedWrapsLastError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	retries := 0
	cfg := fastConfig(3)
	cfg.OnRetry = func(int, error) { retries++ }

	err := WithRetryConfig(context.Background(), func() error {
		calls++
		return boom
	}, nil, cfg)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries, "no backoff after the last attempt")
}

func TestWithRetryConfig_FatalStops(t *testing.T) {
	calls := 0
	err := WithRetryConfig(context.Background(), func() error {
		calls++
		return &FatalError{Err: errors.New("bad dsn")}
	}, nil, fastConfig(5))

	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, 1, calls)
}

func TestWithRetryConfig_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetryConfig(ctx, func() error { return nil }, nil, fastConfig(5))
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithRetryMax_RateLimitedSlowsLimiter(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 1, 20, 1, 0.5)
	calls := 0

	err := WithRetryMax(context.Background(), func() error {
		calls++
		if calls == 1 {
			return statusErr(429)
		}
		return nil
	}, lim, 3)

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 5.0, lim.CurrentLimit())
}

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	lim := NewAdaptiveLimiter(2, 1, 3, 1, 0.1)
	lim.RateLimited()
	assert.Equal(t, 1.0, lim.CurrentLimit())

	up := NewAdaptiveLimiter(3, 1, 3, 1, 0.5)
	up.Success()
	assert.Equal(t, 3.0, up.CurrentLimit())
}

func TestDefaultClassifier(t *testing.T) {
	assert.True(t, DefaultClassifier(statusErr(429)))
	assert.True(t, DefaultClassifier(statusErr(503)))
	assert.False(t, DefaultClassifier(statusErr(404)))
	assert.False(t, DefaultClassifier(errors.New("plain")))
}
