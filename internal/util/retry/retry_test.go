package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithExponentialBackoff_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("resource locked")
		}
		return nil
	}, WithInitialDelay(5*time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithExponentialBackoff_MaxRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return errors.New("persistent error")
	}, WithMaxRetries(3), WithInitialDelay(5*time.Millisecond))

	require.Error(t, err)
	// MaxRetries counts retries after the first attempt.
	assert.Equal(t, 4, attempts)
	assert.Contains(t, err.Error(), "after 4 retries")
}

func TestWithExponentialBackoff_FatalStopsImmediately(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := WithExponentialBackoff(context.Background(), func() error {
		attempts++
		return Fatal(errors.New("invalid input"))
	}, WithInitialDelay(5*time.Millisecond))

	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 1, attempts)
}

func TestWithExponentialBackoff_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := WithExponentialBackoff(ctx, func() error {
		attempts++
		return errors.New("error")
	}, WithInitialDelay(10*time.Millisecond))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestConfig_NextCapsAtMaxDelay(t *testing.T) {
	t.Parallel()
	cfg := newConfig(Config{Multiplier: 2, MaxDelay: 30 * time.Millisecond}, nil)

	assert.Equal(t, 20*time.Millisecond, cfg.next(10*time.Millisecond))
	assert.Equal(t, 30*time.Millisecond, cfg.next(20*time.Millisecond))
}

func TestNewConfig_MultiplierBelowOneIsLinear(t *testing.T) {
	t.Parallel()
	cfg := newConfig(Config{}, []Option{WithMultiplier(0.5)})
	assert.Equal(t, 10*time.Millisecond, cfg.next(10*time.Millisecond))
}

func TestFatal(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Fatal(nil))

	sentinel := errors.New("sentinel")
	wrapped := fmt.Errorf("context: %w", Fatal(sentinel))

	assert.True(t, IsFatal(wrapped))
	assert.ErrorIs(t, wrapped, sentinel)
	assert.Equal(t, "sentinel", Fatal(sentinel).Error())
	assert.False(t, IsFatal(sentinel))
	assert.True(t, IsFatal(errors.Join(Fatal(sentinel), errors.New("more"))))
}
