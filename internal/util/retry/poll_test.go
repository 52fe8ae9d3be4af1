package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPoll(timeout time.Duration) []Option {
	return []Option{
		WithTimeout(timeout),
		WithInitialDelay(2 * time.Millisecond),
		WithMaxDelay(5 * time.Millisecond),
	}
}

func TestPoll_ReachesTarget(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	err := Poll(context.Background(), func(context.Context) (bool, error) {
		return calls.Add(1) >= 3, nil
	}, fastPoll(time.Second)...)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPoll_TransientErrorsKeepPolling(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	err := Poll(context.Background(), func(context.Context) (bool, error) {
		if calls.Add(1) < 3 {
			return false, errors.New("connection reset")
		}
		return true, nil
	}, fastPoll(time.Second)...)

	require.NoError(t, err)
}

func TestPoll_FatalFailsFast(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	failed := errors.New("resource entered FAILED")
	err := Poll(context.Background(), func(context.Context) (bool, error) {
		calls.Add(1)
		return false, Fatal(failed)
	}, fastPoll(time.Second)...)

	require.ErrorIs(t, err, failed)
	assert.True(t, IsFatal(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPoll_Timeout(t *testing.T) {
	t.Parallel()
	err := Poll(context.Background(), func(context.Context) (bool, error) {
		return false, errors.New("still pending")
	}, fastPoll(20*time.Millisecond)...)

	require.ErrorIs(t, err, ErrPollTimeout)
	assert.Contains(t, err.Error(), "still pending")
}

func TestPoll_TimeoutShorterThanInitialIntervalNeverChecks(t *testing.T) {
	t.Parallel()
	triples := []struct {
		timeout, initial, max time.Duration
	}{
		{0, time.Millisecond, time.Second},
		{time.Millisecond, 2 * time.Millisecond, time.Millisecond},
		{50 * time.Millisecond, time.Second, 10 * time.Second},
	}
	for _, tt := range triples {
		var calls atomic.Int32
		err := Poll(context.Background(), func(context.Context) (bool, error) {
			calls.Add(1)
			return true, nil
		}, WithTimeout(tt.timeout), WithInitialDelay(tt.initial), WithMaxDelay(tt.max))

		require.ErrorIs(t, err, ErrPollTimeout)
		assert.Zero(t, calls.Load())
	}
}

func TestPoll_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	err := Poll(ctx, func(context.Context) (bool, error) {
		cancel()
		return false, nil
	}, fastPoll(time.Second)...)

	require.ErrorIs(t, err, context.Canceled)
}

func TestPoll_IntervalGrowsUpToMax(t *testing.T) {
	t.Parallel()
	var stamps []time.Time
	_ = Poll(context.Background(), func(context.Context) (bool, error) {
		stamps = append(stamps, time.Now())
		return len(stamps) == 5, nil
	}, WithTimeout(time.Second), WithInitialDelay(5*time.Millisecond), WithMaxDelay(12*time.Millisecond), WithMultiplier(2))

	require.Len(t, stamps, 5)
	last := stamps[4].Sub(stamps[3])
	assert.GreaterOrEqual(t, last, 12*time.Millisecond)
	assert.Less(t, last, 60*time.Millisecond)
}
