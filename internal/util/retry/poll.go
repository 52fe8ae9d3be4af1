package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPollTimeout is returned by Poll when the condition did not hold in time.
var ErrPollTimeout = errors.New("timed out waiting for condition")

// Condition reports whether the awaited state has been reached.
// A non-fatal error is treated as "not yet" and polling continues;
// a Fatal error stops polling.
type Condition func(ctx context.Context) (bool, error)

// Poll evaluates cond until it returns true, returns a Fatal error, or the
// timeout elapses. The interval starts at InitialDelay and grows by
// Multiplier up to MaxDelay.
//
// A timeout shorter than the initial interval leaves no room for a second
// evaluation, so Poll fails immediately without evaluating cond.
func Poll(ctx context.Context, cond Condition, opts ...Option) error {
	cfg := newConfig(Config{
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   1.5,
		Timeout:      5 * time.Minute,
	}, opts)

	if cfg.Timeout < cfg.InitialDelay {
		return fmt.Errorf("%w: timeout %s is shorter than the poll interval %s", ErrPollTimeout, cfg.Timeout, cfg.InitialDelay)
	}

	deadline := time.Now().Add(cfg.Timeout)
	delay := cfg.InitialDelay
	var lastErr error

	for {
		done, err := cond(ctx)
		switch {
		case err != nil && IsFatal(err):
			return err
		case err != nil:
			lastErr = err
		case done:
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			if lastErr != nil {
				return fmt.Errorf("%w after %s (last error: %v)", ErrPollTimeout, cfg.Timeout, lastErr)
			}
			return fmt.Errorf("%w after %s", ErrPollTimeout, cfg.Timeout)
		}

		if err := sleep(ctx, min(delay, remaining)); err != nil {
			return fmt.Errorf("polling cancelled: %w", err)
		}
		delay = cfg.next(delay)
	}
}
