package retry

import (
	"context"
	"fmt"
	"time"
)

// Config holds retry and polling configuration.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Timeout bounds Poll. WithExponentialBackoff is bounded by MaxRetries and ctx.
	Timeout time.Duration
}

// Option is a functional option for retry configuration.
type Option func(*Config)

// WithExponentialBackoff executes the operation with exponential backoff retry.
// It retries the operation up to MaxRetries times, with exponentially increasing
// delays between attempts. Context cancellation is respected throughout.
//
// Errors wrapped with Fatal() are not retried.
func WithExponentialBackoff(ctx context.Context, operation func() error, opts ...Option) error {
	cfg := newConfig(Config{
		MaxRetries:   5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}, opts)

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsFatal(err) {
			return fmt.Errorf("fatal error (not retrying): %w", err)
		}

		if attempt < cfg.MaxRetries {
			if err := sleep(ctx, delay); err != nil {
				return fmt.Errorf("context cancelled after %d attempts: %w", attempt+1, err)
			}
			delay = cfg.next(delay)
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", cfg.MaxRetries+1, lastErr)
}

func newConfig(defaults Config, opts []Option) *Config {
	cfg := defaults
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	return &cfg
}

// next grows delay by the multiplier, capped at MaxDelay.
func (c *Config) next(delay time.Duration) time.Duration {
	delay = time.Duration(float64(delay) * c.Multiplier)
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// sleep blocks for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithInitialDelay sets the initial delay between retries.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		c.InitialDelay = d
	}
}

// WithMaxDelay sets the maximum delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDelay = d
	}
}

// WithMultiplier sets the backoff multiplier.
func WithMultiplier(m float64) Option {
	return func(c *Config) {
		c.Multiplier = m
	}
}

// WithTimeout sets the overall polling timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}
