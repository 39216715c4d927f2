// Package retry provides bounded retries with backoff for transient
// failures, primarily around enricher HTTP fetches.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy defines how to calculate the next retry delay.
type BackoffStrategy int

const (
	// BackoffExponential uses exponential backoff: base * 2^(attempt-1)
	BackoffExponential BackoffStrategy = iota

	// BackoffLinear uses linear backoff: base * attempt
	BackoffLinear

	// BackoffConstant uses constant backoff: base (no increase)
	BackoffConstant
)

// Config configures the backoff behavior.
type Config struct {
	// Strategy is the backoff strategy to use.
	// Default is BackoffExponential.
	Strategy BackoffStrategy

	// BaseInterval is the base interval for backoff calculation.
	// Default is 200 milliseconds.
	BaseInterval time.Duration

	// MaxInterval is the maximum delay between attempts.
	// Default is 5 seconds.
	MaxInterval time.Duration

	// MaxAttempts bounds the total number of calls, first try included.
	// Default is 3.
	MaxAttempts int

	// Jitter adds randomness to prevent thundering herd.
	// Value between 0.0 (no jitter) and 1.0 (full jitter).
	// Default is 0.1 (10% jitter).
	Jitter float64
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Strategy:     BackoffExponential,
		BaseInterval: 200 * time.Millisecond,
		MaxInterval:  5 * time.Second,
		MaxAttempts:  3,
		Jitter:       0.1,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BaseInterval <= 0 {
		c.BaseInterval = d.BaseInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = d.MaxInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	return c
}

// Interval calculates the backoff delay before the given attempt.
// Attempts are 1-based; values below 1 are treated as 1.
func (c Config) Interval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var interval time.Duration
	switch c.Strategy {
	case BackoffLinear:
		interval = c.BaseInterval * time.Duration(attempt)
	case BackoffConstant:
		interval = c.BaseInterval
	default:
		multiplier := math.Pow(2, float64(attempt-1))
		interval = time.Duration(float64(c.BaseInterval) * multiplier)
	}

	if c.MaxInterval > 0 && interval > c.MaxInterval {
		interval = c.MaxInterval
	}
	if c.Jitter > 0 {
		interval = applyJitter(interval, c.Jitter)
	}
	return interval
}

// applyJitter spreads the interval by up to jitter*interval in either
// direction.
func applyJitter(interval time.Duration, jitter float64) time.Duration {
	if jitter > 1 {
		jitter = 1
	}
	delta := float64(interval) * jitter
	offset := (rand.Float64()*2 - 1) * delta
	result := time.Duration(float64(interval) + offset)
	if result < 0 {
		return 0
	}
	return result
}

// Do calls fn until it succeeds, returns a permanent error, or the
// attempt budget runs out. fn reports (retriable, err); a nil err stops
// immediately. The last error is returned when the budget is exhausted.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) (retriable bool, err error)) error {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		retriable, err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retriable || attempt == cfg.MaxAttempts {
			return lastErr
		}

		timer := time.NewTimer(cfg.Interval(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
