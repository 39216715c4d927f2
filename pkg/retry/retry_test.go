package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(strategy BackoffStrategy) Config {
	return Config{
		Strategy:     strategy,
		BaseInterval: time.Millisecond,
		MaxInterval:  5 * time.Millisecond,
		MaxAttempts:  4,
		Jitter:       0,
	}
}

func TestInterval(t *testing.T) {
	tests := []struct {
		name     string
		strategy BackoffStrategy
		attempt  int
		want     time.Duration
	}{
		{"exponential first", BackoffExponential, 1, time.Millisecond},
		{"exponential second", BackoffExponential, 2, 2 * time.Millisecond},
		{"exponential third", BackoffExponential, 3, 4 * time.Millisecond},
		{"exponential capped", BackoffExponential, 10, 5 * time.Millisecond},
		{"linear third", BackoffLinear, 3, 3 * time.Millisecond},
		{"constant any", BackoffConstant, 7, time.Millisecond},
		{"attempt below one clamped", BackoffExponential, 0, time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fastConfig(tt.strategy).Interval(tt.attempt); got != tt.want {
				t.Errorf("Interval(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestIntervalJitterBounds(t *testing.T) {
	cfg := Config{BaseInterval: 100 * time.Millisecond, MaxInterval: time.Second, Jitter: 0.5}
	for i := 0; i < 100; i++ {
		got := cfg.Interval(1)
		if got < 50*time.Millisecond || got > 150*time.Millisecond {
			t.Fatalf("jittered interval %v outside [50ms, 150ms]", got)
		}
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(BackoffConstant), func(ctx context.Context) (bool, error) {
		calls++
		if calls < 3 {
			return true, errors.New("transient")
		}
		return false, nil
	})
	if err != nil {
		t.Fatalf("Do returned %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := Do(context.Background(), fastConfig(BackoffConstant), func(ctx context.Context) (bool, error) {
		calls++
		return false, permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	transient := errors.New("transient")
	calls := 0
	err := Do(context.Background(), fastConfig(BackoffConstant), func(ctx context.Context) (bool, error) {
		calls++
		return true, transient
	})
	if !errors.Is(err, transient) {
		t.Fatalf("err = %v", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want MaxAttempts", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{BaseInterval: time.Hour, MaxAttempts: 3, Jitter: 0}

	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func(ctx context.Context) (bool, error) {
			return true, errors.New("transient")
		})
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}
