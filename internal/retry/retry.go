// Package retry runs an operation with exponential backoff, used to wait
// for the capture device to enumerate.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config contains configuration for exponential backoff retries
type Config struct {
	Attempts int           // Total attempts including the first (default: 1)
	Delay    time.Duration // Initial retry delay (default: 1 second)
	MaxDelay time.Duration // Maximum retry delay cap (default: 30 seconds)
}

// DefaultConfig returns a single-attempt configuration
func DefaultConfig() Config {
	return Config{
		Attempts: 1,
		Delay:    1 * time.Second,
		MaxDelay: 30 * time.Second,
	}
}

// Func is an operation that may fail transiently
type Func func(ctx context.Context) error

// Do executes fn until it succeeds, the attempts are exhausted or ctx is
// cancelled. The last error is wrapped in the returned error.
//
// Backoff schedule with Delay=1s, MaxDelay=30s:
//   - after attempt 1: 1s
//   - after attempt 2: 2s
//   - after attempt 3: 4s
//   - ... capped at 30s
func Do(ctx context.Context, name string, cfg Config, fn Func) error {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Info("retry: succeeded", "op", name, "attempt", attempt)
			}
			return nil
		}

		if attempt >= cfg.Attempts {
			break
		}

		delay := Backoff(attempt, cfg)
		slog.Warn("retry: attempt failed, backing off",
			"op", name,
			"attempt", attempt,
			"max_attempts", cfg.Attempts,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	if cfg.Attempts == 1 {
		return err
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", name, cfg.Attempts, err)
}

// Backoff returns the delay after the given failed attempt (1-based).
//
// Formula: delay = Delay * 2^(attempt-1), capped at MaxDelay.
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 31 {
		attempt = 31
	}
	delay := cfg.Delay * time.Duration(1<<uint(attempt-1))

	if cfg.MaxDelay > 0 && (delay > cfg.MaxDelay || delay <= 0) {
		delay = cfg.MaxDelay
	}
	return delay
}
