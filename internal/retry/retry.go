package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config bounds a retry loop. With Exponential set the delay doubles per
// attempt, otherwise it grows linearly.
type Config struct {
	MaxAttempts int
	Delay       time.Duration
	Exponential bool
}

// Permanent wraps an error that must not be retried.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }

func (p *Permanent) Unwrap() error { return p.Err }

// Do runs fn up to cfg.MaxAttempts times, sleeping between attempts unless the
// context is cancelled first. A Permanent error aborts the loop immediately.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var perm *Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Delay * time.Duration(attempt)
		if cfg.Exponential {
			delay = cfg.Delay * time.Duration(1<<(attempt-1))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
