package retry

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const (
	DefaultAttempts     = 3
	DefaultInitialDelay = 1000 * time.Millisecond
)

// Policy controls how Do spaces its attempts. Delay doubles after every
// failed attempt.
type Policy struct {
	Attempts     int
	InitialDelay time.Duration
	// Retryable decides whether an error is worth another attempt. A nil
	// predicate retries everything.
	Retryable func(error) bool
}

func DefaultPolicy(retryable func(error) bool) Policy {
	return Policy{
		Attempts:     DefaultAttempts,
		InitialDelay: DefaultInitialDelay,
		Retryable:    retryable,
	}
}

// Do runs op until it succeeds, the attempt budget is exhausted, the error is
// classified non-retryable, or ctx is cancelled. The last error is returned.
func Do(ctx context.Context, name string, p Policy, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	delay := p.InitialDelay
	if delay <= 0 {
		delay = DefaultInitialDelay
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if i == attempts-1 {
			break
		}
		logutil.GetLogger(ctx).Warn("operation failed, retrying",
			zap.String("op", name),
			zap.Int("attempt", i+1),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}
