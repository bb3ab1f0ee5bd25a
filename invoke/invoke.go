// Package invoke executes single generation calls with a deterministic
// retry/backoff policy, and polls long-running operations to completion.
package invoke

import (
	"context"
	"log/slog"
	"time"

	"github.com/sweetpotato0/genflow/fault"
	"github.com/sweetpotato0/genflow/pkg/logging"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = 2 * time.Second
)

// SleepFunc suspends the caller for d or until the context is cancelled.
// Tests inject a no-op implementation.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Invoker retries transient failures with a doubling backoff. Only
// rate-limit/quota signatures are retried; every other failure is classified
// and returned immediately.
type Invoker struct {
	attempts  int
	baseDelay time.Duration
	sleep     SleepFunc
	logger    *slog.Logger
}

// Option customises an Invoker.
type Option func(*Invoker)

// WithAttempts overrides the total attempt cap.
func WithAttempts(n int) Option {
	return func(iv *Invoker) {
		if n > 0 {
			iv.attempts = n
		}
	}
}

// WithBaseDelay overrides the initial backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(iv *Invoker) {
		if d > 0 {
			iv.baseDelay = d
		}
	}
}

// WithSleep replaces the backoff sleeper, mainly for tests.
func WithSleep(sleep SleepFunc) Option {
	return func(iv *Invoker) {
		if sleep != nil {
			iv.sleep = sleep
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(iv *Invoker) {
		if logger != nil {
			iv.logger = logger
		}
	}
}

// NewInvoker returns an invoker with the default policy: 3 attempts, backoff
// starting at 2s and doubling each retry, no jitter.
func NewInvoker(opts ...Option) *Invoker {
	iv := &Invoker{
		attempts:  defaultAttempts,
		baseDelay: defaultBaseDelay,
		sleep:     sleepContext,
		logger:    logging.WithComponent("invoker"),
	}
	for _, opt := range opts {
		opt(iv)
	}
	return iv
}

// Do runs fn up to the attempt cap, retrying verbatim on transient failures.
// The returned error is always classified under label.
func Do[T any](ctx context.Context, iv *Invoker, label string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	delay := iv.baseDelay
	for attempt := 1; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if !fault.Retryable(err) || attempt >= iv.attempts {
			return zero, fault.Classify(err, label)
		}
		iv.logger.Warn("transient failure, backing off",
			"context", label,
			"attempt", attempt,
			"delay", delay.String(),
			"error", err,
		)
		if serr := iv.sleep(ctx, delay); serr != nil {
			return zero, fault.Classify(serr, label)
		}
		delay *= 2
	}
}
