// Package ratelimit paces and retries outbound API calls.
//
// A Limiter serializes calls (one in flight at a time), enforces a minimum
// interval between them, and retries failures the caller marks as
// transient with exponential backoff.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Options configures a Limiter.
type Options struct {
	// MinInterval is the minimum spacing between the start of two calls.
	// Zero disables pacing.
	MinInterval time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// RetryBase is the first backoff delay; it doubles on each retry.
	RetryBase time.Duration
	// Retryable reports whether an error is transient. When nil no error
	// is retried.
	Retryable func(error) bool
}

// Limiter gates calls to one remote service.
type Limiter struct {
	sem        *semaphore.Weighted
	pace       *rate.Limiter
	maxRetries uint64
	base       time.Duration
	retryable  func(error) bool
}

// New creates a Limiter from opts.
func New(opts Options) *Limiter {
	pace := rate.NewLimiter(rate.Inf, 1)
	if opts.MinInterval > 0 {
		pace = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}

	base := opts.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Limiter{
		sem:        semaphore.NewWeighted(1),
		pace:       pace,
		maxRetries: uint64(maxRetries),
		base:       base,
		retryable:  opts.Retryable,
	}
}

// Do runs fn under the limiter. Each attempt waits for its turn; transient
// errors are retried until MaxRetries is exhausted, after which the last
// error is returned.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return l.DoWhen(ctx, l.retryable, fn)
}

// DoWhen is Do with its own retry predicate. Non-idempotent calls pass a
// predicate that only matches errors the server rejected before applying
// anything; a nil predicate makes exactly one attempt.
func (l *Limiter) DoWhen(ctx context.Context, retryable func(error) bool, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(l.maxRetries, retry.NewExponential(l.base))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := l.attempt(ctx, fn); err != nil {
			if retryable != nil && retryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
}

func (l *Limiter) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for request slot: %w", err)
	}
	defer l.sem.Release(1)

	if err := l.pace.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limit: %w", err)
	}
	return fn(ctx)
}
