package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Sleeper pauses for d. It returns early with the context error when
// ctx ends first.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the real Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Default retry values.
const (
	DefaultRetryInitialInterval = time.Second
	DefaultRetryMaxInterval     = 10 * time.Second
	DefaultRetryMultiplier      = 2.0
	DefaultRetryJitter          = 0.2
)

// RetryPolicy retries an operation with exponential backoff while its
// error is retryable, up to MaxAttempts calls in total.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64

	// Retryable decides whether an error is worth another attempt.
	// Nil retries rate limit errors only.
	Retryable func(error) bool

	// Sleep waits between attempts. Nil selects ContextSleep.
	Sleep Sleeper
}

// DefaultRetryPolicy retries rate limited calls up to maxAttempts times.
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     maxAttempts,
		InitialInterval: DefaultRetryInitialInterval,
		MaxInterval:     DefaultRetryMaxInterval,
		Multiplier:      DefaultRetryMultiplier,
		Jitter:          DefaultRetryJitter,
	}
}

// IsRateLimited reports whether err is a provider rate limit.
func IsRateLimited(err error) bool {
	return errors.Is(err, domain.ErrRateLimited)
}

// Do calls op until it succeeds, fails with a non-retryable error, the
// attempts run out or ctx ends. It returns the last error of op, or the
// context error when cancelled during a wait.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRateLimited
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}

	b := p.newBackOff()
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= attempts || !retryable(err) {
			return err
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		logger.Debug("retry: attempt %d/%d failed (%v), waiting %s", attempt, attempts, err, wait)
		if serr := sleep(ctx, wait); serr != nil {
			return serr
		}
	}
}

func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
