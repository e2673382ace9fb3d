package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) IsRetryable() bool {
	return true
}

func (e *retryableError) Unwrap() error {
	return e.err
}

func NewRetryableError(err error) RetryableError {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

type FatalError interface {
	error
	IsFatal() bool
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string {
	return e.err.Error()
}

func (e *fatalError) IsFatal() bool {
	return true
}

func (e *fatalError) Unwrap() error {
	return e.err
}

func NewFatalError(err error) FatalError {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

type Strategy string

const (
	// StrategyConstant sleeps Interval between every attempt.
	StrategyConstant Strategy = "constant"
	// StrategyLinear sleeps Interval*attempt between attempts.
	StrategyLinear Strategy = "linear"
	// StrategyExponential grows Interval by Multiplier up to MaxInterval.
	StrategyExponential Strategy = "exponential"
)

// Policy is a bounded-attempt retry budget. Each delivery family carries its
// own policy; budgets are deliberately not unified across families.
type Policy struct {
	MaxAttempts int
	Interval    time.Duration
	MaxInterval time.Duration
	Multiplier  float64
	Strategy    Strategy
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Interval:    1 * time.Second,
		MaxInterval: 30 * time.Second,
		Multiplier:  2.0,
		Strategy:    StrategyExponential,
	}
}

func (p Policy) backoff() backoff.BackOff {
	switch p.Strategy {
	case StrategyConstant:
		return backoff.NewConstantBackOff(p.Interval)
	case StrategyLinear:
		return &linearBackOff{interval: p.Interval, max: p.MaxInterval}
	default:
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = p.Interval
		exp.MaxInterval = p.MaxInterval
		exp.Multiplier = p.Multiplier
		exp.MaxElapsedTime = 0
		return exp
	}
}

// linearBackOff scales the base interval by the attempt number, matching the
// sleep(RETRY_DELAY * attempt) behavior of the customer delivery path.
type linearBackOff struct {
	interval time.Duration
	max      time.Duration
	attempt  int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	d := time.Duration(b.attempt) * b.interval
	if b.max > 0 && d > b.max {
		return b.max
	}
	return d
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	return RetryWithCallback(ctx, policy, fn, nil)
}

func RetryWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}

	var b backoff.BackOff = backoff.WithContext(policy.backoff(), ctx)
	b = backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1))

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()

		if err == nil {
			return nil
		}

		var fatalErr FatalError
		if errors.As(err, &fatalErr) {
			return backoff.Permanent(err)
		}

		var retryableErr RetryableError
		if !errors.As(err, &retryableErr) {
			// Default: treat as retryable
			err = NewRetryableError(err)
		}

		if onRetry != nil && attempt < policy.MaxAttempts {
			onRetry(attempt, err, NextDelay(policy, attempt))
		}

		return err
	}

	return backoff.Retry(operation, b)
}

// NextDelay computes the sleep a policy would apply after the given attempt.
func NextDelay(policy Policy, attempt int) time.Duration {
	var d time.Duration
	switch policy.Strategy {
	case StrategyConstant:
		d = policy.Interval
	case StrategyLinear:
		d = time.Duration(attempt) * policy.Interval
	default:
		d = policy.Interval
		for i := 1; i < attempt; i++ {
			d = time.Duration(float64(d) * policy.Multiplier)
		}
	}
	if policy.MaxInterval > 0 && d > policy.MaxInterval {
		return policy.MaxInterval
	}
	return d
}
