package easyappointments

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// RetryPolicy retries an operation with exponential backoff while its
// error satisfies Retryable. The zero value never retries.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// Delay is the first backoff interval; interval n is Delay * 2^n,
	// capped at ten times Delay.
	Delay time.Duration
	// Jitter is the randomization factor applied to each interval.
	Jitter float64
	// Retryable reports whether an error is transient. Defaults to IsTransient.
	Retryable func(error) bool
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)

	logger zerolog.Logger
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	delay := p.Delay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = delay
	b.Multiplier = 2
	b.RandomizationFactor = p.Jitter
	b.MaxInterval = delay * 10
	b.MaxElapsedTime = 0
	b.Reset()

	retries := p.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Do runs op until it succeeds, returns a non-retryable error, or the
// retry budget is spent. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	attempts := 0
	operation := func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		p.logger.Warn().
			Err(err).
			Int("attempt", attempts).
			Int("max_retries", p.MaxRetries).
			Dur("delay", delay).
			Msg("Transient failure, retrying")
		if p.OnRetry != nil {
			p.OnRetry(attempts, err, delay)
		}
	}

	err := backoff.RetryNotify(operation, p.backOff(ctx), notify)
	if err == nil {
		return nil
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		// backoff returns the bare context error when cancelled mid-sleep
		if ctx.Err() != nil {
			return contextError(ctx, err)
		}
		return &Error{Kind: KindGeneric, Message: err.Error(), Err: err}
	}

	if retryable(err) && attempts > p.MaxRetries {
		p.logger.Error().
			Err(err).
			Int("attempts", attempts).
			Msg("Max retries exceeded")
	}
	return err
}

// forMethod returns the policy to use for an HTTP method. When
// idempotentOnly is set, POST, PUT and PATCH are never retried.
func (p RetryPolicy) forMethod(method string, idempotentOnly bool) RetryPolicy {
	if !idempotentOnly {
		return p
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		p.MaxRetries = 0
	}
	return p
}
