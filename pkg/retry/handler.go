package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/chernistry/tavily/pkg/failure"
	"github.com/chernistry/tavily/pkg/timeutil"
)

// Retry executes the provided function with retry logic.
// It calls the function at most MaxAttempts times in total, applying exponential
// backoff with jitter between attempts. Only retryable errors trigger a
// retry; context cancellation stops the loop immediately.
//
// Type parameter T represents the return type of the function being retried.
// The returned Result carries the value (if successful), the terminal error
// (if failed), and the number of attempts made.
func Retry[T any](ctx context.Context, retryParam RetryParam, fn func() (T, failure.ClassifiedError)) Result[T] {
	var lastErr failure.ClassifiedError
	var zero T

	if retryParam.MaxAttempts < 1 {
		return Result[T]{
			value: zero,
			err: &RetryError{
				Message:   "max attempt cannot be 0",
				Cause:     ErrZeroAttempt,
				Retryable: true,
			},
			attempts: 0,
		}
	}

	rng := rand.New(rand.NewSource(retryParam.RandomSeed))

	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		result, err := fn()

		if err == nil {
			return NewSuccessResult(result, attempt)
		}

		lastErr = err

		if !isErrorRetryable(err) {
			return Result[T]{
				value:    zero,
				err:      err,
				attempts: attempt,
			}
		}

		if attempt == retryParam.MaxAttempts {
			break
		}

		backoffDelay := timeutil.ExponentialBackoffDelay(
			attempt,
			retryParam.Jitter,
			*rng,
			retryParam.BackoffParam,
		)

		select {
		case <-ctx.Done():
			return Result[T]{
				value:    zero,
				err:      lastErr,
				attempts: attempt,
			}
		case <-time.After(backoffDelay):
		}
	}

	return Result[T]{
		value: zero,
		err: &RetryError{
			Message:   fmt.Sprintf("exhausted %d attempts. Last error: %v", retryParam.MaxAttempts, lastErr),
			Cause:     ErrExhaustedAttempts,
			Retryable: true, // recoverable at runner level
		},
		attempts: retryParam.MaxAttempts,
	}
}

// isErrorRetryable checks if an error should be retried.
// Errors exposing IsRetryable decide for themselves; anything else defaults
// to retryable.
func isErrorRetryable(err failure.ClassifiedError) bool {
	type hasRetryable interface {
		IsRetryable() bool
	}

	if r, ok := err.(hasRetryable); ok {
		return r.IsRetryable()
	}

	return true
}
