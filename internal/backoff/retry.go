package backoff

import (
	"context"
	"errors"
)

// ErrMaxAttemptsExhausted is returned when a call site's retry budget runs
// out without a successful attempt.
var ErrMaxAttemptsExhausted = errors.New("max retry attempts exhausted")

// Result holds the outcome of a retried operation.
type Result[T any] struct {
	// Value is the successful result value.
	Value T
	// Attempts is the number of attempts made (1-indexed).
	Attempts int
	// LastError is the last error encountered, if any.
	LastError error
}

// Retry executes fn with exponential backoff, retrying up to maxAttempts
// times and sleeping between attempts according to policy. Returns the
// result on success, or an error after the attempt budget is exhausted or
// ctx is canceled.
//
// fn receives the current attempt number (1-indexed) and should return:
//   - (value, nil) on success
//   - (zero, error) on failure (triggers another attempt if any remain)
//
// Context cancellation is checked between attempts, allowing graceful
// shutdown mid-retry.
func Retry[T any](
	ctx context.Context,
	policy Policy,
	maxAttempts int,
	fn func(attempt int) (T, error),
) (Result[T], error) {
	var result Result[T]
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			result.LastError = lastErr
			return result, err
		}

		value, err := fn(attempt)
		if err == nil {
			result.Value = value
			return result, nil
		}

		lastErr = err
		result.LastError = err

		if attempt < maxAttempts {
			if err := SleepWithBackoff(ctx, policy, attempt); err != nil {
				return result, err
			}
		}
	}

	return result, ErrMaxAttemptsExhausted
}

// RetrySimple is a convenience wrapper around Retry for call sites that
// don't need a return value, such as a fire-and-forget reconnect probe.
func RetrySimple(
	ctx context.Context,
	policy Policy,
	maxAttempts int,
	fn func() error,
) error {
	_, err := Retry(ctx, policy, maxAttempts, func(_ int) (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
