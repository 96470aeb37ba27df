package rewards

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/multierr"
)

const DefaultRetryAttempts = 3

// Retry runs fn again while it fails with ErrConcurrentUpdate, up to attempts times in total.
// Ledger operations re-read the balance on every run, so retrying the whole operation is safe.
func Retry(ctx context.Context, attempts int, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 10 * time.Millisecond
	expBackoff.MaxInterval = 200 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(attempts-1)), ctx)

	var lastErr error
	err := backoff.Retry(func() error {
		lastErr = fn()
		if lastErr == nil || errors.Is(lastErr, ErrConcurrentUpdate) {
			return lastErr
		}
		return backoff.Permanent(lastErr)
	}, policy)

	// backoff reports only the context error when ctx ends the retries
	if err != nil && errors.Is(lastErr, ErrConcurrentUpdate) && !errors.Is(err, ErrConcurrentUpdate) {
		return multierr.Append(lastErr, err)
	}
	return err
}
