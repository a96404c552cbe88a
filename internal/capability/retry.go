package capability

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the retry loop around one capability invocation.
type RetryPolicy struct {
	// Limit is the number of retries after the first attempt.
	Limit int
	// InitialInterval seeds the exponential backoff. Zero means the
	// backoff library default; tests use a short interval.
	InitialInterval time.Duration
}

// InvokeWithRetry runs one capability call under the retry policy.
// RATE_LIMITED and ERROR failures are retried with exponential backoff;
// NO_RESULTS and REFUSED are returned immediately. The error from the last
// attempt is returned when the policy is exhausted.
func InvokeWithRetry(ctx context.Context, c Capability, req Request, policy RetryPolicy, log *slog.Logger) (*Result, error) {
	expo := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		expo.InitialInterval = policy.InitialInterval
	}
	limit := policy.Limit
	if limit < 0 {
		limit = 0
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(limit)), ctx)

	attempt := 0
	var result *Result
	op := func() error {
		attempt++
		res, err := c.Invoke(ctx, req)
		if err != nil {
			if f := AsFailure(err); f != nil && !f.Retryable() {
				return backoff.Permanent(err)
			}
			log.Warn("capability attempt failed",
				"capability", c.Name(), "subject", req.Subject, "attempt", attempt, "err", err)
			return err
		}
		result = res
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return result, nil
}
