package fetch

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is an injectable retry strategy for page fetches. Keeping it
// a value makes the bound testable without real network calls.
type RetryPolicy struct {
	MaxAttempts         int
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryPolicy matches the fetcher contract: three attempts with
// jittered exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:         3,
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5, // jitter to avoid thundering herd
	}
}

// Do runs op under the policy. Wrap non-retryable failures with
// backoff.Permanent inside op to stop early.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.RandomizationFactor
	b.MaxElapsedTime = 0 // bounded by attempt count, not wall time

	attempts := uint64(0)
	if p.MaxAttempts > 1 {
		attempts = uint64(p.MaxAttempts - 1)
	}

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, attempts), ctx))
}
