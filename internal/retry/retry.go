package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a bounded exponential-backoff retry policy. The audio fetcher
// and the analyzer sub-calls share this instead of hand-rolling the same
// loop twice.
type Policy struct {
	Attempts  uint64        // total attempts, including the first
	BaseDelay time.Duration // delay before the first retry, doubling after
}

// Do runs op until it succeeds, op returns backoff.Permanent, the attempt
// budget is spent, or ctx is done. The delay doubles between attempts.
func (p Policy) Do(ctx context.Context, op func() error) error {
	return backoff.Retry(op, p.backOff(ctx))
}

// DoNotify is Do with a callback invoked before each retry sleep.
func (p Policy) DoNotify(ctx context.Context, op func() error, notify func(error, time.Duration)) error {
	return backoff.RetryNotify(op, p.backOff(ctx), notify)
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = 5 * time.Minute
	bo.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, attempts-1), ctx)
}

// Permanent marks err as non-retryable for Policy.Do.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
