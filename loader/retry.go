package loader

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy creates the backoff schedule of a single slot.
type RetryPolicy func() backoff.BackOff

// ExponentialRetry retries failed loads with exponentially growing, jittered
// delays between initial and max. Attempts are unbounded.
func ExponentialRetry(initial, max time.Duration) RetryPolicy {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		b.MaxElapsedTime = 0
		b.Reset()
		return b
	}
}

// ConstantRetry retries failed loads after a fixed delay, at most attempts
// times. Mostly useful in tests.
func ConstantRetry(delay time.Duration, attempts uint64) RetryPolicy {
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), attempts)
	}
}

// NoRetry leaves failed slots in the Failed state for good.
func NoRetry() RetryPolicy {
	return func() backoff.BackOff {
		return &backoff.StopBackOff{}
	}
}

// DefaultRetry is the policy used when a Loader has none configured.
var DefaultRetry = ExponentialRetry(time.Second, 30*time.Second)
