package engine

import (
	"time"

	"github.com/jpillora/backoff"

	"gridbot/internal/ports"
)

// newRetryBackoff builds the retry policy the loops share: delays start at
// the loop interval and double per consecutive transient failure, jittered,
// capped at 30 seconds.
func newRetryBackoff(interval time.Duration) *backoff.Backoff {
	return &backoff.Backoff{Min: interval, Max: 30 * time.Second, Factor: 2, Jitter: true}
}

// nextDelay picks the wait before the next loop iteration based on how the
// last one ended. A clean iteration resets the backoff and waits the plain
// interval; a transient failure consumes the next backoff step; any other
// failure waits the plain interval without touching the backoff state.
func nextDelay(retry *backoff.Backoff, interval time.Duration, err error) time.Duration {
	switch {
	case err == nil:
		retry.Reset()
		return interval
	case ports.IsTransient(err):
		return retry.Duration()
	default:
		return interval
	}
}
