package transfer

import "time"

// Backoff returns the wait before retry number attempt (0-based).
type Backoff func(attempt int) time.Duration

// ExponentialBackoff waits unit, 2*unit, 4*unit, ...
func ExponentialBackoff(unit time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return unit << attempt
	}
}
