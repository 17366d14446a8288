package queue

import (
	"math/rand/v2"
	"time"
)

// backoffDelay computes the exponential-with-jitter retry delay for
// the given attempt count (1-indexed).
func backoffDelay(cfg Config, attempt int) time.Duration {
	d := float64(cfg.RetryBaseDelay)
	for i := 1; i < attempt; i++ {
		d *= cfg.RetryFactor
	}
	jitter := d * cfg.RetryJitterFraction * (rand.Float64()*2 - 1)
	return time.Duration(d + jitter)
}

// pollInterval returns the base poll interval jittered by ±jitter/2,
// spreading worker wakeups to avoid thundering-herd polling.
func pollInterval(cfg Config) time.Duration {
	if cfg.PollIntervalJitter <= 0 {
		return cfg.PollInterval
	}
	delta := time.Duration(rand.Int64N(int64(cfg.PollIntervalJitter))) - cfg.PollIntervalJitter/2
	return cfg.PollInterval + delta
}
