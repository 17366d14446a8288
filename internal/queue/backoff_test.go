package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigMatchesRetryPolicy(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30*time.Minute, cfg.LeaseDuration)
	assert.Equal(t, 10*time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 2.0, cfg.RetryFactor)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, 0.2, cfg.RetryJitterFraction)
}

func TestBackoffDelayGrowsExponentiallyWithinJitterBounds(t *testing.T) {
	cfg := DefaultConfig()

	for attempt := 1; attempt <= cfg.RetryMaxAttempts; attempt++ {
		base := float64(cfg.RetryBaseDelay)
		for i := 1; i < attempt; i++ {
			base *= cfg.RetryFactor
		}
		maxJitter := base * cfg.RetryJitterFraction

		for i := 0; i < 20; i++ {
			got := backoffDelay(cfg, attempt)
			assert.GreaterOrEqual(t, float64(got), base-maxJitter)
			assert.LessOrEqual(t, float64(got), base+maxJitter)
		}
	}
}

func TestPollIntervalStaysCenteredOnBase(t *testing.T) {
	cfg := DefaultConfig()

	for i := 0; i < 50; i++ {
		got := pollInterval(cfg)
		assert.GreaterOrEqual(t, got, cfg.PollInterval-cfg.PollIntervalJitter/2)
		assert.LessOrEqual(t, got, cfg.PollInterval+cfg.PollIntervalJitter/2)
	}
}

func TestPollIntervalWithoutJitterReturnsBaseExactly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PollIntervalJitter = 0

	assert.Equal(t, cfg.PollInterval, pollInterval(cfg))
}
