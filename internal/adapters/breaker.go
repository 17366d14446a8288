package adapters

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/staticforge/staticforge/internal/xerrors"
)

// newBreaker builds a circuit breaker for one external collaborator.
// Trips open after 5 consecutive failures, probes again after 30s.
// Wired per SPEC_FULL.md §4.5 so a failing browser/deploy/measure/
// oracle upstream stops being hammered once it's clearly down, leaving
// the queue's own per-job backoff as the retry driver.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// wrapTransient runs fn through the breaker and classifies a breaker
// trip itself (ErrOpenState) as TransientUpstream so the queue retries.
func wrapTransient[T any](cb *gobreaker.CircuitBreaker, phase string, fn func() (T, error)) (T, error) {
	result, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return zero, xerrors.New(xerrors.TransientUpstream, phase, "", "circuit open: "+err.Error(), err)
		}
		return zero, err
	}
	return result.(T), nil
}
