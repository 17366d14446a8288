// Package queue is the durable FIFO job runtime: at-most-one active
// job per site, crash-safe resumption via leased rows, and retry with
// exponential backoff.
//
// The Pool/worker split, the poll-loop jitter, the
// heartbeat-per-job goroutine, and the orphan-detection sweep are the
// standard shape for a leased-row job queue. A worker executes either
// a "build" or "agent" job against the generic store.Job row via the
// Executor registered for its kind.
package queue

import (
	"context"
	"time"
)

// Executor runs one job to completion. Implementations live in
// internal/pipeline (build jobs) and internal/agentloop (agent jobs).
type Executor interface {
	Execute(ctx context.Context, job Job) error
}

// Job is the executor-facing view of a store.Job.
type Job struct {
	ID       string
	SiteID   string
	Payload  []byte
	Attempts int
}

// Config is the tunable queue runtime policy.
type Config struct {
	WorkerCount             int
	PollInterval            time.Duration
	PollIntervalJitter      time.Duration
	LeaseDuration           time.Duration
	GracefulShutdownTimeout time.Duration
	OrphanDetectionInterval time.Duration
	RetryBaseDelay          time.Duration
	RetryFactor             float64
	RetryMaxAttempts        int
	RetryJitterFraction     float64
}

// DefaultConfig is a 30 min lease, backoff base 10s factor 2, max 5
// retries, jitter ±20%.
func DefaultConfig() Config {
	return Config{
		WorkerCount:             5,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		LeaseDuration:           30 * time.Minute,
		GracefulShutdownTimeout: 30 * time.Second,
		OrphanDetectionInterval: 1 * time.Minute,
		RetryBaseDelay:          10 * time.Second,
		RetryFactor:             2.0,
		RetryMaxAttempts:        5,
		RetryJitterFraction:     0.2,
	}
}
