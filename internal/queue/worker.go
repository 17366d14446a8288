package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/staticforge/staticforge/internal/store"
	"github.com/staticforge/staticforge/internal/xerrors"
)

type worker struct {
	id   int
	pool *Pool
}

func (w *worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.pool.stopCh:
			return
		case <-time.After(pollInterval(w.pool.config)):
			w.pollAndProcess(ctx)
		}
	}
}

func (w *worker) pollAndProcess(ctx context.Context) {
	st := w.pool.store

	job, err := st.ReserveJob(ctx, w.pool.id, w.pool.config.LeaseDuration)
	if err != nil {
		if err != xerrors.ErrNotFound {
			slog.Error("queue: reserve failed", "worker", w.id, "error", err)
		}
		return
	}

	executor, ok := w.pool.executors[job.Kind]
	if !ok {
		_ = st.AckJobFailure(ctx, job.ID, "no executor registered for kind "+string(job.Kind), 0, true)
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	w.pool.registerActive(job.ID, cancel)
	defer func() {
		cancel()
		w.pool.unregisterActive(job.ID)
	}()

	stopHeartbeat := w.startHeartbeat(jobCtx, job.ID)
	defer stopHeartbeat()

	execErr := executor.Execute(jobCtx, Job{ID: job.ID, SiteID: job.SiteID, Payload: job.Payload, Attempts: job.Attempts})
	w.finish(ctx, job, execErr)
}

// startHeartbeat periodically extends the job's lease while it runs,
// so a long-running phase doesn't get reclaimed as orphaned mid-work.
func (w *worker) startHeartbeat(ctx context.Context, jobID string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(w.pool.config.LeaseDuration / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				extendCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				_, _ = w.pool.store.DB().ExecContext(extendCtx, `
					UPDATE jobs SET lease_until = now() + $2::interval WHERE id = $1 AND status = 'reserved'`,
					jobID, w.pool.config.LeaseDuration.String())
				cancel()
			}
		}
	}()
	return func() { close(done) }
}

func (w *worker) finish(ctx context.Context, job *store.Job, execErr error) {
	st := w.pool.store

	if execErr == nil {
		if err := st.AckJobSuccess(ctx, job.ID); err != nil {
			slog.Error("queue: ack success failed", "job", job.ID, "error", err)
		}
		return
	}

	if execErr == context.Canceled || xerrors.KindOf(execErr) == xerrors.CancelRequested {
		_ = st.AckJobFailure(ctx, job.ID, "cancelled", 0, true)
		return
	}

	retryable := xerrors.IsRetryable(execErr)
	// Attempts counts the first run too, so RetryMaxAttempts retries
	// allow RetryMaxAttempts+1 runs in total.
	exhausted := !retryable || job.Attempts > w.pool.config.RetryMaxAttempts
	delay := backoffDelay(w.pool.config, job.Attempts)

	if err := st.AckJobFailure(ctx, job.ID, execErr.Error(), delay, exhausted); err != nil {
		slog.Error("queue: ack failure failed", "job", job.ID, "error", err)
	}
}
