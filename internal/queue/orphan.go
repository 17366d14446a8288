package queue

import (
	"context"
	"log/slog"
	"time"
)

// runOrphanDetection periodically reclaims jobs whose lease expired
// without an Ack — a worker that died mid-job. Every pool instance
// runs this independently; the reclaim query is idempotent. The job
// row's own lease_until column is the orphan signal, so no separate
// heartbeat timestamp or threshold comparison is needed.
func (p *Pool) runOrphanDetection(ctx context.Context) {
	ticker := time.NewTicker(p.config.OrphanDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			n, err := p.store.ReclaimExpiredLeases(ctx)
			if err != nil {
				slog.Error("queue: orphan reclaim failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Warn("queue: reclaimed orphaned leases", "count", n)
			}
		}
	}
}
