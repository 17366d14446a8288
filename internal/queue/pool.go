package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/staticforge/staticforge/internal/store"
)

// Pool owns the worker goroutines and the registry of in-flight job
// cancel functions.
type Pool struct {
	id        string
	store     *store.Store
	config    Config
	executors map[store.JobKind]Executor

	mu      sync.Mutex
	active  map[string]context.CancelFunc
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPool constructs a pool bound to id, used as the leased_by owner
// tag stamped on every job this pool reserves.
func NewPool(id string, st *store.Store, cfg Config, executors map[store.JobKind]Executor) *Pool {
	return &Pool{
		id:        id,
		store:     st,
		config:    cfg,
		executors: executors,
		active:    make(map[string]context.CancelFunc),
		stopCh:    make(chan struct{}),
	}
}

// Start spawns the configured number of poll-loop workers plus the
// orphan-detection sweep. Idempotent.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < p.config.WorkerCount; i++ {
		w := &worker{id: i, pool: p}
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run(ctx)
		}()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runOrphanDetection(ctx)
	}()
}

// Stop signals every worker to finish its current job and wait for
// them to exit, up to GracefulShutdownTimeout.
func (p *Pool) Stop() {
	close(p.stopCh)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.config.GracefulShutdownTimeout):
		slog.Warn("queue: graceful shutdown timed out")
	}
}

func (p *Pool) registerActive(jobID string, cancel context.CancelFunc) {
	p.mu.Lock()
	p.active[jobID] = cancel
	p.mu.Unlock()
}

func (p *Pool) unregisterActive(jobID string) {
	p.mu.Lock()
	delete(p.active, jobID)
	p.mu.Unlock()
}

// Cancel requests cooperative cancellation of an in-flight job, if this
// pool owns it.
func (p *Pool) Cancel(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cancel, ok := p.active[jobID]
	if ok {
		cancel()
	}
	return ok
}

// Health reports queue depth and active-job count for the /health endpoint.
type Health struct {
	QueueDepth    int
	ActiveJobs    int
	WorkerCount   int
	IsHealthy     bool
}

func (p *Pool) Health(ctx context.Context) Health {
	depth, err := p.store.QueueDepth(ctx)
	p.mu.Lock()
	active := len(p.active)
	p.mu.Unlock()
	return Health{
		QueueDepth:  depth,
		ActiveJobs:  active,
		WorkerCount: p.config.WorkerCount,
		IsHealthy:   err == nil,
	}
}
