package queue

import (
	"context"

	"github.com/staticforge/staticforge/internal/store"
)

// EnqueueBuild inserts the Build row (which also performs Acquire-slot)
// and its matching job row in one call.
func EnqueueBuild(ctx context.Context, st *store.Store, b *store.Build) error {
	if err := st.CreateBuild(ctx, b); err != nil {
		return err
	}
	return st.EnqueueJob(ctx, &store.Job{
		ID:          b.ID,
		Kind:        store.JobBuild,
		SiteID:      b.SiteID,
		MaxAttempts: DefaultConfig().RetryMaxAttempts,
	})
}

// EnqueueAgentRun is the agent-kind equivalent of EnqueueBuild.
func EnqueueAgentRun(ctx context.Context, st *store.Store, r *store.AgentRun) error {
	if err := st.CreateAgentRun(ctx, r); err != nil {
		return err
	}
	return st.EnqueueJob(ctx, &store.Job{
		ID:          r.ID,
		Kind:        store.JobAgent,
		SiteID:      r.SiteID,
		MaxAttempts: 1, // the agent loop manages its own iteration retries
	})
}

// CancelStale marks a site's non-terminal builds cancelled and its
// unfinished jobs done, recovering from a worker that crashed without
// releasing its lease. Agent runs are not touched.
func CancelStale(ctx context.Context, st *store.Store, siteID string) (int, error) {
	n, err := st.CancelStaleBuilds(ctx, siteID)
	if err != nil {
		return 0, err
	}
	if _, err := st.CancelJobsForSite(ctx, siteID); err != nil {
		return n, err
	}
	return n, nil
}
