package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/staticforge/staticforge/internal/xerrors"
)

// JobKind distinguishes the two kinds of work the worker pool drains;
// the per-site slot (AcquireSlot) applies across both.
type JobKind string

const (
	JobBuild JobKind = "build"
	JobAgent JobKind = "agent"
)

type JobStatus string

const (
	JobReady    JobStatus = "ready"
	JobReserved JobStatus = "reserved"
	JobDone     JobStatus = "done"
)

// Job is one unit of queued work.
type Job struct {
	ID          string
	Kind        JobKind
	SiteID      string
	Payload     []byte
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	AvailableAt time.Time
	LeaseUntil  *time.Time
	LeasedBy    *string
	LastError   *string
	CreatedAt   time.Time
}

// EnqueueJob inserts a new ready job. id is caller-supplied so
// duplicate Enqueue calls with the same id are naturally idempotent
// (ON CONFLICT DO NOTHING, then the caller re-fetches).
func (s *Store) EnqueueJob(ctx context.Context, j *Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, site_id, payload, status, max_attempts, available_at, created_at)
		VALUES ($1, $2, $3, $4, 'ready', $5, now(), now())
		ON CONFLICT (id) DO NOTHING`,
		j.ID, string(j.Kind), j.SiteID, nullJSON(j.Payload), j.MaxAttempts)
	return classify(err)
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, site_id, payload, status, attempts, max_attempts,
		       available_at, lease_until, leased_by, last_error, created_at
		FROM jobs WHERE id = $1`, id)
	var j Job
	if err := row.Scan(&j.ID, &j.Kind, &j.SiteID, &j.Payload, &j.Status, &j.Attempts, &j.MaxAttempts,
		&j.AvailableAt, &j.LeaseUntil, &j.LeasedBy, &j.LastError, &j.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, classify(err)
	}
	return &j, nil
}

// ReserveJob claims the oldest ready job whose availability time has
// passed, sets its lease, and returns it. Returns xerrors.ErrNotFound
// (treated as "none ready") when nothing qualifies.
//
// SELECT ... FOR UPDATE SKIP LOCKED lets many workers poll the same
// table without contending on each other's candidate rows.
func (s *Store) ReserveJob(ctx context.Context, workerID string, leaseDuration time.Duration) (*Job, error) {
	var j Job
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, kind, site_id, payload, status, attempts, max_attempts,
			       available_at, lease_until, leased_by, last_error, created_at
			FROM jobs
			WHERE status = 'ready' AND available_at <= now()
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1`)
		if err := row.Scan(&j.ID, &j.Kind, &j.SiteID, &j.Payload, &j.Status, &j.Attempts, &j.MaxAttempts,
			&j.AvailableAt, &j.LeaseUntil, &j.LeasedBy, &j.LastError, &j.CreatedAt); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return xerrors.ErrNotFound
			}
			return classify(err)
		}
		leaseUntil := time.Now().Add(leaseDuration)
		if _, err := tx.ExecContext(ctx, `
			UPDATE jobs SET status = 'reserved', leased_by = $2, lease_until = $3, attempts = attempts + 1
			WHERE id = $1`, j.ID, workerID, leaseUntil); err != nil {
			return classify(err)
		}
		j.Status = JobReserved
		j.LeasedBy = &workerID
		j.LeaseUntil = &leaseUntil
		j.Attempts++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// ReclaimExpiredLeases returns reserved jobs whose lease has passed to
// the ready set — this is how the queue survives a worker crash.
func (s *Store) ReclaimExpiredLeases(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'ready', leased_by = NULL, lease_until = NULL
		WHERE status = 'reserved' AND lease_until < now()`)
	if err != nil {
		return 0, classify(err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// AckJobSuccess and AckJobFailure terminate or retry a job.
func (s *Store) AckJobSuccess(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = 'done' WHERE id = $1`, id)
	return classify(err)
}

// AckJobFailure re-enqueues id with the given backoff delay if attempts
// remain, otherwise marks it done (exhausted).
func (s *Store) AckJobFailure(ctx context.Context, id string, errMsg string, retryAfter time.Duration, exhausted bool) error {
	if exhausted {
		_, err := s.db.ExecContext(ctx, `
			UPDATE jobs SET status = 'done', last_error = $2, leased_by = NULL, lease_until = NULL
			WHERE id = $1`, id, errMsg)
		return classify(err)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'ready', last_error = $2, leased_by = NULL, lease_until = NULL,
			available_at = now() + $3::interval
		WHERE id = $1`, id, errMsg, retryAfter.String())
	return classify(err)
}

// RequeueJob resets a done job back to ready for a build retry. The
// job row is never deleted across a retry so its attempts/last_error
// history survives; MaxAttempts is bumped by retryAttempts so a build
// that already exhausted its original attempt budget can still retry.
func (s *Store) RequeueJob(ctx context.Context, id string, retryAttempts int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'ready', last_error = NULL, leased_by = NULL, lease_until = NULL,
			available_at = now(), max_attempts = max_attempts + $2
		WHERE id = $1`, id, retryAttempts)
	return classify(err)
}

// CancelJobsForSite marks every ready/reserved job for siteID done,
// used alongside CancelStaleBuilds.
func (s *Store) CancelJobsForSite(ctx context.Context, siteID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'done' WHERE site_id = $1 AND status != 'done'`, siteID)
	if err != nil {
		return 0, classify(err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// QueueDepth reports the number of ready jobs, for health reporting.
func (s *Store) QueueDepth(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM jobs WHERE status = 'ready'`).Scan(&n)
	return n, classify(err)
}
