package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/staticforge/staticforge/internal/xerrors"
)

// AcquireSlot inserts (or reuses) the site's site_locks row as the
// single serialization point for the site, locks it, and then asserts
// that no non-terminal build or agent run exists for siteID. Callers
// run it inside a transaction they control so the insert of the new
// Build happens under the same lock.
//
// Uses a plain `... FOR UPDATE` on the one site_locks row (no SKIP
// LOCKED): a concurrent acquirer for the same site waits for the
// holder's transaction to end and then sees its committed row.
func (s *Store) AcquireSlot(ctx context.Context, tx *sql.Tx, siteID string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO site_locks (site_id) VALUES ($1)
		ON CONFLICT (site_id) DO NOTHING`, siteID); err != nil {
		return classify(err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT 1 FROM site_locks WHERE site_id = $1 FOR UPDATE`, siteID); err != nil {
		return classify(err)
	}
	var count int
	err := tx.QueryRowContext(ctx, `
		SELECT count(*) FROM (
			SELECT 1 FROM builds WHERE site_id = $1 AND status NOT IN ('success','failed','cancelled')
			UNION ALL
			SELECT 1 FROM agent_runs WHERE site_id = $1 AND phase NOT IN ('complete','failed')
		) AS in_flight`, siteID).Scan(&count)
	if err != nil {
		return classify(err)
	}
	if count > 0 {
		return xerrors.ErrAlreadyInProgress
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on success and
// rolling back on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

// CreateBuild enqueues a new build after acquiring the per-site slot,
// all within one transaction — the durable half of enqueue-then-acquire.
func (s *Store) CreateBuild(ctx context.Context, b *Build) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.AcquireSlot(ctx, tx, b.SiteID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO builds (id, site_id, scope, triggered_by, status, resolved_settings, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			b.ID, b.SiteID, string(b.Scope), string(b.TriggeredBy), string(b.Status),
			nullJSON(b.ResolvedSettings), b.CreatedAt)
		return classify(err)
	})
}

// CreateBuildForAgent inserts a build row without taking Acquire-slot:
// the calling AgentRun already holds the site's slot for the duration
// of its run, so a second acquisition here would deadlock against
// itself. Only internal/agentloop calls this; every other path must go
// through CreateBuild.
func (s *Store) CreateBuildForAgent(ctx context.Context, b *Build) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builds (id, site_id, scope, triggered_by, status, resolved_settings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.SiteID, string(b.Scope), string(b.TriggeredBy), string(b.Status),
		nullJSON(b.ResolvedSettings), b.CreatedAt)
	return classify(err)
}

// GetBuild fetches a build by id.
func (s *Store) GetBuild(ctx context.Context, id string) (*Build, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, site_id, scope, triggered_by, status, pages_total, pages_processed,
		       original_sizes, optimized_sizes, side_effects, score_before, score_after,
		       error_details, resolved_settings, log, created_at, started_at, completed_at
		FROM builds WHERE id = $1`, id)
	return scanBuild(row)
}

func scanBuild(row *sql.Row) (*Build, error) {
	var b Build
	var originalSizes, optimizedSizes, sideEffects, errDetails, resolved, logJSON []byte
	if err := row.Scan(&b.ID, &b.SiteID, &b.Scope, &b.TriggeredBy, &b.Status, &b.PagesTotal, &b.PagesProcessed,
		&originalSizes, &optimizedSizes, &sideEffects, &b.ScoreBefore, &b.ScoreAfter,
		&errDetails, &resolved, &logJSON, &b.CreatedAt, &b.StartedAt, &b.CompletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, classify(err)
	}
	_ = json.Unmarshal(originalSizes, &b.OriginalSizes)
	_ = json.Unmarshal(optimizedSizes, &b.OptimizedSizes)
	_ = json.Unmarshal(sideEffects, &b.SideEffects)
	_ = json.Unmarshal(logJSON, &b.Log)
	b.ResolvedSettings = resolved
	if len(errDetails) > 0 {
		var ed ErrorDetails
		if err := json.Unmarshal(errDetails, &ed); err == nil {
			b.Error = &ed
		}
	}
	return &b, nil
}

// ListBuilds returns the most recent builds for a site, newest first.
func (s *Store) ListBuilds(ctx context.Context, siteID string, limit, offset int) ([]*Build, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, site_id, scope, triggered_by, status, pages_total, pages_processed,
		       original_sizes, optimized_sizes, side_effects, score_before, score_after,
		       error_details, resolved_settings, log, created_at, started_at, completed_at
		FROM builds WHERE site_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, siteID, limit, offset)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*Build
	for rows.Next() {
		var b Build
		var originalSizes, optimizedSizes, sideEffects, errDetails, resolved, logJSON []byte
		if err := rows.Scan(&b.ID, &b.SiteID, &b.Scope, &b.TriggeredBy, &b.Status, &b.PagesTotal, &b.PagesProcessed,
			&originalSizes, &optimizedSizes, &sideEffects, &b.ScoreBefore, &b.ScoreAfter,
			&errDetails, &resolved, &logJSON, &b.CreatedAt, &b.StartedAt, &b.CompletedAt); err != nil {
			return nil, classify(err)
		}
		_ = json.Unmarshal(originalSizes, &b.OriginalSizes)
		_ = json.Unmarshal(optimizedSizes, &b.OptimizedSizes)
		_ = json.Unmarshal(sideEffects, &b.SideEffects)
		_ = json.Unmarshal(logJSON, &b.Log)
		b.ResolvedSettings = resolved
		if len(errDetails) > 0 {
			var ed ErrorDetails
			if err := json.Unmarshal(errDetails, &ed); err == nil {
				b.Error = &ed
			}
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// TransitionBuild writes the new status plus whatever optional fields
// are non-nil. internal/pipeline calls it after checking the edge with
// buildsm.Validate; ResetBuildForRetry and CancelStaleBuilds also write
// builds.status.
func (s *Store) TransitionBuild(ctx context.Context, id string, status BuildStatus, startedAt, completedAt *time.Time, errDetails *ErrorDetails) error {
	var errJSON []byte
	if errDetails != nil {
		errJSON = mustMarshal(errDetails)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE builds SET
			status = $2,
			started_at = COALESCE($3, started_at),
			completed_at = COALESCE($4, completed_at),
			error_details = COALESCE($5, error_details)
		WHERE id = $1`, id, string(status), startedAt, completedAt, nullable(errJSON))
	return classify(err)
}

func nullable(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}

// ResetBuildForRetry implements retry-preserves-crawl-artifacts
// semantics: the same build id resumes at its last failed phase,
// progress counters reset, error cleared.
func (s *Store) ResetBuildForRetry(ctx context.Context, id string, status BuildStatus) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE builds SET status = $2, error_details = NULL, completed_at = NULL, pages_processed = 0
		WHERE id = $1`, id, string(status))
	return classify(err)
}

// UpdateBuildProgress advances the page counters and appends a log line.
func (s *Store) UpdateBuildProgress(ctx context.Context, id string, processed int, logLine string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE builds SET pages_processed = $2, log = log || to_jsonb($3::text)
		WHERE id = $1`, id, processed, logLine)
	return classify(err)
}

// SetBuildPagesTotal is written once the crawl phase knows the site size.
func (s *Store) SetBuildPagesTotal(ctx context.Context, id string, total int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE builds SET pages_total = $2 WHERE id = $1`, id, total)
	return classify(err)
}

// UpdateBuildSizes persists per-class size metrics for one side (original
// or optimized) after a phase finishes.
func (s *Store) UpdateBuildSizes(ctx context.Context, id string, original, optimized *SizeMetrics, sideEffects *SideEffectCounters) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE builds SET
			original_sizes = COALESCE($2, original_sizes),
			optimized_sizes = COALESCE($3, optimized_sizes),
			side_effects = COALESCE($4, side_effects)
		WHERE id = $1`, id, nullableJSON(original), nullableJSON(optimized), nullableJSON(sideEffects))
	return classify(err)
}

func nullableJSON(v any) any {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case *SizeMetrics:
		if t == nil {
			return nil
		}
	case *SideEffectCounters:
		if t == nil {
			return nil
		}
	}
	return mustMarshal(v)
}

// CancelStaleBuilds marks every non-terminal build for siteID as
// cancelled — used to recover when a worker crashed without releasing
// its lease.
func (s *Store) CancelStaleBuilds(ctx context.Context, siteID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE builds SET status = 'cancelled', completed_at = now()
		WHERE site_id = $1 AND status NOT IN ('success','failed','cancelled')`, siteID)
	if err != nil {
		return 0, classify(err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
