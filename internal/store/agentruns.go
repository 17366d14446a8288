package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/staticforge/staticforge/internal/xerrors"
)

// CreateAgentRun enqueues a new agent run after acquiring the per-site
// slot, mirroring CreateBuild.
func (s *Store) CreateAgentRun(ctx context.Context, r *AgentRun) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.AcquireSlot(ctx, tx, r.SiteID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO agent_runs (id, site_id, phase, iteration, max_iterations, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $6)`,
			r.ID, r.SiteID, string(r.Phase), r.Iteration, r.MaxIterations, r.CreatedAt)
		return classify(err)
	})
}

// GetAgentRun fetches a run by id.
func (s *Store) GetAgentRun(ctx context.Context, id string) (*AgentRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, site_id, phase, iteration, max_iterations, phase_timings, last_error,
		       checkpoint, current_build_id, workspace_path, cancel_requested, created_at, updated_at
		FROM agent_runs WHERE id = $1`, id)
	return scanAgentRun(row)
}

// GetActiveAgentRunForSite returns the site's non-terminal run, if any.
func (s *Store) GetActiveAgentRunForSite(ctx context.Context, siteID string) (*AgentRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, site_id, phase, iteration, max_iterations, phase_timings, last_error,
		       checkpoint, current_build_id, workspace_path, cancel_requested, created_at, updated_at
		FROM agent_runs WHERE site_id = $1 AND phase NOT IN ('complete','failed')
		ORDER BY created_at DESC LIMIT 1`, siteID)
	return scanAgentRun(row)
}

// GetLatestAgentRunForSite returns the most recent run regardless of state.
func (s *Store) GetLatestAgentRunForSite(ctx context.Context, siteID string) (*AgentRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, site_id, phase, iteration, max_iterations, phase_timings, last_error,
		       checkpoint, current_build_id, workspace_path, cancel_requested, created_at, updated_at
		FROM agent_runs WHERE site_id = $1
		ORDER BY created_at DESC LIMIT 1`, siteID)
	return scanAgentRun(row)
}

func scanAgentRun(row *sql.Row) (*AgentRun, error) {
	var r AgentRun
	var timings []byte
	var checkpoint []byte
	if err := row.Scan(&r.ID, &r.SiteID, &r.Phase, &r.Iteration, &r.MaxIterations, &timings, &r.LastError,
		&checkpoint, &r.CurrentBuildID, &r.WorkspacePath, &r.CancelRequested, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, classify(err)
	}
	var rawTimings map[string]string
	_ = json.Unmarshal(timings, &rawTimings)
	r.PhaseTimings = make(map[string]time.Duration, len(rawTimings))
	for k, v := range rawTimings {
		d, _ := time.ParseDuration(v)
		r.PhaseTimings[k] = d
	}
	r.Checkpoint = checkpoint
	return &r, nil
}

// UpdateAgentRunPhase advances phase/iteration and persists the
// checkpoint blob — the single source of truth for resuming a run.
func (s *Store) UpdateAgentRunPhase(ctx context.Context, id string, phase AgentPhase, iteration int, checkpoint []byte, currentBuildID *string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agent_runs SET
			phase = $2, iteration = $3, checkpoint = $4,
			current_build_id = COALESCE($5, current_build_id),
			updated_at = now()
		WHERE id = $1`, id, string(phase), iteration, nullJSON(checkpoint), currentBuildID)
	return classify(err)
}

// SetAgentRunWorkspace records where the run's resumable working
// directory lives on disk; nil clears it (resumability gate).
func (s *Store) SetAgentRunWorkspace(ctx context.Context, id string, path *string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE agent_runs SET workspace_path = $2, updated_at = now() WHERE id = $1`, id, path)
	return classify(err)
}

// FailAgentRun moves a run to the terminal failed phase with a message.
func (s *Store) FailAgentRun(ctx context.Context, id, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE agent_runs SET phase = 'failed', last_error = $2, updated_at = now() WHERE id = $1`, id, message)
	return classify(err)
}

// RequestAgentRunCancel sets the cooperative cancellation flag polled
// by the agent loop between phases.
func (s *Store) RequestAgentRunCancel(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE agent_runs SET cancel_requested = true, updated_at = now() WHERE id = $1`, id)
	return classify(err)
}

// ClearAgentRunCancel clears a stale cancellation flag left over from a
// prior stop request, used when resuming a failed run.
func (s *Store) ClearAgentRunCancel(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE agent_runs SET cancel_requested = false, updated_at = now() WHERE id = $1`, id)
	return classify(err)
}
