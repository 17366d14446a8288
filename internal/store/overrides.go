package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/staticforge/staticforge/internal/xerrors"
)

// UpsertAssetOverride is idempotent, keyed on (site_id, pattern).
func (s *Store) UpsertAssetOverride(ctx context.Context, o *AssetOverride) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO asset_overrides (id, site_id, pattern, asset_class, settings, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (site_id, pattern) DO UPDATE SET
			asset_class = EXCLUDED.asset_class,
			settings = EXCLUDED.settings`,
		o.ID, o.SiteID, o.Pattern, o.AssetClass, nullJSON(o.Settings))
	return classify(err)
}

// ListAssetOverrides returns every override for a site in insertion
// order, which the settings resolver applies in sequence.
func (s *Store) ListAssetOverrides(ctx context.Context, siteID string) ([]*AssetOverride, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, site_id, pattern, asset_class, settings, created_at
		FROM asset_overrides WHERE site_id = $1 ORDER BY created_at ASC`, siteID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*AssetOverride
	for rows.Next() {
		var o AssetOverride
		if err := rows.Scan(&o.ID, &o.SiteID, &o.Pattern, &o.AssetClass, &o.Settings, &o.CreatedAt); err != nil {
			return nil, classify(err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// DeleteAssetOverride removes one override by id.
func (s *Store) DeleteAssetOverride(ctx context.Context, siteID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM asset_overrides WHERE id = $1 AND site_id = $2`, id, siteID)
	if err != nil {
		return classify(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// AppendSettingsHistory is an append-only insert.
func (s *Store) AppendSettingsHistory(ctx context.Context, h *SettingsHistory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings_history (id, site_id, settings, actor, created_at)
		VALUES ($1, $2, $3, $4, now())`, h.ID, h.SiteID, nullJSON(h.Settings), h.Actor)
	return classify(err)
}

// ListSettingsHistory returns history rows newest first.
func (s *Store) ListSettingsHistory(ctx context.Context, siteID string, limit int) ([]*SettingsHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, site_id, settings, actor, created_at
		FROM settings_history WHERE site_id = $1 ORDER BY created_at DESC LIMIT $2`, siteID, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*SettingsHistory
	for rows.Next() {
		var h SettingsHistory
		if err := rows.Scan(&h.ID, &h.SiteID, &h.Settings, &h.Actor, &h.CreatedAt); err != nil {
			return nil, classify(err)
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

// GetSettingsHistoryEntry fetches one history row for rollback.
func (s *Store) GetSettingsHistoryEntry(ctx context.Context, siteID, id string) (*SettingsHistory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, site_id, settings, actor, created_at
		FROM settings_history WHERE site_id = $1 AND id = $2`, siteID, id)
	var h SettingsHistory
	if err := row.Scan(&h.ID, &h.SiteID, &h.Settings, &h.Actor, &h.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, classify(err)
	}
	return &h, nil
}
