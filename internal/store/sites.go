package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/staticforge/staticforge/internal/xerrors"
)

// CreateSite inserts a new site. The caller supplies the id and webhook
// secret (both generated by the API layer so tests can pin them).
func (s *Store) CreateSite(ctx context.Context, site *Site) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sites (id, name, source_url, status, webhook_secret, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		site.ID, site.Name, site.SourceURL, "active", site.WebhookSecret, nullJSON(site.Settings), time.Now())
	return classify(err)
}

// GetSite fetches a site by id.
func (s *Store) GetSite(ctx context.Context, id string) (*Site, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, source_url, status, webhook_secret, last_build_id, last_build_status,
		       edge_url, edge_provider, page_count, total_bytes, settings, created_at, updated_at
		FROM sites WHERE id = $1`, id)
	return scanSite(row)
}

func scanSite(row *sql.Row) (*Site, error) {
	var site Site
	var settings []byte
	if err := row.Scan(&site.ID, &site.Name, &site.SourceURL, &site.Status, &site.WebhookSecret,
		&site.LastBuildID, &site.LastBuildStatus, &site.EdgeURL, &site.EdgeProvider,
		&site.PageCount, &site.TotalBytes, &settings, &site.CreatedAt, &site.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, classify(err)
	}
	site.Settings = settings
	return &site, nil
}

// ListSites returns every site, for background sweeps that need to
// walk the whole fleet (the cleanup cron job, startup reconciliation).
func (s *Store) ListSites(ctx context.Context) ([]*Site, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, source_url, status, webhook_secret, last_build_id, last_build_status,
		       edge_url, edge_provider, page_count, total_bytes, settings, created_at, updated_at
		FROM sites ORDER BY created_at ASC`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*Site
	for rows.Next() {
		var site Site
		var settings []byte
		if err := rows.Scan(&site.ID, &site.Name, &site.SourceURL, &site.Status, &site.WebhookSecret,
			&site.LastBuildID, &site.LastBuildStatus, &site.EdgeURL, &site.EdgeProvider,
			&site.PageCount, &site.TotalBytes, &settings, &site.CreatedAt, &site.UpdatedAt); err != nil {
			return nil, classify(err)
		}
		site.Settings = settings
		out = append(out, &site)
	}
	return out, rows.Err()
}

// DeleteSite cascades to every dependent row via foreign keys.
func (s *Store) DeleteSite(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = $1`, id)
	if err != nil {
		return classify(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// UpdateSiteSettings overwrites the sparse settings document. Callers
// are responsible for appending the prior value to SettingsHistory
// first (see internal/settings.Resolver.Update).
func (s *Store) UpdateSiteSettings(ctx context.Context, id string, settings []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sites SET settings = $2, updated_at = now() WHERE id = $1`, id, nullJSON(settings))
	return classify(err)
}

// CompleteSiteBuild updates a site's denormalized last-build pointer
// and, on success, its edge URL and aggregate stats. Best-effort:
// readers tolerate a small lag, so this is a plain UPDATE, not part of
// the build's own transaction.
func (s *Store) CompleteSiteBuild(ctx context.Context, siteID, buildID string, status BuildStatus, edgeURL *string, pageCount int, totalBytes int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sites SET
			last_build_id = $2,
			last_build_status = $3,
			edge_url = COALESCE($4, edge_url),
			page_count = CASE WHEN $3 = 'success' THEN $5 ELSE page_count END,
			total_bytes = CASE WHEN $3 = 'success' THEN $6 ELSE total_bytes END,
			updated_at = now()
		WHERE id = $1`,
		siteID, buildID, string(status), edgeURL, pageCount, totalBytes)
	return classify(err)
}

// SetSiteEdgeURL updates only the edge URL, for a live-edit redeploy
// that doesn't correspond to any Build row.
func (s *Store) SetSiteEdgeURL(ctx context.Context, siteID, edgeURL string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sites SET edge_url = $2, updated_at = now() WHERE id = $1`, siteID, edgeURL)
	return classify(err)
}

func nullJSON(b []byte) []byte {
	if len(b) == 0 {
		return []byte("{}")
	}
	return b
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
