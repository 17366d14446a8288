package store

import (
	"context"
)

// InsertMeasurementComparison persists one measurement run.
func (s *Store) InsertMeasurementComparison(ctx context.Context, m *MeasurementComparison) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO measurement_comparisons
			(id, site_id, build_id, strategy, score_original, score_optimized,
			 vitals_original, vitals_optimized, improvement_percent, payload_savings,
			 raw_original, raw_optimized, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12, now())`,
		m.ID, m.SiteID, m.BuildID, m.Strategy, m.ScoreOriginal, m.ScoreOptimized,
		nullJSON(m.VitalsOriginal), nullJSON(m.VitalsOptimized), mustMarshal(m.ImprovementPercent),
		m.PayloadSavings, m.RawOriginal, m.RawOptimized)
	return classify(err)
}

// ListMeasurementComparisons returns a site's measurement history, newest first.
func (s *Store) ListMeasurementComparisons(ctx context.Context, siteID string, limit int) ([]*MeasurementComparison, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, site_id, build_id, strategy, score_original, score_optimized,
		       vitals_original, vitals_optimized, improvement_percent, payload_savings,
		       raw_original, raw_optimized, created_at
		FROM measurement_comparisons WHERE site_id = $1 ORDER BY created_at DESC LIMIT $2`, siteID, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*MeasurementComparison
	for rows.Next() {
		var m MeasurementComparison
		var improvement []byte
		if err := rows.Scan(&m.ID, &m.SiteID, &m.BuildID, &m.Strategy, &m.ScoreOriginal, &m.ScoreOptimized,
			&m.VitalsOriginal, &m.VitalsOptimized, &improvement, &m.PayloadSavings,
			&m.RawOriginal, &m.RawOptimized, &m.CreatedAt); err != nil {
			return nil, classify(err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// UpsertPageFingerprint records a page's content hash after a crawl.
func (s *Store) UpsertPageFingerprint(ctx context.Context, p *Page) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pages (site_id, path, content_hash, last_crawled)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (site_id, path) DO UPDATE SET content_hash = EXCLUDED.content_hash, last_crawled = now()`,
		p.SiteID, p.Path, p.ContentHash)
	return classify(err)
}

// ListPageFingerprints returns every known page fingerprint for a site.
func (s *Store) ListPageFingerprints(ctx context.Context, siteID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, content_hash FROM pages WHERE site_id = $1`, siteID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, classify(err)
		}
		out[path] = hash
	}
	return out, rows.Err()
}

// RecordWebhookNonce inserts a (site, nonce) pair; a unique-violation
// means the webhook was replayed.
func (s *Store) RecordWebhookNonce(ctx context.Context, siteID, nonce string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_nonces (site_id, nonce, seen_at) VALUES ($1, $2, now())`, siteID, nonce)
	return classify(err)
}
