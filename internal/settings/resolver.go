package settings

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/staticforge/staticforge/internal/store"
)

const cacheTTL = 5 * time.Minute

type cacheEntry struct {
	doc       Document
	expiresAt time.Time
}

// Resolver merges defaults -> site overrides -> asset overrides,
// validates, and caches the site-level (pre-asset) result.
//
// The in-memory cache is a map guarded by sync.RWMutex, explicitly
// invalidated on write rather than relying purely on TTL expiry.
type Resolver struct {
	store *store.Store

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// New constructs a Resolver bound to st.
func New(st *store.Store) *Resolver {
	return &Resolver{store: st, cache: make(map[string]cacheEntry)}
}

// ResolveSite returns the resolved site-level document (defaults +
// site overrides, no per-asset overrides), using the cache when fresh.
func (r *Resolver) ResolveSite(ctx context.Context, siteID string) (Document, error) {
	r.mu.RLock()
	entry, ok := r.cache[siteID]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.doc, nil
	}

	site, err := r.store.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	override, err := ParseDocument(site.Settings)
	if err != nil {
		return nil, err
	}
	merged := Merge(DefaultsDocument(), override)

	r.mu.Lock()
	r.cache[siteID] = cacheEntry{doc: merged, expiresAt: time.Now().Add(cacheTTL)}
	r.mu.Unlock()

	return merged, nil
}

// ResolveForAsset layers matching asset overrides (in insertion order)
// on top of the site-level resolution, then validates the final
// object. The pipeline does not call it: every asset in a build is
// processed with the site-level result of ResolveBuild.
func (r *Resolver) ResolveForAsset(ctx context.Context, siteID, assetURL, assetClass string) (*Resolved, error) {
	base, err := r.ResolveSite(ctx, siteID)
	if err != nil {
		return nil, err
	}

	overrides, err := r.store.ListAssetOverrides(ctx, siteID)
	if err != nil {
		return nil, err
	}

	merged := base.Clone()
	for _, o := range overrides {
		if o.AssetClass != nil && *o.AssetClass != assetClass {
			continue
		}
		if !MatchGlob(assetURL, o.Pattern) {
			continue
		}
		sparse, err := ParseDocument(o.Settings)
		if err != nil {
			continue
		}
		merged = Merge(merged, sparse)
	}

	return ValidateAndBackfill(merged)
}

// ResolveBuild validates the site-level document alone, for phases
// that run once per build rather than once per asset (crawl depth,
// deploy provider).
func (r *Resolver) ResolveBuild(ctx context.Context, siteID string) (*Resolved, error) {
	base, err := r.ResolveSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return ValidateAndBackfill(base)
}

// Invalidate drops the cached site-level document, fired on any
// settings write so a stale cache entry never outlives the write.
func (r *Resolver) Invalidate(siteID string) {
	r.mu.Lock()
	delete(r.cache, siteID)
	r.mu.Unlock()
}

// Update validates newOverride standalone (merged onto defaults, so a
// bad override is caught before it's persisted), appends the prior
// value to history, writes the new value, and invalidates the cache.
func (r *Resolver) Update(ctx context.Context, siteID, actor string, newOverride Document) error {
	if _, err := ValidateAndBackfill(Merge(DefaultsDocument(), newOverride)); err != nil {
		return err
	}

	site, err := r.store.GetSite(ctx, siteID)
	if err != nil {
		return err
	}
	prior, err := ParseDocument(site.Settings)
	if err != nil {
		return err
	}

	if err := r.store.AppendSettingsHistory(ctx, &store.SettingsHistory{
		ID: uuid.NewString(), SiteID: siteID, Settings: mustJSON(prior), Actor: actor,
	}); err != nil {
		return err
	}
	if err := r.store.UpdateSiteSettings(ctx, siteID, mustJSON(newOverride)); err != nil {
		return err
	}
	r.Invalidate(siteID)
	return nil
}

// Reset clears all overrides back to defaults.
func (r *Resolver) Reset(ctx context.Context, siteID, actor string) error {
	return r.Update(ctx, siteID, actor, Document{})
}

// Rollback copies a historical SettingsHistory value into the site's
// current settings and appends a fresh history entry, reproducing the
// prior diff exactly.
func (r *Resolver) Rollback(ctx context.Context, siteID, actor, historyID string) error {
	entry, err := r.store.GetSettingsHistoryEntry(ctx, siteID, historyID)
	if err != nil {
		return err
	}
	doc, err := ParseDocument(entry.Settings)
	if err != nil {
		return err
	}
	return r.Update(ctx, siteID, actor, doc)
}

// Diff returns the overridden-leaf tree for the site's current sparse
// settings against defaults.
func (r *Resolver) Diff(ctx context.Context, siteID string) (Document, error) {
	site, err := r.store.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	override, err := ParseDocument(site.Settings)
	if err != nil {
		return nil, err
	}
	return Diff(DefaultsDocument(), override), nil
}

func mustJSON(d Document) []byte {
	b, err := json.Marshal(d)
	if err != nil {
		return []byte("{}")
	}
	return b
}
