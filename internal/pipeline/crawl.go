package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/staticforge/staticforge/internal/adapters"
	"github.com/staticforge/staticforge/internal/store"
	"github.com/staticforge/staticforge/internal/xerrors"
)

// runCrawl drives the Browser adapter across the site's source URL and
// writes each page's raw HTML plus an asset manifest to pc.crawlDir.
// Each page's content hash is recorded as a store.Page fingerprint. A
// partial build crawls and processes every page exactly as a full build
// does; no phase compares against the stored hashes or skips unchanged
// pages.
func runCrawl(ctx context.Context, pc *phaseCtx) error {
	graph, err := pc.engine.Browser.Crawl(ctx, pc.site.SourceURL, pc.resolved.Crawl.MaxDepth, pc.resolved.Crawl.MaxPages, pc.resolved.Crawl.Concurrency)
	if err != nil {
		return err
	}
	if len(graph.Pages) == 0 {
		return xerrors.New(xerrors.DeterministicPhaseFailure, "crawl", "", "crawl produced zero pages", nil)
	}
	pc.graph = graph

	if err := pc.engine.Store.SetBuildPagesTotal(ctx, pc.build.ID, len(graph.Pages)); err != nil {
		return err
	}

	for i, page := range graph.Pages {
		if page.Error != nil {
			continue
		}

		if err := writePage(pc.crawlDir, pageSlug(i, page.URL), page); err != nil {
			return xerrors.New(xerrors.CorruptArtifact, "crawl", "write-page", err.Error(), err)
		}
		pc.originalSizes.HTML += int64(len(page.HTML))

		if err := pc.engine.Store.UpsertPageFingerprint(ctx, &store.Page{
			SiteID: pc.site.ID, Path: page.URL, ContentHash: contentHash(page.HTML),
		}); err != nil {
			return err
		}
		if err := pc.engine.Store.UpdateBuildProgress(ctx, pc.build.ID, i+1, "crawled "+page.URL); err != nil {
			return err
		}
	}

	return nil
}

func contentHash(html string) string {
	sum := sha256.Sum256([]byte(html))
	return hex.EncodeToString(sum[:])
}

// pageSlug gives each crawled page a filesystem-safe directory name
// while keeping a stable, human-traceable index prefix.
func pageSlug(index int, pageURL string) string {
	safe := make([]byte, 0, len(pageURL))
	for _, r := range pageURL {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			safe = append(safe, byte(r))
		default:
			safe = append(safe, '_')
		}
	}
	if len(safe) > 64 {
		safe = safe[:64]
	}
	return fmtIndex(index) + "_" + string(safe)
}

func fmtIndex(i int) string {
	const digits = "0123456789"
	buf := make([]byte, 0, 4)
	if i == 0 {
		buf = []byte{'0'}
	}
	for i > 0 {
		buf = append([]byte{digits[i%10]}, buf...)
		i /= 10
	}
	for len(buf) < 4 {
		buf = append([]byte{'0'}, buf...)
	}
	return string(buf)
}

// pageManifest is the per-page sidecar file later phases read to find
// a page's asset list without re-parsing its HTML.
type pageManifest struct {
	URL         string                        `json:"url"`
	Scripts     []string                      `json:"scripts"`
	Stylesheets []string                      `json:"stylesheets"`
	Images      []string                      `json:"images"`
	Fonts       []string                      `json:"fonts"`
	Links       []string                      `json:"links"`
	Interactive []adapters.InteractiveElement `json:"interactive"`
}

func writePage(crawlDir, slug string, page adapters.PageResult) error {
	dir := filepath.Join(crawlDir, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte(page.HTML), 0o644); err != nil {
		return err
	}
	manifest := pageManifest{
		URL: page.URL, Scripts: page.Scripts, Stylesheets: page.Stylesheets,
		Images: page.Images, Fonts: page.Fonts, Links: page.Links, Interactive: page.Interactive,
	}
	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "manifest.json"), raw, 0o644)
}
