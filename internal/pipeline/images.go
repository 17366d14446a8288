package pipeline

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/staticforge/staticforge/internal/adapters"
	"github.com/staticforge/staticforge/internal/xerrors"
)

// runImages walks every crawled page's manifest, fetches each distinct
// image once, and re-encodes it through the ImageCodec at the quality
// tier the resolved settings assign: the LCP candidate (a page's first
// image) gets QualityLCP, everything else QualityStandard, and images
// under SkipBelowBytes pass through unchanged since recompressing them
// rarely recovers enough bytes to justify a quality loss.
func runImages(ctx context.Context, pc *phaseCtx) error {
	if pc.graph == nil {
		return nil // resumed build with no crawl artifacts in memory; nothing new to transcode
	}

	seen := make(map[string]bool)
	client := &http.Client{Timeout: 15 * time.Second}

	for _, page := range pc.graph.Pages {
		for i, imgURL := range page.Images {
			if seen[imgURL] {
				continue
			}
			seen[imgURL] = true

			raw, err := fetchAsset(ctx, client, imgURL)
			if err != nil {
				continue // unreachable asset: leave it out of the optimized tree rather than fail the build
			}
			pc.originalSizes.Images += int64(len(raw))

			if len(raw) < pc.resolved.Images.SkipBelowBytes {
				if err := writeOptimizedAsset(pc.outDir, "images", imgURL, raw); err != nil {
					return err
				}
				pc.optimizedSizes.Images += int64(len(raw))
				pc.assetRewrites[imgURL] = "/images/" + assetFilename(imgURL)
				continue
			}

			quality := pc.resolved.Images.QualityStandard
			if i == 0 {
				quality = pc.resolved.Images.QualityLCP
			}

			out, err := pc.engine.Images.Transcode(ctx, raw, adapters.TranscodeOptions{
				Format:  pc.resolved.Images.ModernFormat,
				Quality: quality,
			})
			if err != nil {
				if xerrors.KindOf(err) == xerrors.DeterministicPhaseFailure {
					out = raw // codec rejected the target format; pass the original through
				} else {
					return err
				}
			}

			if err := writeOptimizedAsset(pc.outDir, "images", imgURL, out); err != nil {
				return err
			}
			pc.optimizedSizes.Images += int64(len(out))
			pc.assetRewrites[imgURL] = "/images/" + assetFilename(imgURL)
		}
	}
	return nil
}

func writeOptimizedAsset(outDir, class, assetURL string, data []byte) error {
	dir := filepath.Join(outDir, class)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, assetFilename(assetURL)), data, 0o644)
}

func assetFilename(assetURL string) string {
	return pageSlug(0, assetURL)[5:] // reuse the same safe-character mapping, drop the index prefix
}
