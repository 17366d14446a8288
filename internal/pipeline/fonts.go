package pipeline

import (
	"context"
	"net/http"
	"time"
)

// runFonts downloads externally-linked webfonts and writes copies under
// outDir/fonts when rehosting is enabled. It does not rewrite the pages'
// font links to point at those copies, and it does not set any
// @font-face font-display policy (Fonts.Display is not read here).
func runFonts(ctx context.Context, pc *phaseCtx) error {
	if pc.graph == nil || !pc.resolved.Fonts.RehostExternal {
		return nil
	}

	fontURLs := map[string]bool{}
	for _, page := range pc.graph.Pages {
		for _, f := range page.Fonts {
			fontURLs[f] = true
		}
	}

	client := &http.Client{Timeout: 15 * time.Second}
	for fontURL := range fontURLs {
		raw, err := fetchAsset(ctx, client, fontURL)
		if err != nil {
			continue
		}
		pc.originalSizes.Fonts += int64(len(raw))
		if err := writeOptimizedAsset(pc.outDir, "fonts", fontURL, raw); err != nil {
			return err
		}
		pc.optimizedSizes.Fonts += int64(len(raw))
	}
	return nil
}
