package pipeline

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// runJS fetches every distinct script, drops any whose URL matches a
// configured bloat pattern (emoji polyfills, block-library widgets,
// analytics beacons), minifies what remains, and records how many
// were removed in pc.sideEffects for the build summary.
func runJS(ctx context.Context, pc *phaseCtx) error {
	if pc.graph == nil {
		return nil
	}

	scriptURLs := map[string]bool{}
	for _, page := range pc.graph.Pages {
		for _, src := range page.Scripts {
			scriptURLs[src] = true
		}
	}

	client := &http.Client{Timeout: 15 * time.Second}
	for jsURL := range scriptURLs {
		if pc.resolved.JS.RemoveBloat && matchesBloatList(jsURL, pc.resolved.JS.BloatList) {
			pc.sideEffects.ScriptsRemoved++
			continue
		}

		raw, err := fetchAsset(ctx, client, jsURL)
		if err != nil {
			continue
		}
		pc.originalSizes.JS += int64(len(raw))
		js := string(raw)

		if pc.resolved.JS.Minify {
			minified, err := pc.engine.JS.Minify(ctx, js)
			if err != nil {
				return err
			}
			js = minified
		}

		if err := writeOptimizedAsset(pc.outDir, "js", jsURL, []byte(js)); err != nil {
			return err
		}
		pc.optimizedSizes.JS += int64(len(js))
	}
	return nil
}

func matchesBloatList(scriptURL string, bloatList []string) bool {
	lower := strings.ToLower(scriptURL)
	for _, needle := range bloatList {
		if strings.Contains(lower, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}
