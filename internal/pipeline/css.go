package pipeline

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

var cssURLFuncPattern = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)

// resolveRef resolves ref (absolute or relative) against base and
// strips any fragment, matching how crawled asset URLs were resolved
// when the asset manifest was first built.
func resolveRef(base *url.URL, ref string) string {
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	u.Fragment = ""
	return u.String()
}

// rewriteCSSURLs rewrites url(...) references inside css that point at
// an already-optimized crawled asset to its emitted path, resolved
// against base (the stylesheet's own URL, so relative references work).
func rewriteCSSURLs(css string, base *url.URL, rewrites map[string]string) string {
	return cssURLFuncPattern.ReplaceAllStringFunc(css, func(m string) string {
		groups := cssURLFuncPattern.FindStringSubmatch(m)
		ref := groups[1]
		resolved := resolveRef(base, ref)
		newPath, ok := rewrites[resolved]
		if !ok {
			return m
		}
		return `url("` + newPath + `")`
	})
}

// runCSS fetches every distinct stylesheet referenced across the
// crawl, purges selectors the combined page HTML never references
// (bounded by PurgeAggressiveness and the safelist), then minifies
// what's left.
func runCSS(ctx context.Context, pc *phaseCtx) error {
	if pc.graph == nil {
		return nil
	}

	var allHTML []string
	styleURLs := map[string]bool{}
	for _, page := range pc.graph.Pages {
		allHTML = append(allHTML, page.HTML)
		for _, href := range page.Stylesheets {
			styleURLs[href] = true
		}
	}

	client := &http.Client{Timeout: 15 * time.Second}
	for cssURL := range styleURLs {
		raw, err := fetchAsset(ctx, client, cssURL)
		if err != nil {
			continue
		}
		pc.originalSizes.CSS += int64(len(raw))
		css := string(raw)

		if base, err := url.Parse(cssURL); err == nil {
			css = rewriteCSSURLs(css, base, pc.assetRewrites)
		}

		if pc.resolved.CSS.PurgeAggressiveness != "safe" {
			purged, err := pc.engine.CSS.Purge(ctx, css, allHTML, pc.resolved.CSS.PurgeSafelist)
			if err != nil {
				return err
			}
			css = purged
		}

		if pc.resolved.CSS.Minify {
			minified, err := pc.engine.CSS.Minify(ctx, css)
			if err != nil {
				return err
			}
			css = minified
		}

		if err := writeOptimizedAsset(pc.outDir, "css", cssURL, []byte(css)); err != nil {
			return err
		}
		pc.optimizedSizes.CSS += int64(len(css))
		pc.assetRewrites[cssURL] = "/css/" + assetFilename(cssURL)
	}
	return nil
}
