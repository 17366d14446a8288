package pipeline

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var metadataTagPattern = regexp.MustCompile(`(?is)<meta\s+name="(generator|application-name)"[^>]*>`)
var heavyEmbedPattern = regexp.MustCompile(`(?is)<iframe[^>]*src="[^"]*(youtube|vimeo)[^"]*"[^>]*></iframe>`)
var imgSrcPattern = regexp.MustCompile(`(?is)(<img\b[^>]*\ssrc=")([^"]*)(")`)
var linkTagPattern = regexp.MustCompile(`(?is)<link\b[^>]*>`)
var relStylesheetPattern = regexp.MustCompile(`(?is)\srel=["']stylesheet["']`)
var hrefAttrPattern = regexp.MustCompile(`(?is)(\shref=")([^"]*)(")`)

// rewriteAssetRefs points <img src> and <link rel=stylesheet href> at
// the optimized copies the images/css phases already emitted, resolving
// each reference against origin so both absolute and page-relative
// references match the crawl-time asset manifest.
func rewriteAssetRefs(htmlContent string, origin *url.URL, rewrites map[string]string) string {
	htmlContent = imgSrcPattern.ReplaceAllStringFunc(htmlContent, func(tag string) string {
		groups := imgSrcPattern.FindStringSubmatch(tag)
		if newPath, ok := rewrites[resolveRef(origin, groups[2])]; ok {
			return groups[1] + newPath + groups[3]
		}
		return tag
	})
	return linkTagPattern.ReplaceAllStringFunc(htmlContent, func(tag string) string {
		if !relStylesheetPattern.MatchString(tag) {
			return tag
		}
		return hrefAttrPattern.ReplaceAllStringFunc(tag, func(hrefAttr string) string {
			groups := hrefAttrPattern.FindStringSubmatch(hrefAttr)
			if newPath, ok := rewrites[resolveRef(origin, groups[2])]; ok {
				return groups[1] + newPath + groups[3]
			}
			return hrefAttr
		})
	})
}

// runHTML rewrites each crawled page in place: strips noise metadata
// tags when enabled, points asset references at the optimized images
// and stylesheets, adds <link rel=preload> resource hints for the
// page's own optimized CSS, and substitutes a lightweight facade for
// heavy video embeds (counted in pc.sideEffects.FacadesApplied).
func runHTML(ctx context.Context, pc *phaseCtx) error {
	if pc.graph == nil {
		return nil
	}

	for i, page := range pc.graph.Pages {
		if page.Error != nil {
			continue
		}
		slug := pageSlug(i, page.URL)
		dir := filepath.Join(pc.crawlDir, slug)
		html := page.HTML

		if pc.resolved.HTML.StripMetadata {
			html = metadataTagPattern.ReplaceAllString(html, "")
		}

		if origin, err := url.Parse(page.URL); err == nil {
			html = rewriteAssetRefs(html, origin, pc.assetRewrites)
		}

		if pc.resolved.HTML.EmbedFacades && heavyEmbedPattern.MatchString(html) {
			count := len(heavyEmbedPattern.FindAllString(html, -1))
			html = heavyEmbedPattern.ReplaceAllString(html, `<div class="video-facade" data-action="load-video"></div>`)
			pc.sideEffects.FacadesApplied += count
		}

		if pc.resolved.HTML.ResourceHints && len(page.Stylesheets) > 0 {
			hintHref := page.Stylesheets[0]
			if newPath, ok := pc.assetRewrites[hintHref]; ok {
				hintHref = newPath
			}
			hint := `<link rel="preload" as="style" href="` + hintHref + `">` + "\n"
			html = strings.Replace(html, "</head>", hint+"</head>", 1)
		}

		outPath := filepath.Join(dir, "index.html")
		if err := os.WriteFile(outPath, []byte(html), 0o644); err != nil {
			return err
		}
		if err := copyIntoOptimized(pc.outDir, slug, outPath); err != nil {
			return err
		}
		pc.optimizedSizes.HTML += int64(len(html))
	}
	return nil
}

func copyIntoOptimized(outDir, slug, srcPath string) error {
	raw, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	dir := filepath.Join(outDir, "pages", slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "index.html"), raw, 0o644)
}
