package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sony/gobreaker"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/staticforge/staticforge/internal/xerrors"
)

// RodBrowser drives headless Chromium via go-rod for the crawl phase
// and for verification screenshots/replay. One instance is shared
// across builds; each call launches its own page.
type RodBrowser struct {
	browser *rod.Browser
	cb      *gobreaker.CircuitBreaker

	mu sync.Mutex
}

// NewRodBrowser launches (or connects to) a headless Chromium instance.
func NewRodBrowser() (*RodBrowser, error) {
	u := launcher.New().Headless(true).MustLaunch()
	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("adapters: launch browser: %w", err)
	}
	return &RodBrowser{browser: browser, cb: newBreaker("browser")}, nil
}

func (b *RodBrowser) Close() error { return b.browser.Close() }

// Crawl performs a breadth-first same-origin crawl bounded by depth and
// maxPages, bounded to concurrency simultaneous pages by an errgroup
// limit, with page starts paced to concurrency per second by a
// golang.org/x/time/rate limiter so the source site isn't overloaded.
func (b *RodBrowser) Crawl(ctx context.Context, startURL string, depth, maxPages, concurrency int) (*PageGraph, error) {
	origin, err := url.Parse(startURL)
	if err != nil {
		return nil, xerrors.New(xerrors.ConfigError, "crawl", "parse-url", err.Error(), err)
	}

	limiter := rate.NewLimiter(rate.Limit(concurrency), concurrency)

	var (
		mu      sync.Mutex
		visited = map[string]bool{startURL: true}
		queue   = []string{startURL}
		results []PageResult
	)

	for d := 0; d <= depth && len(results) < maxPages; d++ {
		mu.Lock()
		batch := queue
		queue = nil
		mu.Unlock()
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, pageURL := range batch {
			pageURL := pageURL
			g.Go(func() error {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
				result, links := b.crawlOne(gctx, pageURL, origin)

				mu.Lock()
				defer mu.Unlock()
				if len(results) >= maxPages {
					return nil
				}
				results = append(results, result)
				for _, link := range links {
					if !visited[link] {
						visited[link] = true
						queue = append(queue, link)
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if len(results) == 0 {
		return nil, xerrors.New(xerrors.DeterministicPhaseFailure, "crawl", "", "zero reachable pages", nil)
	}
	return &PageGraph{Pages: results}, nil
}

func (b *RodBrowser) crawlOne(ctx context.Context, pageURL string, origin *url.URL) (PageResult, []string) {
	htmlContent, err := wrapTransient(b.cb, "crawl", func() (string, error) {
		page, err := b.browser.Page(proto.TargetCreateTarget{URL: pageURL})
		if err != nil {
			return "", err
		}
		defer page.Close()
		return page.HTML()
	})
	if err != nil {
		return PageResult{URL: pageURL, Error: xerrors.New(xerrors.TransientUpstream, "crawl", pageURL, err.Error(), err)}, nil
	}

	scripts, styles, images, links, allLinks := extractAssets(htmlContent, origin)
	return PageResult{
		URL:         pageURL,
		HTML:        htmlContent,
		Scripts:     scripts,
		Stylesheets: styles,
		Images:      images,
		Links:       allLinks,
		Interactive: detectInteractive(htmlContent),
	}, links
}

// extractAssets parses rendered HTML with golang.org/x/net/html to pull
// out script/link/img references, same-origin hrefs for the crawl
// frontier, and every resolved href (any origin) for link-integrity
// checking, without pulling in a full CSS-selector engine.
func extractAssets(document string, origin *url.URL) (scripts, styles, images, crawlLinks, allLinks []string) {
	tokenizer := html.NewTokenizer(strings.NewReader(document))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return
		}
		tok := tokenizer.Token()
		switch tok.Data {
		case "script":
			if src := attr(tok, "src"); src != "" {
				scripts = append(scripts, resolve(origin, src))
			}
		case "link":
			if attr(tok, "rel") == "stylesheet" {
				if href := attr(tok, "href"); href != "" {
					styles = append(styles, resolve(origin, href))
				}
			}
		case "img":
			if src := attr(tok, "src"); src != "" {
				images = append(images, resolve(origin, src))
			}
		case "a":
			if href := attr(tok, "href"); href != "" {
				resolved := resolve(origin, href)
				allLinks = append(allLinks, resolved)
				if sameOrigin(origin, resolved) {
					crawlLinks = append(crawlLinks, resolved)
				}
			}
		}
	}
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func resolve(origin *url.URL, ref string) string {
	u, err := origin.Parse(ref)
	if err != nil {
		return ref
	}
	u.Fragment = ""
	return u.String()
}

func sameOrigin(origin *url.URL, candidate string) bool {
	u, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return u.Host == origin.Host
}

// detectInteractive applies simple class/tag heuristics for known
// interactive widget kinds; a real implementation would be far more
// involved but a best-effort scope list is enough for verification
// replay.
func detectInteractive(document string) []InteractiveElement {
	var found []InteractiveElement
	heuristics := map[string]InteractiveKind{
		"slider":    InteractiveSlider,
		"accordion": InteractiveAccordion,
		"dropdown":  InteractiveDropdown,
		"video":     InteractiveVideo,
	}
	lower := strings.ToLower(document)
	for needle, kind := range heuristics {
		if strings.Contains(lower, needle) {
			found = append(found, InteractiveElement{Kind: kind, Selector: "." + needle, Action: "click"})
		}
	}
	if strings.Contains(lower, "<form") {
		found = append(found, InteractiveElement{Kind: InteractiveForm, Selector: "form", Action: "focus"})
	}
	return found
}

// Screenshot renders url at viewport and returns the PNG bytes.
func (b *RodBrowser) Screenshot(ctx context.Context, target string, viewport Viewport) ([]byte, error) {
	return wrapTransient(b.cb, "verify", func() ([]byte, error) {
		page, err := b.browser.Page(proto.TargetCreateTarget{URL: target})
		if err != nil {
			return nil, err
		}
		defer page.Close()

		w, h := viewportSize(viewport)
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width: w, Height: h, DeviceScaleFactor: 1, Mobile: viewport == ViewportMobile,
		}); err != nil {
			return nil, err
		}
		return page.Screenshot(true, nil)
	})
}

func viewportSize(v Viewport) (int, int) {
	switch v {
	case ViewportMobile:
		return 390, 844
	case ViewportTablet:
		return 768, 1024
	default:
		return 1440, 900
	}
}

// ReplayInteraction clicks/hovers/focuses the given element and
// captures a before/after DOM snapshot for functional verification.
func (b *RodBrowser) ReplayInteraction(ctx context.Context, target string, el InteractiveElement) ([]ElementState, error) {
	return wrapTransient(b.cb, "verify", func() ([]ElementState, error) {
		page, err := b.browser.Page(proto.TargetCreateTarget{URL: target})
		if err != nil {
			return nil, err
		}
		defer page.Close()

		before, _ := page.HTML()
		elHandle, err := page.Element(el.Selector)
		if err != nil {
			return []ElementState{{Selector: el.Selector, Snapshot: before}}, nil
		}
		switch el.Action {
		case "hover":
			_ = elHandle.Hover()
		case "focus":
			_ = elHandle.Focus()
		default:
			_ = elHandle.Click(proto.InputMouseButtonLeft, 1)
		}
		after, _ := page.HTML()
		return []ElementState{
			{Selector: el.Selector, Snapshot: before},
			{Selector: el.Selector, Snapshot: after},
		}, nil
	})
}
