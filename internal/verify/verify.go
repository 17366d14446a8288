// Package verify is the verification suite (C9): visual diff,
// functional replay, link integrity, and performance, run concurrently
// against a deployed edge URL and compared with a captured baseline.
package verify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/staticforge/staticforge/internal/adapters"
)

// DiffStatus classifies a visual-diff result against fixed thresholds:
// identical <0.1%, acceptable <2%, needs-review <10%, failed >=10%.
type DiffStatus string

const (
	DiffIdentical   DiffStatus = "identical"
	DiffAcceptable  DiffStatus = "acceptable"
	DiffNeedsReview DiffStatus = "needs-review"
	DiffFailed      DiffStatus = "failed"
)

func classifyDiff(percent float64) DiffStatus {
	switch {
	case percent < 0.1:
		return DiffIdentical
	case percent < 2:
		return DiffAcceptable
	case percent < 10:
		return DiffNeedsReview
	default:
		return DiffFailed
	}
}

// VisualResult is one page x viewport comparison.
type VisualResult struct {
	PageURL      string
	Viewport     adapters.Viewport
	DiffPercent  float64
	DiffPixels   int64
	Status       DiffStatus
}

// FunctionalResult is one replayed interactive element.
type FunctionalResult struct {
	PageURL       string
	Selector      string
	Passed        bool
	FailureReason string
}

// LinkResult is one resolved hyperlink's reachability check.
type LinkResult struct {
	PageURL string
	Href    string
	Status  int
	Passed  bool
}

// PerformanceResult is one page's measurement snapshot.
type PerformanceResult struct {
	PageURL     string
	Performance float64
	TTFB        time.Duration
	LoadTimeMs  int
}

// Report aggregates all four categories for one build. Categories run
// independently; a failure in one never prevents the others from
// finishing.
type Report struct {
	Visual      []VisualResult
	Functional  []FunctionalResult
	Links       []LinkResult
	Performance []PerformanceResult
}

// Passed reports whether the report contains no functional failure and
// no visual diff classified "failed" — the bar the agent loop's review
// step treats as good enough to avoid an automatic needs-changes.
func (r Report) Passed() bool {
	for _, v := range r.Visual {
		if v.Status == DiffFailed {
			return false
		}
	}
	for _, f := range r.Functional {
		if !f.Passed {
			return false
		}
	}
	return true
}

// PageInput is one crawled page's inputs to verification, with both
// URLs fully resolved (no base-URL concatenation downstream).
type PageInput struct {
	EdgeURL     string // the deployed, optimized page
	BaselineURL string // the original source page, for the visual baseline
	Interactive []adapters.InteractiveElement
	Links       []string
}

// Suite runs the four verification categories concurrently, each on
// its own goroutine joined by sync.WaitGroup rather than errgroup, so
// one category's failure never cancels the others.
type Suite struct {
	Browser  adapters.Browser
	Measurer adapters.Measurer
	Client   *http.Client
}

func NewSuite(browser adapters.Browser, measurer adapters.Measurer) *Suite {
	return &Suite{Browser: browser, Measurer: measurer, Client: &http.Client{Timeout: 10 * time.Second}}
}

// Run verifies every page in pages, for every viewport, across all
// four categories at once. Each category runs on its own independent
// context — no errgroup-style shared cancellation — so a failure in
// one category never short-circuits the others.
func (s *Suite) Run(ctx context.Context, pages []PageInput, viewports []adapters.Viewport, strategy string) *Report {
	report := &Report{}
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		report.Visual, _ = s.runVisual(ctx, pages, viewports)
	}()
	go func() {
		defer wg.Done()
		report.Functional, _ = s.runFunctional(ctx, pages)
	}()
	go func() {
		defer wg.Done()
		report.Links = s.runLinks(ctx, pages)
	}()
	go func() {
		defer wg.Done()
		report.Performance, _ = s.runPerformance(ctx, pages, strategy)
	}()

	wg.Wait()
	return report
}
