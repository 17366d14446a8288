// Package adapters defines the narrow contracts the pipeline, agent
// loop, and verification suite use to reach every external
// collaborator: browser automation, image/CSS/JS processing, edge
// deployment, page measurement, and the optimization oracle. Each
// interface has exactly one production implementation in this package
// and is trivially fakeable in tests.
package adapters

import (
	"context"
	"time"
)

// Viewport is one of the three screenshot/layout targets crawl and
// verification render against.
type Viewport string

const (
	ViewportMobile  Viewport = "mobile"
	ViewportTablet  Viewport = "tablet"
	ViewportDesktop Viewport = "desktop"
)

// InteractiveKind enumerates the heuristics the crawl phase detects.
type InteractiveKind string

const (
	InteractiveSlider    InteractiveKind = "slider"
	InteractiveAccordion InteractiveKind = "accordion"
	InteractiveDropdown  InteractiveKind = "dropdown"
	InteractiveForm      InteractiveKind = "form"
	InteractiveVideo     InteractiveKind = "video"
)

// InteractiveElement is one detected widget on a page, scoped for replay.
type InteractiveElement struct {
	Kind     InteractiveKind
	Selector string
	Action   string // click | hover | focus
}

// PageResult is one crawled page: rendered HTML plus its asset inventory.
type PageResult struct {
	URL           string
	HTML          string
	Scripts       []string
	Stylesheets   []string
	Images        []string
	Fonts         []string
	Links         []string
	Interactive   []InteractiveElement
	Error         error
}

// PageGraph is the crawl's full result set, keyed by URL.
type PageGraph struct {
	Pages []PageResult
}

// ElementState is a DOM snapshot captured before/after replaying an
// interaction, for the functional verification category.
type ElementState struct {
	Selector string
	Snapshot string
}

// Browser drives headless-browser automation for crawling, baseline
// and verification screenshots, and functional replay.
type Browser interface {
	Crawl(ctx context.Context, startURL string, depth, maxPages, concurrency int) (*PageGraph, error)
	Screenshot(ctx context.Context, url string, viewport Viewport) ([]byte, error)
	ReplayInteraction(ctx context.Context, url string, el InteractiveElement) ([]ElementState, error)
}

// TranscodeOptions configures one image transform.
type TranscodeOptions struct {
	Format  string // webp | avif | jpeg | png
	Quality int
	ResizeW int // 0 = no resize
}

// ImageCodec transcodes and resizes raster images.
type ImageCodec interface {
	Transcode(ctx context.Context, src []byte, opts TranscodeOptions) ([]byte, error)
}

// CSSProcessor tree-shakes and minifies stylesheets.
type CSSProcessor interface {
	Purge(ctx context.Context, css string, html []string, safelist []string) (string, error)
	Minify(ctx context.Context, css string) (string, error)
}

// JSMinifier minifies JavaScript.
type JSMinifier interface {
	Minify(ctx context.Context, js string) (string, error)
}

// DeployResult is what the edge provider hands back after an upload.
type DeployResult struct {
	URL string
}

// EdgeDeployer uploads an optimized directory tree to the CDN edge.
type EdgeDeployer interface {
	Deploy(ctx context.Context, projectName, localDir, sourceURL string) (*DeployResult, error)
}

// CoreVitals is the subset of a PageSpeed-shaped response the
// measurement category and MeasurementComparison rows care about.
type CoreVitals struct {
	TTFB         time.Duration
	LoadTimeMs   int
	LCP          time.Duration
	CLS          float64
}

// MeasureResult is one Measurer.Measure call's output.
type MeasureResult struct {
	Score        float64
	Vitals       CoreVitals
	Opportunities []string
	RawPayload   []byte
}

// Measurer calls the external performance-measurement endpoint.
type Measurer interface {
	Measure(ctx context.Context, url string, strategy string) (*MeasureResult, error)
}

// OptimizationPlan is the oracle's output on a "plan" request (§4.7 step 1).
type OptimizationPlan struct {
	Settings            map[string]any `json:"settings"`
	Rationale           map[string]string `json:"rationale"` // per-section
	ExpectedPerformance struct {
		Before float64 `json:"before"`
		After  float64 `json:"after"`
		Delta  float64 `json:"delta"`
	} `json:"expectedPerformance"`
}

// ReviewVerdict is the oracle's tri-state verdict on a "review" request.
type ReviewVerdict string

const (
	VerdictPass            ReviewVerdict = "pass"
	VerdictNeedsChanges    ReviewVerdict = "needs-changes"
	VerdictCriticalFailure ReviewVerdict = "critical-failure"
)

// AIReviewDecision is the oracle's output at the end of an iteration.
type AIReviewDecision struct {
	Verdict       ReviewVerdict  `json:"verdict"`
	SettingDelta  map[string]any `json:"settingDelta,omitempty"`
	Reasoning     string         `json:"reasoning"`
	ShouldRebuild bool           `json:"shouldRebuild"`
	Confidence    float64        `json:"confidence"`
}

// TokenUsage tracks the cost-accounting fields every oracle call
// records.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Oracle is the stateless LLM plan/review contract. Implementations
// must treat a malformed response as TransientUpstream with retry
// rather than a fatal error.
type Oracle interface {
	Plan(ctx context.Context, systemPrompt, userContent string) (*OptimizationPlan, TokenUsage, error)
	Review(ctx context.Context, systemPrompt, userContent string) (*AIReviewDecision, TokenUsage, error)
}
