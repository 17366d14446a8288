// Package pipeline is the eight-phase build engine (C5): crawl, images,
// css, js, html, fonts, deploy, measure. One Engine serves every build
// job the queue hands it; phases run in sequence against an isolated
// on-disk workspace and report progress through the event bus.
//
// Each phase checkpoints before it runs and publishes start/complete
// events around itself, the same bookkeeping shape an iterative
// tool-call loop would use around each tool invocation, here applied
// to a fixed sequence of concrete transform phases instead.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/staticforge/staticforge/internal/adapters"
	"github.com/staticforge/staticforge/internal/buildsm"
	"github.com/staticforge/staticforge/internal/events"
	"github.com/staticforge/staticforge/internal/queue"
	"github.com/staticforge/staticforge/internal/settings"
	"github.com/staticforge/staticforge/internal/store"
	"github.com/staticforge/staticforge/internal/xerrors"
)

// phaseTimeout bounds how long one phase may run before the pipeline
// treats it as a TransientUpstream failure and lets the queue's retry
// policy decide whether to try again.
var phaseTimeout = map[string]time.Duration{
	"crawl":   30 * time.Minute,
	"images":  20 * time.Minute,
	"css":     10 * time.Minute,
	"js":      10 * time.Minute,
	"html":    5 * time.Minute,
	"fonts":   5 * time.Minute,
	"deploy":  15 * time.Minute,
	"measure": 10 * time.Minute,
}

// phaseOrder is the fixed sequence every build runs. A partial build
// (store.ScopePartial) walks this order exactly as a full build does;
// no phase short-circuits unchanged pages (see crawl.go).
var phaseOrder = []string{"crawl", "images", "css", "js", "html", "fonts", "deploy", "measure"}

// Engine drives the phase sequence for one build at a time, called by
// the queue worker that reserved the job.
type Engine struct {
	Store     *store.Store
	Resolver  *settings.Resolver
	Publisher *events.Publisher

	Browser  adapters.Browser
	Images   adapters.ImageCodec
	CSS      adapters.CSSProcessor
	JS       adapters.JSMinifier
	Deployer adapters.EdgeDeployer
	Measurer adapters.Measurer

	DataRoot string
}

var _ queue.Executor = (*Engine)(nil)

// phaseCtx is threaded through every phase function; it accumulates
// the working state (crawl graph, per-page optimized paths, size
// tallies) that later phases and the final build-row update need.
type phaseCtx struct {
	ctx      context.Context
	engine   *Engine
	site     *store.Site
	build    *store.Build
	resolved *settings.Resolved
	topic    string

	workspace string // {dataRoot}/builds/{buildId}
	crawlDir  string // workspace/crawl
	outDir    string // workspace/optimized

	graph *adapters.PageGraph

	// assetRewrites maps a crawled asset's resolved absolute URL to the
	// root-relative path it was emitted at in outDir, so the html phase
	// can point pages at the optimized copies instead of the originals.
	assetRewrites map[string]string

	originalSizes  store.SizeMetrics
	optimizedSizes store.SizeMetrics
	sideEffects    store.SideEffectCounters
	deployURL      string
	scoreBefore    *float64
	scoreAfter     *float64
}

// Execute implements queue.Executor for store.JobBuild jobs: it loads
// the build, runs every phase in order, and leaves the build row in a
// terminal state regardless of outcome.
func (e *Engine) Execute(ctx context.Context, job queue.Job) error {
	build, err := e.Store.GetBuild(ctx, job.ID)
	if err != nil {
		return err
	}
	site, err := e.Store.GetSite(ctx, build.SiteID)
	if err != nil {
		return err
	}
	resolved, err := e.Resolver.ResolveBuild(ctx, site.ID)
	if err != nil {
		return e.fail(ctx, build, "resolve-settings", err)
	}

	workspace := filepath.Join(e.DataRoot, "builds", build.ID)
	pc := &phaseCtx{
		ctx:       ctx,
		engine:    e,
		site:      site,
		build:     build,
		resolved:  resolved,
		topic:     events.Topic(events.KindBuild, site.ID),
		workspace: workspace,
		crawlDir:      filepath.Join(workspace, "crawl"),
		outDir:        filepath.Join(workspace, "optimized"),
		assetRewrites: make(map[string]string),
	}
	if err := os.MkdirAll(pc.crawlDir, 0o755); err != nil {
		return e.fail(ctx, build, "workspace", err)
	}
	if err := os.MkdirAll(pc.outDir, 0o755); err != nil {
		return e.fail(ctx, build, "workspace", err)
	}

	// resumePhaseIndex reads the pre-transition status to know which
	// phase functions to actually run: a retried build is re-entered
	// with status set to the display phase it failed at (see the
	// retry endpoint), not necessarily BuildFailed itself, so this
	// initial landing on BuildCrawling is a bookkeeping stamp rather
	// than a buildsm-checked edge — buildsm governs every transition
	// from here forward (crawling->optimizing->deploying->success).
	startPhase := resumePhaseIndex(build)
	now := time.Now()
	if err := e.Store.TransitionBuild(ctx, build.ID, store.BuildCrawling, &now, nil, nil); err != nil {
		return err
	}
	build.Status = store.BuildCrawling

	for _, phase := range phaseOrder[startPhase:] {
		if build.Status == store.BuildCancelled {
			return nil
		}
		if err := e.advanceDisplay(ctx, build, buildsm.DisplayPhase(phase)); err != nil {
			return err
		}

		e.Publisher.Publish(ctx, pc.topic, events.TypePhase, events.PhasePayload{Phase: phase})
		e.Publisher.Publish(ctx, pc.topic, events.TypeStepStart, events.StepPayload{Step: phase})

		if err := e.runPhase(pc, phase); err != nil {
			e.Publisher.Publish(ctx, pc.topic, events.TypeError, events.ErrorPayload{Message: err.Error()})
			return e.fail(ctx, build, phase, err)
		}

		e.Publisher.Publish(ctx, pc.topic, events.TypeStepComplete, events.StepPayload{Step: phase, Result: "ok"})
	}

	return e.succeed(ctx, pc)
}

func (e *Engine) runPhase(pc *phaseCtx, phase string) error {
	timeout, ok := phaseTimeout[phase]
	if !ok {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(pc.ctx, timeout)
	defer cancel()

	switch phase {
	case "crawl":
		return runCrawl(ctx, pc)
	case "images":
		return runImages(ctx, pc)
	case "css":
		return runCSS(ctx, pc)
	case "js":
		return runJS(ctx, pc)
	case "html":
		return runHTML(ctx, pc)
	case "fonts":
		return runFonts(ctx, pc)
	case "deploy":
		return runDeploy(ctx, pc)
	case "measure":
		return runMeasure(ctx, pc)
	default:
		return fmt.Errorf("pipeline: unknown phase %q", phase)
	}
}

// resumePhaseIndex implements the retry-in-place contract: a build
// re-entering from BuildFailed resumes at the phase that failed rather
// than re-running the crawl, inferred from the build's current display
// status.
func resumePhaseIndex(b *store.Build) int {
	switch b.Status {
	case store.BuildOptimizing:
		return 1
	case store.BuildDeploying:
		return 6
	default:
		return 0
	}
}

// displayChain is the linear order the umbrella build statuses move
// through on the happy path; used by advanceDisplay to step through
// intermediate statuses a resumed build skips directly past.
var displayChain = []store.BuildStatus{store.BuildCrawling, store.BuildOptimizing, store.BuildDeploying}

// advanceDisplay walks b's status forward along displayChain to target,
// one legal hop at a time, so a build resuming straight into a later
// phase (e.g. retrying a deploy failure) still produces a valid
// transition sequence instead of attempting an illegal direct edge.
func (e *Engine) advanceDisplay(ctx context.Context, b *store.Build, target store.BuildStatus) error {
	if b.Status == target {
		return nil
	}
	fromIdx := indexOf(displayChain, b.Status)
	toIdx := indexOf(displayChain, target)
	if fromIdx < 0 || toIdx < 0 || toIdx < fromIdx {
		return e.transition(ctx, b, target, nil, nil, nil)
	}
	for i := fromIdx + 1; i <= toIdx; i++ {
		if err := e.transition(ctx, b, displayChain[i], nil, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

func indexOf(chain []store.BuildStatus, s store.BuildStatus) int {
	for i, c := range chain {
		if c == s {
			return i
		}
	}
	return -1
}

func (e *Engine) transition(ctx context.Context, b *store.Build, to store.BuildStatus, startedAt, completedAt *time.Time, errDetails *store.ErrorDetails) error {
	if err := buildsm.Validate(b.Status, to); err != nil {
		return xerrors.New(xerrors.ConcurrencyConflict, "transition", string(to), err.Error(), err)
	}
	if err := e.Store.TransitionBuild(ctx, b.ID, to, startedAt, completedAt, errDetails); err != nil {
		return err
	}
	b.Status = to
	return nil
}

func (e *Engine) fail(ctx context.Context, b *store.Build, phase string, cause error) error {
	now := time.Now()
	details := &store.ErrorDetails{
		Phase:     phase,
		Message:   cause.Error(),
		Retryable: xerrors.IsRetryable(cause),
	}
	if err := e.transition(ctx, b, store.BuildFailed, nil, &now, details); err != nil {
		return err
	}
	topic := events.Topic(events.KindBuild, b.SiteID)
	e.Publisher.Publish(ctx, topic, events.TypeDone, events.StepPayload{Step: phase, Result: "failed"})
	return cause
}

func (e *Engine) succeed(ctx context.Context, pc *phaseCtx) error {
	now := time.Now()
	if err := e.transition(ctx, pc.build, store.BuildSuccess, nil, &now, nil); err != nil {
		return err
	}
	if err := e.Store.UpdateBuildSizes(ctx, pc.build.ID, &pc.originalSizes, &pc.optimizedSizes, &pc.sideEffects); err != nil {
		return err
	}
	pageCount := pc.build.PagesTotal
	if pc.graph != nil {
		pageCount = len(pc.graph.Pages)
	}
	if err := e.Store.CompleteSiteBuild(ctx, pc.site.ID, pc.build.ID, store.BuildSuccess, &pc.deployURL, pageCount, pc.optimizedSizes.Total()); err != nil {
		return err
	}
	e.Publisher.Publish(ctx, pc.topic, events.TypeDeploy, map[string]string{"url": pc.deployURL})
	e.Publisher.Publish(ctx, pc.topic, events.TypeDone, events.StepPayload{Step: "measure", Result: "success"})
	return nil
}
