// Package agentloop is the resumable iterative optimization driver:
// plan, apply, build, verify, review, repeat — up to a configured
// maximum of iterations, checkpointed before every build so a crashed
// run resumes at the right iteration instead of restarting.
//
// The iteration bookkeeping (an in-flight-build map guarded by a
// mutex, a cancel func per iteration) is the standard shape for a
// supervised long-running job, here checkpointing on every phase
// transition instead of only at completion, per the resumability
// contract.
package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/staticforge/staticforge/internal/adapters"
	"github.com/staticforge/staticforge/internal/events"
	"github.com/staticforge/staticforge/internal/pipeline"
	"github.com/staticforge/staticforge/internal/queue"
	"github.com/staticforge/staticforge/internal/settings"
	"github.com/staticforge/staticforge/internal/store"
	"github.com/staticforge/staticforge/internal/verify"
	"github.com/staticforge/staticforge/internal/xerrors"
)

const defaultMaxIterations = 10

const systemPromptPlan = `You are a static-site optimization planner. Given a site's page ` +
	`inventory and any prior measurement data, return a JSON OptimizationPlan: a full settings ` +
	`override document plus a one-line rationale per settings section and an expected ` +
	`before/after/delta performance estimate.`

const systemPromptReview = `You are reviewing one optimization iteration's verification results ` +
	`against the full iteration history. Return a JSON AIReviewDecision with verdict one of ` +
	`pass, needs-changes, critical-failure. On needs-changes, include a partial settings delta ` +
	`and a reasoning string explaining what to change next.`

// Runner drives one AgentRun to completion, implementing queue.Executor
// for store.JobAgent jobs.
type Runner struct {
	Store     *store.Store
	Resolver  *settings.Resolver
	Publisher *events.Publisher
	Pipeline  *pipeline.Engine
	Verify    *verify.Suite
	Oracle    adapters.Oracle

	DataRoot  string
	Viewports []adapters.Viewport
	Strategy  string // measurement strategy passed to the Verify step ("mobile" | "desktop")

	mu       sync.Mutex
	inFlight map[string]context.CancelFunc // runID -> current phase's cancel func
}

var _ queue.Executor = (*Runner)(nil)

func (r *Runner) trackCancel(runID string, cancel context.CancelFunc) {
	r.mu.Lock()
	if r.inFlight == nil {
		r.inFlight = make(map[string]context.CancelFunc)
	}
	r.inFlight[runID] = cancel
	r.mu.Unlock()
}

func (r *Runner) clearCancel(runID string) {
	r.mu.Lock()
	delete(r.inFlight, runID)
	r.mu.Unlock()
}

// Execute drives job.ID's AgentRun through plan/apply/build/verify/review
// phases until it reaches a terminal phase, the iteration cap, or a
// cooperative cancellation request.
func (r *Runner) Execute(ctx context.Context, job queue.Job) error {
	run, err := r.Store.GetAgentRun(ctx, job.ID)
	if err != nil {
		return err
	}
	site, err := r.Store.GetSite(ctx, run.SiteID)
	if err != nil {
		return err
	}
	topic := events.Topic(events.KindAgent, site.ID)

	workspace, err := r.ensureWorkspace(ctx, run)
	if err != nil {
		return r.failRun(ctx, run, err)
	}

	for {
		run, err = r.Store.GetAgentRun(ctx, run.ID)
		if err != nil {
			return err
		}
		if run.CancelRequested {
			return r.cancelRun(ctx, run, topic)
		}
		if run.Phase.Terminal() {
			return nil
		}
		if run.MaxIterations <= 0 {
			run.MaxIterations = defaultMaxIterations
		}
		if run.Iteration >= run.MaxIterations {
			return r.finishExhausted(ctx, run, topic)
		}

		cp := decodeCheckpoint(run.Checkpoint)

		phaseCtx, cancel := context.WithCancel(ctx)
		r.trackCancel(run.ID, cancel)
		var phaseErr error
		switch run.Phase {
		case store.AgentAnalyzing, store.AgentPlanning:
			phaseErr = r.runPlan(phaseCtx, run, site, cp, topic)
		case store.AgentBuilding:
			phaseErr = r.runBuild(phaseCtx, run, site, cp, topic, workspace)
		case store.AgentVerifying:
			phaseErr = r.runVerify(phaseCtx, run, site, cp, topic)
		case store.AgentReviewing:
			phaseErr = r.runReview(phaseCtx, run, site, cp, topic)
		default:
			phaseErr = fmt.Errorf("agentloop: unknown phase %q", run.Phase)
		}
		cancel()
		r.clearCancel(run.ID)

		if phaseErr != nil {
			if xerrors.KindOf(phaseErr) == xerrors.CancelRequested {
				return r.cancelRun(ctx, run, topic)
			}
			return r.failRun(ctx, run, phaseErr)
		}
	}
}

// ensureWorkspace implements the resumability gate: the workspace
// directory's presence on disk, not any in-memory state, is what lets
// a crashed run resume.
func (r *Runner) ensureWorkspace(ctx context.Context, run *store.AgentRun) (string, error) {
	if run.WorkspacePath != nil {
		if _, err := os.Stat(*run.WorkspacePath); err == nil {
			return *run.WorkspacePath, nil
		}
	}
	workspace := filepath.Join(r.DataRoot, "agents", run.ID)
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return "", err
	}
	if err := r.Store.SetAgentRunWorkspace(ctx, run.ID, &workspace); err != nil {
		return "", err
	}
	return workspace, nil
}

// runPlan is step 1, first iteration only: ask the oracle for a full
// settings override document given the site's known page inventory and
// any prior measurement history.
func (r *Runner) runPlan(ctx context.Context, run *store.AgentRun, site *store.Site, cp *checkpoint, topic string) error {
	inventory, err := r.buildSiteInventory(ctx, site)
	if err != nil {
		return err
	}

	plan, usage, err := r.Oracle.Plan(ctx, systemPromptPlan, string(inventory))
	if err != nil {
		return err
	}
	r.Publisher.Publish(ctx, topic, events.TypePlan, events.PlanPayload{
		PlanID:    uuid.NewString(),
		Rationale: rationaleSummary(plan.Rationale),
	})

	cp.CurrentSettings = settings.Document(plan.Settings)
	cp.SiteInventory = inventory
	_ = usage // recorded via oracle's own cost table; no per-call ledger row in this phase

	if err := r.Resolver.Update(ctx, site.ID, "agent:"+run.ID, cp.CurrentSettings); err != nil {
		return err
	}
	return r.Store.UpdateAgentRunPhase(ctx, run.ID, store.AgentBuilding, run.Iteration, cp.encode(), nil)
}

// runBuild is step 3: enqueue a full build directly against the
// pipeline engine (not through the job queue — this run already holds
// the site's slot, and Execute doesn't re-acquire one) and wait for it
// to reach a terminal status.
func (r *Runner) runBuild(ctx context.Context, run *store.AgentRun, site *store.Site, cp *checkpoint, topic string, workspace string) error {
	build := &store.Build{
		ID:          uuid.NewString(),
		SiteID:      site.ID,
		Scope:       store.ScopeFull,
		TriggeredBy: store.TriggeredByAgent,
		Status:      store.BuildQueued,
		CreatedAt:   time.Now(),
	}
	if err := r.Store.CreateBuildForAgent(ctx, build); err != nil {
		return err
	}
	if err := r.Store.UpdateAgentRunPhase(ctx, run.ID, store.AgentBuilding, run.Iteration, cp.encode(), &build.ID); err != nil {
		return err
	}

	if err := r.Pipeline.Execute(ctx, queue.Job{ID: build.ID, SiteID: site.ID}); err != nil {
		return err
	}

	completed, err := r.Store.GetBuild(ctx, build.ID)
	if err != nil {
		return err
	}
	if completed.Status != store.BuildSuccess {
		reason := "build failed"
		if completed.Error != nil {
			reason = completed.Error.Message
		}
		return xerrors.New(xerrors.DeterministicPhaseFailure, "agentloop", "build", reason, nil)
	}

	return r.Store.UpdateAgentRunPhase(ctx, run.ID, store.AgentVerifying, run.Iteration, cp.encode(), &build.ID)
}

// runVerify is step 4: reload the page inventory from the just-built
// workspace and run the full verification suite against the new edge URL.
func (r *Runner) runVerify(ctx context.Context, run *store.AgentRun, site *store.Site, cp *checkpoint, topic string) error {
	if run.CurrentBuildID == nil {
		return fmt.Errorf("agentloop: verify phase with no current build")
	}
	site, err := r.Store.GetSite(ctx, site.ID)
	if err != nil {
		return err
	}
	if site.EdgeURL == nil {
		return fmt.Errorf("agentloop: build succeeded but site has no edge url")
	}

	pages, err := pipeline.LoadPageInputs(r.DataRoot, *run.CurrentBuildID, *site.EdgeURL)
	if err != nil {
		return err
	}

	r.Publisher.Publish(ctx, topic, events.TypeVerificationStart, events.StepPayload{Step: "verify"})
	report := r.Verify.Run(ctx, pages, r.Viewports, r.Strategy)
	r.Publisher.Publish(ctx, topic, events.TypeVerificationResult, report)

	summary := summarizeReport(report)
	var scoreBefore float64
	if n := len(cp.History); n > 0 {
		scoreBefore = cp.History[n-1].ScoreAfter
	}
	cp.History = append(cp.History, iterationRecord{
		Iteration:     run.Iteration,
		Settings:      cp.CurrentSettings,
		BuildID:       *run.CurrentBuildID,
		ScoreBefore:   scoreBefore,
		ScoreAfter:    summary.AvgPerformance,
		ReportSummary: summary,
	})

	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	cp.SiteInventory = raw // last verification report, kept under the same opaque slot for the oracle round-trip

	return r.Store.UpdateAgentRunPhase(ctx, run.ID, store.AgentReviewing, run.Iteration, cp.encode(), run.CurrentBuildID)
}

// runReview is step 5: hand the verification results plus the full
// iteration history back to the oracle and act on its verdict.
func (r *Runner) runReview(ctx context.Context, run *store.AgentRun, site *store.Site, cp *checkpoint, topic string) error {
	userContent, err := json.Marshal(struct {
		History []iterationRecord `json:"history"`
		Latest  json.RawMessage   `json:"latestReport"`
	}{History: cp.History, Latest: cp.SiteInventory})
	if err != nil {
		return err
	}

	decision, _, err := r.Oracle.Review(ctx, systemPromptReview, string(userContent))
	if err != nil {
		return err
	}
	if len(cp.History) > 0 {
		cp.History[len(cp.History)-1].Verdict = string(decision.Verdict)
		cp.History[len(cp.History)-1].Reasoning = decision.Reasoning
	}

	switch decision.Verdict {
	case adapters.VerdictPass:
		return r.Store.UpdateAgentRunPhase(ctx, run.ID, store.AgentComplete, run.Iteration, cp.encode(), nil)
	case adapters.VerdictCriticalFailure:
		if err := r.Store.UpdateAgentRunPhase(ctx, run.ID, store.AgentFailed, run.Iteration, cp.encode(), nil); err != nil {
			return err
		}
		return r.Store.FailAgentRun(ctx, run.ID, "critical-failure: "+decision.Reasoning)
	default: // needs-changes
		if len(decision.SettingDelta) > 0 {
			cp.CurrentSettings = settings.Merge(cp.CurrentSettings, settings.Document(decision.SettingDelta))
			if err := r.Resolver.Update(ctx, site.ID, "agent:"+run.ID, cp.CurrentSettings); err != nil {
				return err
			}
		}
		return r.Store.UpdateAgentRunPhase(ctx, run.ID, store.AgentBuilding, run.Iteration+1, cp.encode(), nil)
	}
}

// buildSiteInventory assembles a compact JSON summary of the site's
// known pages and most recent measurement comparison for the oracle's
// first Plan call. A full crawl's asset inventory lives in each
// build's crawl workspace (internal/pipeline); the agent loop's plan
// step only needs shape and prior performance, not every asset URL.
func (r *Runner) buildSiteInventory(ctx context.Context, site *store.Site) (json.RawMessage, error) {
	fingerprints, err := r.Store.ListPageFingerprints(ctx, site.ID)
	if err != nil {
		return nil, err
	}
	recent, err := r.Store.ListMeasurementComparisons(ctx, site.ID, 1)
	if err != nil {
		return nil, err
	}

	var lastMeasurement *store.MeasurementComparison
	if len(recent) > 0 {
		lastMeasurement = recent[0]
	}

	paths := make([]string, 0, len(fingerprints))
	for path := range fingerprints {
		paths = append(paths, path)
	}

	raw, err := json.Marshal(struct {
		SourceURL       string                          `json:"sourceUrl"`
		PageCount       int                              `json:"pageCount"`
		KnownPages      []string                         `json:"knownPages"`
		LastMeasurement *store.MeasurementComparison     `json:"lastMeasurement,omitempty"`
	}{SourceURL: site.SourceURL, PageCount: len(paths), KnownPages: paths, LastMeasurement: lastMeasurement})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func rationaleSummary(rationale map[string]string) string {
	for _, v := range rationale {
		return v
	}
	return ""
}

func (r *Runner) cancelRun(ctx context.Context, run *store.AgentRun, topic string) error {
	if err := r.Store.FailAgentRun(ctx, run.ID, "cancelled"); err != nil {
		return err
	}
	r.Publisher.Publish(ctx, topic, events.TypeDone, events.StepPayload{Step: string(run.Phase), Result: "cancelled"})
	return nil
}

func (r *Runner) failRun(ctx context.Context, run *store.AgentRun, cause error) error {
	if err := r.Store.FailAgentRun(ctx, run.ID, cause.Error()); err != nil {
		return err
	}
	topic := events.Topic(events.KindAgent, run.SiteID)
	r.Publisher.Publish(ctx, topic, events.TypeError, events.ErrorPayload{Message: cause.Error()})
	return cause
}

func (r *Runner) finishExhausted(ctx context.Context, run *store.AgentRun, topic string) error {
	if err := r.Store.FailAgentRun(ctx, run.ID, "max iterations reached without a pass verdict"); err != nil {
		return err
	}
	r.Publisher.Publish(ctx, topic, events.TypeDone, events.StepPayload{Step: "review", Result: "max-iterations"})
	return nil
}
