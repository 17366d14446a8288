package liveedit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/staticforge/staticforge/internal/events"
	"github.com/staticforge/staticforge/internal/xerrors"
)

const systemPromptLiveEdit = `You are editing a deployed static site's HTML files directly. Given ` +
	`the current content of the selected files and an instruction, return a JSON object with ` +
	`"edits" (an array of {path, newContent}), "issues" found, "improvements" made, and a one ` +
	`paragraph "rationale".`

// PlanOutput is a proposed set of live edits awaiting approval. Kept in
// memory only — a plan is a conversation artifact, not durable state.
type PlanOutput struct {
	PlanID       string   `json:"planId"`
	SiteID       string   `json:"siteId"`
	Edits        []Edit   `json:"edits"`
	Issues       []string `json:"issues"`
	Improvements []string `json:"improvements"`
	Rationale    string   `json:"rationale"`
	CreatedAt    time.Time
}

// planEnvelope is the shape the oracle is asked to return for a
// live-edit plan request. It's decoded out of the generic
// OptimizationPlan.Settings map the Oracle.Plan contract already
// carries, rather than widening the Oracle interface with a
// live-edit-specific method.
type planEnvelope struct {
	Edits        []Edit   `json:"edits"`
	Issues       []string `json:"issues"`
	Improvements []string `json:"improvements"`
}

// Plan invokes the oracle with the current content of the files named
// in scope plus instruction, stores the resulting PlanOutput keyed by
// siteID (superseding any prior plan for that site), and emits a
// "plan" event.
func (m *Manager) Plan(ctx context.Context, siteID string, scope []string, instruction string) (*PlanOutput, error) {
	files := make(map[string]string, len(scope))
	for _, path := range scope {
		content, err := m.ReadFile(ctx, siteID, path)
		if err != nil {
			return nil, fmt.Errorf("liveedit: read scope file %s: %w", path, err)
		}
		files[path] = content
	}

	userContent, err := json.Marshal(struct {
		Instruction string            `json:"instruction"`
		Files       map[string]string `json:"files"`
	}{Instruction: instruction, Files: files})
	if err != nil {
		return nil, err
	}

	raw, _, err := m.Oracle.Plan(ctx, systemPromptLiveEdit, string(userContent))
	if err != nil {
		return nil, err
	}

	envelopeJSON, err := json.Marshal(raw.Settings)
	if err != nil {
		return nil, err
	}
	var envelope planEnvelope
	if err := json.Unmarshal(envelopeJSON, &envelope); err != nil {
		return nil, fmt.Errorf("liveedit: malformed plan response: %w", err)
	}

	plan := &PlanOutput{
		PlanID:       uuid.NewString(),
		SiteID:       siteID,
		Edits:        envelope.Edits,
		Issues:       envelope.Issues,
		Improvements: envelope.Improvements,
		Rationale:    rationaleSummary(raw.Rationale),
		CreatedAt:    time.Now(),
	}

	m.mu.Lock()
	m.plans[siteID] = plan // supersedes any prior plan for this site
	m.mu.Unlock()

	topic := events.Topic(events.KindLiveEdit, siteID)
	edits := make([]string, len(plan.Edits))
	for i, e := range plan.Edits {
		edits[i] = e.Path
	}
	m.Publisher.Publish(ctx, topic, events.TypePlan, events.PlanPayload{
		PlanID: plan.PlanID, Edits: edits, Rationale: plan.Rationale,
	})

	return plan, nil
}

const auditSystemPromptPrefix = `You are auditing a deployed static site's files for `

var auditFocus = map[string]string{
	"speed":  "performance regressions: oversized assets, render-blocking resources, missing lazy-loading.",
	"bugs":   "functional defects: broken links, malformed markup, missing closing tags, broken script references.",
	"visual": "visual/layout defects: inconsistent spacing, overflow, unreadable contrast, broken responsive breakpoints.",
}

// AuditResult is the oracle's read-only assessment of the workspace,
// with no edits proposed or applied.
type AuditResult struct {
	SiteID       string    `json:"siteId"`
	Type         string    `json:"type"`
	Issues       []string  `json:"issues"`
	Improvements []string  `json:"improvements"`
	Rationale    string    `json:"rationale"`
	CreatedAt    time.Time `json:"createdAt"`
}

// auditEnvelope mirrors planEnvelope but carries no edits: an audit
// only ever reports findings, it never writes to the workspace.
type auditEnvelope struct {
	Issues       []string `json:"issues"`
	Improvements []string `json:"improvements"`
}

// Audit asks the oracle to review every file in the workspace for
// auditType issues (speed, bugs, or visual) without proposing edits.
// It reuses Plan's generic Oracle.Plan envelope rather than widening
// the Oracle interface with an audit-specific method.
func (m *Manager) Audit(ctx context.Context, siteID, auditType string) (*AuditResult, error) {
	focus, ok := auditFocus[auditType]
	if !ok {
		return nil, fmt.Errorf("liveedit: unknown audit type %q", auditType)
	}

	paths, err := m.ListFiles(ctx, siteID)
	if err != nil {
		return nil, err
	}
	files := make(map[string]string, len(paths))
	for _, path := range paths {
		content, err := m.ReadFile(ctx, siteID, path)
		if err != nil {
			return nil, fmt.Errorf("liveedit: read audit file %s: %w", path, err)
		}
		files[path] = content
	}

	userContent, err := json.Marshal(struct {
		Files map[string]string `json:"files"`
	}{Files: files})
	if err != nil {
		return nil, err
	}

	raw, _, err := m.Oracle.Plan(ctx, auditSystemPromptPrefix+focus, string(userContent))
	if err != nil {
		return nil, err
	}

	envelopeJSON, err := json.Marshal(raw.Settings)
	if err != nil {
		return nil, err
	}
	var envelope auditEnvelope
	if err := json.Unmarshal(envelopeJSON, &envelope); err != nil {
		return nil, fmt.Errorf("liveedit: malformed audit response: %w", err)
	}

	return &AuditResult{
		SiteID:       siteID,
		Type:         auditType,
		Issues:       envelope.Issues,
		Improvements: envelope.Improvements,
		Rationale:    rationaleSummary(raw.Rationale),
		CreatedAt:    time.Now(),
	}, nil
}

func rationaleSummary(rationale map[string]string) string {
	parts := make([]string, 0, len(rationale))
	for _, v := range rationale {
		parts = append(parts, v)
	}
	return strings.Join(parts, " ")
}

// ExecuteResult is what applying an approved plan produced.
type ExecuteResult struct {
	Applied    int         `json:"applied"`
	Failures   []EditError `json:"failures"`
	DeployedURL string     `json:"deployedUrl"`
}

// Execute applies the edits from the plan matching planID and deploys
// the result. Returns a ConfigError (HTTP 400) if planID doesn't match
// the site's current plan — either it never existed or a newer Plan
// call superseded it.
func (m *Manager) Execute(ctx context.Context, siteID, planID string) (*ExecuteResult, error) {
	m.mu.RLock()
	plan, ok := m.plans[siteID]
	m.mu.RUnlock()
	if !ok || plan.PlanID != planID {
		return nil, xerrors.New(xerrors.ConfigError, "liveedit", "execute",
			fmt.Sprintf("plan %s not found or superseded", planID), nil)
	}

	applied, failures, err := m.ApplyEdits(ctx, siteID, plan.Edits)
	if err != nil {
		return nil, err
	}

	url, err := m.Deploy(ctx, siteID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.plans[siteID] == plan {
		delete(m.plans, siteID)
	}
	m.mu.Unlock()

	return &ExecuteResult{Applied: applied, Failures: failures, DeployedURL: url}, nil
}
