package agentloop

import (
	"encoding/json"

	"github.com/staticforge/staticforge/internal/settings"
	"github.com/staticforge/staticforge/internal/verify"
)

// iterationRecord is one completed iteration's summary, kept in the
// checkpoint so the Review call can send the full iteration history
// back to the oracle without re-deriving it from separate rows.
type iterationRecord struct {
	Iteration     int               `json:"iteration"`
	Settings      settings.Document `json:"settings"`
	BuildID       string            `json:"buildId"`
	ScoreBefore   float64           `json:"scoreBefore"`
	ScoreAfter    float64           `json:"scoreAfter"`
	ReportSummary reportSummary     `json:"reportSummary"`
	Verdict       string            `json:"verdict"`
	Reasoning     string            `json:"reasoning"`
}

// reportSummary is a compact, oracle-friendly projection of a full
// verify.Report — counts rather than every per-page result, since the
// full report can be large and the oracle only needs the shape of the
// failure, not every pixel count.
type reportSummary struct {
	VisualFailed      int `json:"visualFailed"`
	VisualNeedsReview int `json:"visualNeedsReview"`
	FunctionalFailed  int `json:"functionalFailed"`
	LinksFailed       int `json:"linksFailed"`
	AvgPerformance    float64 `json:"avgPerformance"`
}

func summarizeReport(r *verify.Report) reportSummary {
	var s reportSummary
	for _, v := range r.Visual {
		switch v.Status {
		case verify.DiffFailed:
			s.VisualFailed++
		case verify.DiffNeedsReview:
			s.VisualNeedsReview++
		}
	}
	for _, f := range r.Functional {
		if !f.Passed {
			s.FunctionalFailed++
		}
	}
	for _, l := range r.Links {
		if !l.Passed {
			s.LinksFailed++
		}
	}
	if len(r.Performance) > 0 {
		var total float64
		for _, p := range r.Performance {
			total += p.Performance
		}
		s.AvgPerformance = total / float64(len(r.Performance))
	}
	return s
}

// checkpoint is the full resumable state an AgentRun persists every
// iteration — the single source of truth for resume, not any
// in-memory state the runner goroutine happens to hold.
type checkpoint struct {
	CurrentSettings settings.Document  `json:"currentSettings"`
	History         []iterationRecord  `json:"history"`
	SiteInventory   json.RawMessage    `json:"siteInventory,omitempty"`
}

func (c *checkpoint) encode() []byte {
	raw, err := json.Marshal(c)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

func decodeCheckpoint(raw []byte) *checkpoint {
	var c checkpoint
	if len(raw) == 0 {
		return &checkpoint{CurrentSettings: settings.Document{}}
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return &checkpoint{CurrentSettings: settings.Document{}}
	}
	if c.CurrentSettings == nil {
		c.CurrentSettings = settings.Document{}
	}
	return &c
}
