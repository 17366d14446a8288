package store

import "time"

// Site is the root ownership boundary: it exclusively owns its Builds,
// AgentRuns, AssetOverrides, SettingsHistory, MeasurementComparisons,
// and Pages, plus the on-disk workspace under {data-root}/sites/{id}.
type Site struct {
	ID              string
	Name            string
	SourceURL       string
	Status          string
	WebhookSecret   string
	LastBuildID     *string
	LastBuildStatus *string
	EdgeURL         *string
	EdgeProvider    *string
	PageCount       int
	TotalBytes      int64
	Settings        []byte // sparse JSON override document
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BuildScope tags a build as a full or a partial rebuild. The pipeline
// runs both scopes the same way; a partial build does not reuse
// unchanged pages' crawl artifacts.
type BuildScope string

const (
	ScopeFull    BuildScope = "full"
	ScopePartial BuildScope = "partial"
)

// TriggeredBy records who/what caused a build to be enqueued.
type TriggeredBy string

const (
	TriggeredByUser     TriggeredBy = "user"
	TriggeredByWebhook  TriggeredBy = "webhook"
	TriggeredBySchedule TriggeredBy = "schedule"
	TriggeredByAgent    TriggeredBy = "agent"
)

// BuildStatus is the state of the build state machine (§ internal/buildsm).
type BuildStatus string

const (
	BuildQueued     BuildStatus = "queued"
	BuildCrawling   BuildStatus = "crawling"
	BuildOptimizing BuildStatus = "optimizing"
	BuildDeploying  BuildStatus = "deploying"
	BuildSuccess    BuildStatus = "success"
	BuildFailed     BuildStatus = "failed"
	BuildCancelled  BuildStatus = "cancelled"
)

// Terminal reports whether s admits no further transitions.
func (s BuildStatus) Terminal() bool {
	switch s {
	case BuildSuccess, BuildFailed, BuildCancelled:
		return true
	default:
		return false
	}
}

// SizeMetrics breaks a build's byte counts down by asset class.
type SizeMetrics struct {
	HTML   int64 `json:"html"`
	CSS    int64 `json:"css"`
	JS     int64 `json:"js"`
	Images int64 `json:"images"`
	Fonts  int64 `json:"fonts"`
}

func (m SizeMetrics) Total() int64 {
	return m.HTML + m.CSS + m.JS + m.Images + m.Fonts
}

// SideEffectCounters tallies content transforms a reader should know
// about: facades substituted for heavy embeds, bloat scripts removed.
type SideEffectCounters struct {
	FacadesApplied int `json:"facadesApplied"`
	ScriptsRemoved int `json:"scriptsRemoved"`
}

// ErrorDetails captures a failed phase/step, its message, and whether
// retrying could succeed.
type ErrorDetails struct {
	Phase     string `json:"phase"`
	Step      string `json:"step"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Build is one end-to-end (or partial) run of the pipeline.
type Build struct {
	ID               string
	SiteID           string
	Scope            BuildScope
	TriggeredBy      TriggeredBy
	Status           BuildStatus
	PagesTotal       int
	PagesProcessed   int
	OriginalSizes    SizeMetrics
	OptimizedSizes   SizeMetrics
	SideEffects      SideEffectCounters
	ScoreBefore      *float64
	ScoreAfter       *float64
	Error            *ErrorDetails
	ResolvedSettings []byte
	Log              []string
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
}

// AgentPhase is where an AgentRun currently sits in its iteration.
type AgentPhase string

const (
	AgentAnalyzing AgentPhase = "analyzing"
	AgentPlanning  AgentPhase = "planning"
	AgentBuilding  AgentPhase = "building"
	AgentVerifying AgentPhase = "verifying"
	AgentReviewing AgentPhase = "reviewing"
	AgentComplete  AgentPhase = "complete"
	AgentFailed    AgentPhase = "failed"
)

func (p AgentPhase) Terminal() bool { return p == AgentComplete || p == AgentFailed }

// AgentRun is a multi-build feedback loop supervised by the LLM oracle.
type AgentRun struct {
	ID              string
	SiteID          string
	Phase           AgentPhase
	Iteration       int
	MaxIterations   int
	PhaseTimings    map[string]time.Duration
	LastError       string
	Checkpoint      []byte // full resumable state, opaque to the store
	CurrentBuildID  *string
	WorkspacePath   *string
	CancelRequested bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AssetOverride applies sparse settings to every asset whose URL
// matches Pattern (glob with * and ** semantics, see internal/settings).
type AssetOverride struct {
	ID         string
	SiteID     string
	Pattern    string
	AssetClass *string
	Settings   []byte
	CreatedAt  time.Time
}

// SettingsHistory is an append-only log of prior sparse-settings values.
type SettingsHistory struct {
	ID        string
	SiteID    string
	Settings  []byte
	Actor     string
	CreatedAt time.Time
}

// MeasurementComparison is one row per measurement run comparing the
// source URL against the deployed edge URL.
type MeasurementComparison struct {
	ID                 string
	SiteID             string
	BuildID            *string
	Strategy           string // mobile | desktop
	ScoreOriginal      float64
	ScoreOptimized     float64
	VitalsOriginal     []byte
	VitalsOptimized    []byte
	ImprovementPercent map[string]float64
	PayloadSavings     int64
	RawOriginal        []byte
	RawOptimized       []byte
	CreatedAt          time.Time
}

// AlertRule and AlertLog are orthogonal to the core pipeline.
type AlertRule struct {
	ID        string
	SiteID    string
	Metric    string
	Threshold float64
	Direction string // above | below
	Enabled   bool
	CreatedAt time.Time
}

type AlertLog struct {
	ID        string
	RuleID    string
	SiteID    string
	Value     float64
	Message   string
	FiredAt   time.Time
}

// Page tracks a per-site, per-path content fingerprint used to decide
// which pages are unchanged since the last crawl (partial rebuilds).
type Page struct {
	SiteID      string
	Path        string
	ContentHash string
	LastCrawled time.Time
}
