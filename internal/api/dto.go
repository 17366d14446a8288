package api

// createSiteRequest is the body of POST /sites.
type createSiteRequest struct {
	Name      string `json:"name" binding:"required"`
	SourceURL string `json:"sourceUrl" binding:"required,url"`
}

// createSiteResponse echoes the generated webhook secret exactly once,
// at creation time — it is never returned by any other endpoint.
type createSiteResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	SourceURL     string `json:"sourceUrl"`
	WebhookSecret string `json:"webhookSecret"`
	CreatedAt     string `json:"createdAt"`
}

// enqueueBuildRequest is the body of POST /sites/:id/builds.
type enqueueBuildRequest struct {
	Scope string `json:"scope" binding:"omitempty,oneof=full partial"`
}

type putSettingsRequest struct {
	Settings map[string]any `json:"settings"`
}

type createOverrideRequest struct {
	Pattern    string         `json:"pattern" binding:"required"`
	AssetClass *string        `json:"assetClass"`
	Settings   map[string]any `json:"settings" binding:"required"`
}

type updateOverrideRequest struct {
	AssetClass *string        `json:"assetClass"`
	Settings   map[string]any `json:"settings" binding:"required"`
}

type startAgentRequest struct {
	MaxIterations int `json:"maxIterations" binding:"omitempty,min=1"`
}

type liveEditChatRequest struct {
	// Action selects which half of the plan/approve/execute protocol
	// this call performs: "plan" proposes edits, "execute" applies a
	// previously proposed plan by id.
	Action      string   `json:"action" binding:"required,oneof=plan execute"`
	Scope       []string `json:"scope"`
	Instruction string   `json:"instruction"`
	PlanID      string   `json:"planId"`
}

type liveEditAuditRequest struct {
	Type string `json:"type" binding:"required,oneof=speed bugs visual"`
}

type webhookRequest struct {
	SiteID string `json:"siteId" binding:"required"`
	Nonce  string `json:"nonce" binding:"required"`
}
