package api

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/staticforge/staticforge/internal/queue"
	"github.com/staticforge/staticforge/internal/store"
)

// webhookHandler ingests a content-change notification from a site's
// origin (WordPress publish hook, per SPEC_FULL.md's domain stack) and
// enqueues a partial-scope build. Unlike every other route this one is not
// bearer-authenticated — the site's own webhookSecret, checked via
// HMAC over the raw body, is the credential.
func (s *Server) webhookHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", "unreadable body"))
		return
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(body))

	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
		return
	}

	site, err := s.store.GetSite(c.Request.Context(), req.SiteID)
	if err != nil {
		mapErr(c, err)
		return
	}

	signature := c.GetHeader("X-Webhook-Signature")
	if signature == "" || !verifyWebhookSignature(site.WebhookSecret, body, signature) {
		c.JSON(http.StatusUnauthorized, errorBody("unauthorized", "invalid webhook signature"))
		return
	}

	if err := s.store.RecordWebhookNonce(c.Request.Context(), site.ID, req.Nonce); err != nil {
		c.JSON(http.StatusConflict, errorBody("replay_detected", "webhook nonce already seen"))
		return
	}

	build := &store.Build{
		ID:          uuid.NewString(),
		SiteID:      site.ID,
		Scope:       store.ScopePartial,
		TriggeredBy: store.TriggeredByWebhook,
		Status:      store.BuildQueued,
		CreatedAt:   time.Now(),
	}
	if err := queue.EnqueueBuild(c.Request.Context(), s.store, build); err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, build)
}
