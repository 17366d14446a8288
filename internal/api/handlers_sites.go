package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/staticforge/staticforge/internal/store"
)

func (s *Server) createSiteHandler(c *gin.Context) {
	var req createSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
		return
	}

	secret, err := generateWebhookSecret()
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("internal_error", err.Error()))
		return
	}

	site := &store.Site{
		ID:            uuid.NewString(),
		Name:          req.Name,
		SourceURL:     req.SourceURL,
		WebhookSecret: secret,
	}
	if err := s.store.CreateSite(c.Request.Context(), site); err != nil {
		mapErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, createSiteResponse{
		ID:            site.ID,
		Name:          site.Name,
		SourceURL:     site.SourceURL,
		WebhookSecret: secret,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	})
}

func generateWebhookSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (s *Server) getSiteHandler(c *gin.Context) {
	site, err := s.store.GetSite(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusOK, site)
}

// siteStatusHandler is the consolidated view a dashboard polls: the
// site row plus its active agent run, if any.
func (s *Server) siteStatusHandler(c *gin.Context) {
	siteID := c.Param("id")
	site, err := s.store.GetSite(c.Request.Context(), siteID)
	if err != nil {
		mapErr(c, err)
		return
	}

	active, err := s.store.GetActiveAgentRunForSite(c.Request.Context(), siteID)
	if err != nil && !isNotFound(err) {
		mapErr(c, err)
		return
	}

	resp := gin.H{"site": site}
	if active != nil {
		resp["activeAgentRun"] = active
	}
	c.JSON(http.StatusOK, resp)
}
