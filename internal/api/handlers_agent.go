package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/staticforge/staticforge/internal/events"
	"github.com/staticforge/staticforge/internal/queue"
	"github.com/staticforge/staticforge/internal/store"
)

func (s *Server) startAgentHandler(c *gin.Context) {
	siteID := c.Param("id")
	var req startAgentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
			return
		}
	}
	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 10
	}

	run := &store.AgentRun{
		ID:            uuid.NewString(),
		SiteID:        siteID,
		Phase:         store.AgentAnalyzing,
		MaxIterations: maxIterations,
		CreatedAt:     time.Now(),
	}
	if err := queue.EnqueueAgentRun(c.Request.Context(), s.store, run); err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, run)
}

func (s *Server) agentStatusHandler(c *gin.Context) {
	run, err := s.store.GetLatestAgentRunForSite(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// resumeAgentHandler restarts a failed run at the build step: builds
// always create a fresh build id, so re-attempting that step is
// idempotent-safe regardless of how far the prior attempt got.
func (s *Server) resumeAgentHandler(c *gin.Context) {
	siteID := c.Param("id")
	run, err := s.store.GetLatestAgentRunForSite(c.Request.Context(), siteID)
	if err != nil {
		mapErr(c, err)
		return
	}
	if run.Phase != store.AgentFailed {
		c.JSON(http.StatusConflict, errorBody("conflict", "only a failed run can be resumed"))
		return
	}
	if run.WorkspacePath == nil {
		c.JSON(http.StatusConflict, errorBody("conflict", "run has no resumable workspace"))
		return
	}

	if err := s.store.ClearAgentRunCancel(c.Request.Context(), run.ID); err != nil {
		mapErr(c, err)
		return
	}
	if err := s.store.UpdateAgentRunPhase(c.Request.Context(), run.ID, store.AgentBuilding, run.Iteration, run.Checkpoint, nil); err != nil {
		mapErr(c, err)
		return
	}
	if err := s.store.RequeueJob(c.Request.Context(), run.ID, 1); err != nil {
		mapErr(c, err)
		return
	}

	refreshed, err := s.store.GetAgentRun(c.Request.Context(), run.ID)
	if err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, refreshed)
}

func (s *Server) stopAgentHandler(c *gin.Context) {
	siteID := c.Param("id")
	run, err := s.store.GetActiveAgentRunForSite(c.Request.Context(), siteID)
	if err != nil {
		mapErr(c, err)
		return
	}
	if err := s.store.RequestAgentRunCancel(c.Request.Context(), run.ID); err != nil {
		mapErr(c, err)
		return
	}
	s.pool.Cancel(run.ID) // best-effort: wakes an in-flight phase immediately instead of waiting for its next poll
	c.Status(http.StatusAccepted)
}

func (s *Server) agentStreamHandler(c *gin.Context) {
	topic := events.Topic(events.KindAgent, c.Param("id"))
	s.streamTopic(c, topic)
}
