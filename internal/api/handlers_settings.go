package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/staticforge/staticforge/internal/settings"
)

func (s *Server) getSettingsHandler(c *gin.Context) {
	doc, err := s.resolver.ResolveSite(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": doc})
}

func (s *Server) putSettingsHandler(c *gin.Context) {
	var req putSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
		return
	}
	actor := actorFromRequest(c)
	if err := s.resolver.Update(c.Request.Context(), c.Param("id"), actor, settings.Document(req.Settings)); err != nil {
		mapErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) resetSettingsHandler(c *gin.Context) {
	actor := actorFromRequest(c)
	if err := s.resolver.Reset(c.Request.Context(), c.Param("id"), actor); err != nil {
		mapErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) settingsDiffHandler(c *gin.Context) {
	diff, err := s.resolver.Diff(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"diff": diff})
}

func (s *Server) listSettingsHistoryHandler(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	history, err := s.store.ListSettingsHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

func (s *Server) rollbackSettingsHandler(c *gin.Context) {
	actor := actorFromRequest(c)
	if err := s.resolver.Rollback(c.Request.Context(), c.Param("id"), actor, c.Param("histId")); err != nil {
		mapErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// actorFromRequest names who made a settings change for the audit
// trail; the master-key-authenticated caller has no finer identity, so
// "api" stands in for it.
func actorFromRequest(c *gin.Context) string {
	if actor := c.GetHeader("X-Actor"); actor != "" {
		return actor
	}
	return "api"
}
