package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/staticforge/staticforge/internal/events"
)

func (s *Server) liveEditStatusHandler(c *gin.Context) {
	siteID := c.Param("id")
	files, err := s.liveEdit.ListFiles(c.Request.Context(), siteID)
	if err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fileCount": len(files)})
}

func (s *Server) liveEditFilesHandler(c *gin.Context) {
	siteID := c.Param("id")
	if path := c.Query("path"); path != "" {
		content, err := s.liveEdit.ReadFile(c.Request.Context(), siteID, path)
		if err != nil {
			mapErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"path": path, "content": content})
		return
	}

	files, err := s.liveEdit.ListFiles(c.Request.Context(), siteID)
	if err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

// liveEditChatHandler is the single entry point for the plan/approve/
// execute protocol: "plan" proposes edits from an instruction, "execute"
// applies a previously returned planId and redeploys.
func (s *Server) liveEditChatHandler(c *gin.Context) {
	siteID := c.Param("id")
	var req liveEditChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
		return
	}

	switch req.Action {
	case "plan":
		plan, err := s.liveEdit.Plan(c.Request.Context(), siteID, req.Scope, req.Instruction)
		if err != nil {
			mapErr(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	case "execute":
		if req.PlanID == "" {
			c.JSON(http.StatusBadRequest, errorBody("invalid_request", "planId is required for execute"))
			return
		}
		result, err := s.liveEdit.Execute(c.Request.Context(), siteID, req.PlanID)
		if err != nil {
			mapErr(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (s *Server) liveEditAuditHandler(c *gin.Context) {
	siteID := c.Param("id")
	var req liveEditAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
		return
	}
	result, err := s.liveEdit.Audit(c.Request.Context(), siteID, req.Type)
	if err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) liveEditDeployHandler(c *gin.Context) {
	siteID := c.Param("id")
	url, err := s.liveEdit.Deploy(c.Request.Context(), siteID)
	if err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deployedUrl": url})
}

func (s *Server) liveEditStreamHandler(c *gin.Context) {
	topic := events.Topic(events.KindLiveEdit, c.Param("id"))
	s.streamTopic(c, topic)
}
