package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/staticforge/staticforge/internal/version"
)

func (s *Server) healthHandler(c *gin.Context) {
	dbErr := s.store.Health(c.Request.Context())
	queueHealth := s.pool.Health(c.Request.Context())

	status := http.StatusOK
	dbStatus := "ok"
	if dbErr != nil {
		status = http.StatusServiceUnavailable
		dbStatus = dbErr.Error()
	}

	c.JSON(status, gin.H{
		"status":  dbStatus,
		"version": version.Full(),
		"queue":   queueHealth,
	})
}
