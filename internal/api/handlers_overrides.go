package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/staticforge/staticforge/internal/store"
)

func (s *Server) listOverridesHandler(c *gin.Context) {
	overrides, err := s.store.ListAssetOverrides(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overrides": overrides})
}

func (s *Server) createOverrideHandler(c *gin.Context) {
	var req createOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
		return
	}
	override := &store.AssetOverride{
		ID:         uuid.NewString(),
		SiteID:     c.Param("id"),
		Pattern:    req.Pattern,
		AssetClass: req.AssetClass,
		Settings:   mustJSONBody(req.Settings),
	}
	if err := s.store.UpsertAssetOverride(c.Request.Context(), override); err != nil {
		mapErr(c, err)
		return
	}
	s.resolver.Invalidate(c.Param("id"))
	c.JSON(http.StatusCreated, override)
}

func (s *Server) updateOverrideHandler(c *gin.Context) {
	var req updateOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
		return
	}
	overrides, err := s.store.ListAssetOverrides(c.Request.Context(), c.Param("id"))
	if err != nil {
		mapErr(c, err)
		return
	}
	oid := c.Param("oid")
	var existing *store.AssetOverride
	for _, o := range overrides {
		if o.ID == oid {
			existing = o
			break
		}
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, errorBody("not_found", "override not found"))
		return
	}

	existing.AssetClass = req.AssetClass
	existing.Settings = mustJSONBody(req.Settings)
	if err := s.store.UpsertAssetOverride(c.Request.Context(), existing); err != nil {
		mapErr(c, err)
		return
	}
	s.resolver.Invalidate(c.Param("id"))
	c.JSON(http.StatusOK, existing)
}

func (s *Server) deleteOverrideHandler(c *gin.Context) {
	if err := s.store.DeleteAssetOverride(c.Request.Context(), c.Param("id"), c.Param("oid")); err != nil {
		mapErr(c, err)
		return
	}
	s.resolver.Invalidate(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func mustJSONBody(v map[string]any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
