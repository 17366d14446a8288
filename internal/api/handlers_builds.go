package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/staticforge/staticforge/internal/buildsm"
	"github.com/staticforge/staticforge/internal/queue"
	"github.com/staticforge/staticforge/internal/store"
)

func (s *Server) enqueueBuildHandler(c *gin.Context) {
	siteID := c.Param("id")
	var req enqueueBuildRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody("invalid_request", err.Error()))
			return
		}
	}
	scope := store.ScopeFull
	if req.Scope == string(store.ScopePartial) {
		scope = store.ScopePartial
	}

	resolved, err := s.resolver.ResolveBuild(c.Request.Context(), siteID)
	if err != nil {
		mapErr(c, err)
		return
	}
	resolvedJSON, err := json.Marshal(resolved)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorBody("internal_error", err.Error()))
		return
	}

	build := &store.Build{
		ID:               uuid.NewString(),
		SiteID:           siteID,
		Scope:            scope,
		TriggeredBy:      store.TriggeredByUser,
		Status:           store.BuildQueued,
		ResolvedSettings: resolvedJSON,
		CreatedAt:        time.Now(),
	}
	if err := queue.EnqueueBuild(c.Request.Context(), s.store, build); err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, build)
}

func (s *Server) listBuildsHandler(c *gin.Context) {
	siteID := c.Param("id")
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	builds, err := s.store.ListBuilds(c.Request.Context(), siteID, limit, offset)
	if err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"builds": builds})
}

func (s *Server) getBuildHandler(c *gin.Context) {
	build, err := s.store.GetBuild(c.Request.Context(), c.Param("buildId"))
	if err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusOK, build)
}

func (s *Server) cancelStaleBuildsHandler(c *gin.Context) {
	n, err := queue.CancelStale(c.Request.Context(), s.store, c.Param("id"))
	if err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": n})
}

// retryBuildHandler re-enters a failed build at the phase it failed at,
// per the retry-in-place contract buildsm.DisplayPhase/ResetBuildForRetry
// implement. It does not check whether the site's source URL or scope
// changed since the failed run.
func (s *Server) retryBuildHandler(c *gin.Context) {
	buildID := c.Param("buildId")
	build, err := s.store.GetBuild(c.Request.Context(), buildID)
	if err != nil {
		mapErr(c, err)
		return
	}
	if build.Status != store.BuildFailed {
		c.JSON(http.StatusConflict, errorBody("conflict", "only a failed build can be retried"))
		return
	}

	target := store.BuildCrawling
	if build.Error != nil {
		target = buildsm.DisplayPhase(build.Error.Phase)
	}

	if err := s.store.ResetBuildForRetry(c.Request.Context(), buildID, target); err != nil {
		mapErr(c, err)
		return
	}
	if err := s.store.RequeueJob(c.Request.Context(), buildID, 1); err != nil {
		mapErr(c, err)
		return
	}

	refreshed, err := s.store.GetBuild(c.Request.Context(), buildID)
	if err != nil {
		mapErr(c, err)
		return
	}
	c.JSON(http.StatusAccepted, refreshed)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
