// Package api provides the bearer-token authenticated HTTP surface:
// sites, builds, settings, asset overrides, the AI agent loop, the
// live-edit workspace, the inbound webhook, and liveness.
//
// A thin Server struct wraps the router, with one setupRoutes call
// registering the full route table up front. Every dependency is a
// constructor argument rather than a post-construction setter, since
// there's no multi-service phased rollout here to justify deferring
// any of the wiring.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/staticforge/staticforge/internal/config"
	"github.com/staticforge/staticforge/internal/events"
	"github.com/staticforge/staticforge/internal/liveedit"
	"github.com/staticforge/staticforge/internal/queue"
	"github.com/staticforge/staticforge/internal/settings"
	"github.com/staticforge/staticforge/internal/store"
)

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	cfg       *config.Config
	store     *store.Store
	resolver  *settings.Resolver
	bus       *events.Bus
	publisher *events.Publisher
	pool      *queue.Pool
	liveEdit  *liveedit.Manager
}

// NewServer wires every dependency and registers the full route table.
func NewServer(cfg *config.Config, st *store.Store, resolver *settings.Resolver, bus *events.Bus, pub *events.Publisher, pool *queue.Pool, le *liveedit.Manager) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), securityHeaders())

	s := &Server{
		router:    r,
		cfg:       cfg,
		store:     st,
		resolver:  resolver,
		bus:       bus,
		publisher: pub,
		pool:      pool,
		liveEdit:  le,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.POST("/webhooks/wordpress", s.webhookHandler)

	auth := s.router.Group("/sites", bearerAuth(s.cfg.MasterAPIKey))
	{
		auth.POST("", s.createSiteHandler)
		auth.GET("/:id", s.getSiteHandler)
		auth.GET("/:id/status", s.siteStatusHandler)

		auth.POST("/:id/builds", s.enqueueBuildHandler)
		auth.GET("/:id/builds", s.listBuildsHandler)
		auth.GET("/:id/builds/:buildId", s.getBuildHandler)
		auth.POST("/:id/builds/cancel-stale", s.cancelStaleBuildsHandler)
		auth.POST("/:id/builds/:buildId/retry", s.retryBuildHandler)

		auth.GET("/:id/settings", s.getSettingsHandler)
		auth.PUT("/:id/settings", s.putSettingsHandler)
		auth.GET("/:id/settings/diff", s.settingsDiffHandler)
		auth.POST("/:id/settings/reset", s.resetSettingsHandler)
		auth.GET("/:id/settings/history", s.listSettingsHistoryHandler)
		auth.POST("/:id/settings/history/rollback/:histId", s.rollbackSettingsHandler)

		auth.GET("/:id/asset-overrides", s.listOverridesHandler)
		auth.POST("/:id/asset-overrides", s.createOverrideHandler)
		auth.PUT("/:id/asset-overrides/:oid", s.updateOverrideHandler)
		auth.DELETE("/:id/asset-overrides/:oid", s.deleteOverrideHandler)

		auth.POST("/:id/ai/optimize", s.startAgentHandler)
		auth.GET("/:id/ai/status", s.agentStatusHandler)
		auth.POST("/:id/ai/resume", s.resumeAgentHandler)
		auth.POST("/:id/ai/stop", s.stopAgentHandler)
		auth.GET("/:id/ai/stream", s.agentStreamHandler)

		auth.GET("/:id/live-edit/status", s.liveEditStatusHandler)
		auth.GET("/:id/live-edit/files", s.liveEditFilesHandler)
		auth.POST("/:id/live-edit/chat", s.liveEditChatHandler)
		auth.POST("/:id/live-edit/audit", s.liveEditAuditHandler)
		auth.POST("/:id/live-edit/deploy", s.liveEditDeployHandler)
		auth.GET("/:id/live-edit/stream", s.liveEditStreamHandler)
	}
}

// Start runs the HTTP server, blocking until it exits or ctx is
// cancelled, in which case it shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
