// Package cleanup runs the background artifact-retention sweep: for
// every site, on-disk build artifact directories beyond the most
// recent N successful builds are deleted. Build history rows in the
// store are never touched — only {data-root}/builds/{buildId} trees.
package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"

	"github.com/staticforge/staticforge/internal/store"
)

const defaultRetainBuilds = 10

// Sweeper owns the cron schedule and the retention policy.
type Sweeper struct {
	Store    *store.Store
	DataRoot string
	Retain   int // keep this many most-recent successful builds per site

	cron *cron.Cron
	log  *slog.Logger
}

func New(st *store.Store, dataRoot string, retain int) *Sweeper {
	if retain <= 0 {
		retain = defaultRetainBuilds
	}
	return &Sweeper{Store: st, DataRoot: dataRoot, Retain: retain, log: slog.With("component", "cleanup")}
}

// Start schedules the sweep to run hourly and returns immediately;
// call Stop to drain the running job on shutdown.
func (s *Sweeper) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc("@hourly", func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.log.Error("sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop waits for any in-flight run to finish before returning.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunOnce sweeps every site once, synchronously. Exported so a manual
// admin trigger or a test can invoke the same logic Start() schedules.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	sites, err := s.Store.ListSites(ctx)
	if err != nil {
		return err
	}
	for _, site := range sites {
		if err := s.sweepSite(ctx, site.ID); err != nil {
			s.log.Warn("site sweep failed", "site", site.ID, "error", err)
		}
	}
	return nil
}

func (s *Sweeper) sweepSite(ctx context.Context, siteID string) error {
	builds, err := s.Store.ListBuilds(ctx, siteID, 1000, 0)
	if err != nil {
		return err
	}

	var successful []*store.Build
	for _, b := range builds {
		if b.Status == store.BuildSuccess {
			successful = append(successful, b)
		}
	}
	if len(successful) <= s.Retain {
		return nil
	}

	// ListBuilds returns newest first, so everything past s.Retain in
	// the successful slice is old enough to prune.
	for _, b := range successful[s.Retain:] {
		dir := filepath.Join(s.DataRoot, "builds", b.ID)
		if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
			s.log.Warn("prune build artifacts failed", "build", b.ID, "error", err)
			continue
		}
	}
	return nil
}
