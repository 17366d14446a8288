// Package buildsm holds the build status transition diagram.
// internal/pipeline validates its transitions against it before writing
// builds.status; the retry and cancel-stale HTTP handlers write the
// status through store.ResetBuildForRetry and store.CancelStaleBuilds
// without calling Validate.
package buildsm

import (
	"fmt"

	"github.com/staticforge/staticforge/internal/store"
)

var transitions = map[store.BuildStatus][]store.BuildStatus{
	store.BuildQueued:     {store.BuildCrawling, store.BuildCancelled},
	store.BuildCrawling:   {store.BuildOptimizing, store.BuildFailed, store.BuildCancelled},
	store.BuildOptimizing: {store.BuildDeploying, store.BuildFailed, store.BuildCancelled},
	store.BuildDeploying:  {store.BuildSuccess, store.BuildFailed, store.BuildCancelled},
	// retry-in-place: failed -> crawling keeps the same build id; no
	// check is made on whether the source URL or scope changed.
	store.BuildFailed: {store.BuildCrawling},
}

// Validate reports whether from->to is a legal edge in the diagram.
func Validate(from, to store.BuildStatus) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("buildsm: illegal transition %s -> %s", from, to)
}

// DisplayPhase maps the internal per-phase pipeline step (crawl,
// images, css, js, html, fonts, deploy, measure) to the umbrella
// client-facing status: phases 2-6 all show as "optimizing".
func DisplayPhase(internalPhase string) store.BuildStatus {
	switch internalPhase {
	case "crawl":
		return store.BuildCrawling
	case "images", "css", "js", "html", "fonts":
		return store.BuildOptimizing
	case "deploy", "measure":
		return store.BuildDeploying
	default:
		return store.BuildQueued
	}
}
