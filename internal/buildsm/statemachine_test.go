package buildsm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/staticforge/staticforge/internal/store"
)

func TestValidateLegalEdges(t *testing.T) {
	tests := []struct {
		name string
		from store.BuildStatus
		to   store.BuildStatus
	}{
		{"queued to crawling", store.BuildQueued, store.BuildCrawling},
		{"queued to cancelled", store.BuildQueued, store.BuildCancelled},
		{"crawling to optimizing", store.BuildCrawling, store.BuildOptimizing},
		{"crawling to failed", store.BuildCrawling, store.BuildFailed},
		{"optimizing to deploying", store.BuildOptimizing, store.BuildDeploying},
		{"deploying to success", store.BuildDeploying, store.BuildSuccess},
		{"deploying to failed", store.BuildDeploying, store.BuildFailed},
		{"failed resumes at crawling", store.BuildFailed, store.BuildCrawling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, Validate(tt.from, tt.to))
		})
	}
}

func TestValidateIllegalEdges(t *testing.T) {
	tests := []struct {
		name string
		from store.BuildStatus
		to   store.BuildStatus
	}{
		{"queued cannot jump to deploying", store.BuildQueued, store.BuildDeploying},
		{"success is terminal", store.BuildSuccess, store.BuildCrawling},
		{"cancelled is terminal", store.BuildCancelled, store.BuildCrawling},
		{"failed cannot skip to optimizing", store.BuildFailed, store.BuildOptimizing},
		{"failed cannot go straight to success", store.BuildFailed, store.BuildSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Validate(tt.from, tt.to))
		})
	}
}

func TestDisplayPhase(t *testing.T) {
	tests := []struct {
		phase string
		want  store.BuildStatus
	}{
		{"crawl", store.BuildCrawling},
		{"images", store.BuildOptimizing},
		{"css", store.BuildOptimizing},
		{"js", store.BuildOptimizing},
		{"html", store.BuildOptimizing},
		{"fonts", store.BuildOptimizing},
		{"deploy", store.BuildDeploying},
		{"measure", store.BuildDeploying},
		{"unknown", store.BuildQueued},
		{"", store.BuildQueued},
	}

	for _, tt := range tests {
		t.Run(tt.phase, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayPhase(tt.phase))
		})
	}
}
