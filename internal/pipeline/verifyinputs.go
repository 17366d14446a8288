package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/staticforge/staticforge/internal/verify"
)

// LoadPageInputs reconstructs verify.PageInput values from a build's
// persisted crawl workspace, so the agent loop's Verify step can run
// the verification suite against a resumed or just-completed build
// without re-crawling the source site.
func LoadPageInputs(dataRoot, buildID, deployURL string) ([]verify.PageInput, error) {
	crawlDir := filepath.Join(dataRoot, "builds", buildID, "crawl")
	entries, err := os.ReadDir(crawlDir)
	if err != nil {
		return nil, err
	}

	slugs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			slugs = append(slugs, entry.Name())
		}
	}
	sort.Strings(slugs)

	inputs := make([]verify.PageInput, 0, len(slugs))
	for _, slug := range slugs {
		raw, err := os.ReadFile(filepath.Join(crawlDir, slug, "manifest.json"))
		if err != nil {
			continue
		}
		var m pageManifest
		if err := json.Unmarshal(raw, &m); err != nil {
			continue
		}
		inputs = append(inputs, verify.PageInput{
			EdgeURL:     deployURL + "/pages/" + slug + "/index.html",
			BaselineURL: m.URL,
			Interactive: m.Interactive,
			Links:       m.Links,
		})
	}
	return inputs, nil
}
