package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentClone(t *testing.T) {
	original := Document{"crawl": map[string]any{"maxPages": float64(50)}}
	clone := original.Clone()

	clone["crawl"].(map[string]any)["maxPages"] = float64(100)

	assert.Equal(t, float64(50), original["crawl"].(map[string]any)["maxPages"])
	assert.Equal(t, float64(100), clone["crawl"].(map[string]any)["maxPages"])
}

func TestDocumentCloneNil(t *testing.T) {
	var d Document
	assert.Equal(t, Document{}, d.Clone())
}

func TestParseDocumentEmptyInputIsEmptyDocument(t *testing.T) {
	doc, err := ParseDocument(nil)
	require.NoError(t, err)
	assert.Equal(t, Document{}, doc)

	doc, err = ParseDocument([]byte{})
	require.NoError(t, err)
	assert.Equal(t, Document{}, doc)
}

func TestParseDocumentInvalidJSON(t *testing.T) {
	_, err := ParseDocument([]byte(`{not json`))
	assert.Error(t, err)
}

func TestMergeRecursesIntoNestedObjects(t *testing.T) {
	base := Document{
		"crawl": map[string]any{"maxPages": float64(50), "respectRobots": true},
		"css":   map[string]any{"minify": true},
	}
	override := Document{
		"crawl": map[string]any{"maxPages": float64(200)},
	}

	merged := Merge(base, override)

	crawl := merged["crawl"].(map[string]any)
	assert.Equal(t, float64(200), crawl["maxPages"])
	assert.Equal(t, true, crawl["respectRobots"])
	assert.Equal(t, map[string]any{"minify": true}, merged["css"])
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := Document{"crawl": map[string]any{"maxPages": float64(50)}}
	override := Document{"crawl": map[string]any{"maxPages": float64(999)}}

	Merge(base, override)

	assert.Equal(t, float64(50), base["crawl"].(map[string]any)["maxPages"])
	assert.Equal(t, float64(999), override["crawl"].(map[string]any)["maxPages"])
}

func TestMergeArraysAndPrimitivesReplaceWholesale(t *testing.T) {
	base := Document{"fonts": map[string]any{"subset": []any{"latin"}}}
	override := Document{"fonts": map[string]any{"subset": []any{"latin", "cyrillic"}}}

	merged := Merge(base, override)

	assert.Equal(t, []any{"latin", "cyrillic"}, merged["fonts"].(map[string]any)["subset"])
}

func TestMergeAddsNewKeys(t *testing.T) {
	base := Document{}
	override := Document{"deploy": map[string]any{"strategy": "atomic"}}

	merged := Merge(base, override)

	assert.Equal(t, map[string]any{"strategy": "atomic"}, merged["deploy"])
}

func TestDiffRoundTripsAgainstOverride(t *testing.T) {
	base := Document{
		"crawl": map[string]any{"maxPages": float64(50), "respectRobots": true},
	}
	override := Document{
		"crawl": map[string]any{"maxPages": float64(200)},
	}

	resolved := Merge(base, override)
	diff := Diff(base, resolved)

	crawlDiff, ok := diff["crawl"].(Document)
	require.True(t, ok)
	assert.Equal(t, Document{"maxPages": true}, crawlDiff)
}

func TestDiffOmitsUnchangedLeaves(t *testing.T) {
	base := Document{"css": map[string]any{"minify": true}}
	override := Document{"css": map[string]any{"minify": true}}

	diff := Diff(base, override)

	assert.Empty(t, diff)
}

func TestDiffFlagsKeyAbsentFromBase(t *testing.T) {
	base := Document{}
	override := Document{"js": map[string]any{"bundle": true}}

	diff := Diff(base, override)

	jsDiff, ok := diff["js"].(Document)
	require.True(t, ok)
	assert.Equal(t, Document{"bundle": true}, jsDiff)
}
