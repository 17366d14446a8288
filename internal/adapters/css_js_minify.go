package adapters

import (
	"context"
	"strings"

	"github.com/tdewolff/minify/v2"
	mcss "github.com/tdewolff/minify/v2/css"
	mjs "github.com/tdewolff/minify/v2/js"

	"github.com/staticforge/staticforge/internal/xerrors"
)

// MinifyCSS implements CSSProcessor. Purge is a simple safelist-aware
// selector scan (no full CSS AST walk) that tree-shakes selectors
// unused against the crawl's combined HTML; Minify delegates to
// tdewolff/minify/v2.
type MinifyCSS struct {
	m *minify.M
}

func NewMinifyCSS() *MinifyCSS {
	m := minify.New()
	m.AddFunc("text/css", mcss.Minify)
	return &MinifyCSS{m: m}
}

func (c *MinifyCSS) Purge(ctx context.Context, css string, htmlDocs []string, safelist []string) (string, error) {
	combined := strings.Join(htmlDocs, "\n")
	keep := make(map[string]bool, len(safelist))
	for _, s := range safelist {
		keep[s] = true
	}

	var out strings.Builder
	for _, rule := range splitRules(css) {
		selector := strings.TrimSpace(strings.SplitN(rule, "{", 2)[0])
		if selectorUsed(selector, combined, keep) {
			out.WriteString(rule)
		}
	}
	return out.String(), nil
}

func (c *MinifyCSS) Minify(ctx context.Context, css string) (string, error) {
	out, err := c.m.String("text/css", css)
	if err != nil {
		return "", xerrors.New(xerrors.DeterministicPhaseFailure, "css", "minify", err.Error(), err)
	}
	return out, nil
}

func splitRules(css string) []string {
	var rules []string
	depth := 0
	start := 0
	for i, r := range css {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				rules = append(rules, css[start:i+1])
				start = i + 1
			}
		}
	}
	return rules
}

func selectorUsed(selector, html string, safelist map[string]bool) bool {
	for _, part := range strings.Split(selector, ",") {
		part = strings.TrimSpace(part)
		class := strings.TrimPrefix(strings.TrimPrefix(part, "."), "#")
		if safelist[class] || strings.Contains(html, class) || !strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// MinifyJS implements JSMinifier via tdewolff/minify/v2.
type MinifyJS struct {
	m *minify.M
}

func NewMinifyJS() *MinifyJS {
	m := minify.New()
	m.AddFunc("application/javascript", mjs.Minify)
	return &MinifyJS{m: m}
}

func (j *MinifyJS) Minify(ctx context.Context, js string) (string, error) {
	out, err := j.m.String("application/javascript", js)
	if err != nil {
		return "", xerrors.New(xerrors.DeterministicPhaseFailure, "js", "minify", err.Error(), err)
	}
	return out, nil
}
