package verify

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"
)

// runLinks HEADs every link on every page, tolerant of slow or timing
// out external hosts: a timeout or network error just fails that one
// link rather than the whole category.
func (s *Suite) runLinks(ctx context.Context, pages []PageInput) []LinkResult {
	var (
		mu  sync.Mutex
		out []LinkResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for _, page := range pages {
		for _, href := range page.Links {
			page, href := page, href
			g.Go(func() error {
				result := s.checkLink(gctx, page.EdgeURL, href)
				mu.Lock()
				out = append(out, result)
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()
	return out
}

func (s *Suite) checkLink(ctx context.Context, pageURL, href string) LinkResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, href, nil)
	if err != nil {
		return LinkResult{PageURL: pageURL, Href: href, Passed: false}
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return LinkResult{PageURL: pageURL, Href: href, Passed: false}
	}
	defer resp.Body.Close()
	return LinkResult{
		PageURL: pageURL, Href: href, Status: resp.StatusCode,
		Passed: resp.StatusCode > 0 && resp.StatusCode < 400,
	}
}
