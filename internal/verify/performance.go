package verify

import "context"

func (s *Suite) runPerformance(ctx context.Context, pages []PageInput, strategy string) ([]PerformanceResult, error) {
	var out []PerformanceResult
	for _, page := range pages {
		result, err := s.Measurer.Measure(ctx, page.EdgeURL, strategy)
		if err != nil {
			out = append(out, PerformanceResult{PageURL: page.EdgeURL})
			continue
		}
		out = append(out, PerformanceResult{
			PageURL:     page.EdgeURL,
			Performance: result.Score,
			TTFB:        result.Vitals.TTFB,
			LoadTimeMs:  result.Vitals.LoadTimeMs,
		})
	}
	return out, nil
}
