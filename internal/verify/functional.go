package verify

import "context"

func (s *Suite) runFunctional(ctx context.Context, pages []PageInput) ([]FunctionalResult, error) {
	var out []FunctionalResult
	for _, page := range pages {
		for _, el := range page.Interactive {
			states, err := s.Browser.ReplayInteraction(ctx, page.EdgeURL, el)
			if err != nil {
				out = append(out, FunctionalResult{PageURL: page.EdgeURL, Selector: el.Selector, Passed: false, FailureReason: err.Error()})
				continue
			}
			if len(states) < 2 {
				out = append(out, FunctionalResult{PageURL: page.EdgeURL, Selector: el.Selector, Passed: false, FailureReason: "element not found"})
				continue
			}
			before, after := states[0].Snapshot, states[1].Snapshot
			if before == after {
				out = append(out, FunctionalResult{
					PageURL: page.EdgeURL, Selector: el.Selector, Passed: false,
					FailureReason: "no DOM change observed after " + el.Action,
				})
				continue
			}
			out = append(out, FunctionalResult{PageURL: page.EdgeURL, Selector: el.Selector, Passed: true})
		}
	}
	return out, nil
}
