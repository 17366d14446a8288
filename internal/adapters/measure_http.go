package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/staticforge/staticforge/internal/xerrors"
)

// HTTPMeasurer calls an external PageSpeed-shaped measurement endpoint
// over plain net/http. No ecosystem client exists for this narrow,
// provider-specific REST shape, so this adapter is one of the few
// pieces of domain logic built directly on the standard library
// (documented in the grounding ledger).
type HTTPMeasurer struct {
	client   *http.Client
	endpoint string
	apiKey   string
	cb       *gobreaker.CircuitBreaker
}

func NewHTTPMeasurer(endpoint, apiKey string) *HTTPMeasurer {
	return &HTTPMeasurer{
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: endpoint,
		apiKey:   apiKey,
		cb:       newBreaker("measure"),
	}
}

type measureResponse struct {
	Score         float64  `json:"score"`
	TTFBMs        float64  `json:"ttfb_ms"`
	LoadTimeMs    float64  `json:"load_time_ms"`
	LCP           float64  `json:"lcp"`
	CLS           float64  `json:"cls"`
	Opportunities []string `json:"opportunities"`
}

func (m *HTTPMeasurer) Measure(ctx context.Context, targetURL string, strategy string) (*MeasureResult, error) {
	return wrapTransient(m.cb, "measure", func() (*MeasureResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint, nil)
		if err != nil {
			return nil, xerrors.New(xerrors.ConfigError, "measure", "build-request", err.Error(), err)
		}
		q := req.URL.Query()
		q.Set("url", targetURL)
		q.Set("strategy", strategy)
		req.URL.RawQuery = q.Encode()
		req.Header.Set("Authorization", "Bearer "+m.apiKey)

		resp, err := m.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("adapters: measurement endpoint returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return nil, xerrors.New(xerrors.ConfigError, "measure", "request", fmt.Sprintf("status %d", resp.StatusCode), nil)
		}

		var parsed measureResponse
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return nil, xerrors.New(xerrors.CorruptArtifact, "measure", "parse-response", err.Error(), err)
		}

		return &MeasureResult{
			Score: parsed.Score,
			Vitals: CoreVitals{
				TTFB:       time.Duration(parsed.TTFBMs) * time.Millisecond,
				LoadTimeMs: int(parsed.LoadTimeMs),
				LCP:        time.Duration(parsed.LCP*1000) * time.Millisecond,
				CLS:        parsed.CLS,
			},
			Opportunities: parsed.Opportunities,
			RawPayload:    raw,
		}, nil
	})
}
