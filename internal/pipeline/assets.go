package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// fetchAsset retrieves one crawled asset URL over plain HTTP. Every
// optimization phase needs this same fetch, so it lives here rather
// than duplicated per phase.
func fetchAsset(ctx context.Context, client *http.Client, assetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pipeline: fetch %s: status %d", assetURL, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
