package pipeline

import (
	"context"
	"fmt"
)

// runDeploy uploads the optimized directory tree to the configured
// edge provider and records the resulting public URL on pc for the
// final site/build update.
func runDeploy(ctx context.Context, pc *phaseCtx) error {
	projectName := fmt.Sprintf("mls-%s", pc.site.ID)
	result, err := pc.engine.Deployer.Deploy(ctx, projectName, pc.outDir, pc.site.SourceURL)
	if err != nil {
		return err
	}
	pc.deployURL = result.URL
	return nil
}
