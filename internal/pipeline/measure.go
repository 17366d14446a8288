package pipeline

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/staticforge/staticforge/internal/store"
)

// runMeasure calls the Measurer against both the original source URL
// and the freshly deployed edge URL, for every configured strategy,
// and persists a MeasurementComparison row per strategy so the
// dashboard can show before/after deltas without recomputing them.
func runMeasure(ctx context.Context, pc *phaseCtx) error {
	if pc.deployURL == "" {
		return nil
	}

	for _, strategy := range pc.resolved.Measure.Strategies {
		before, err := pc.engine.Measurer.Measure(ctx, pc.site.SourceURL, strategy)
		if err != nil {
			return err
		}
		after, err := pc.engine.Measurer.Measure(ctx, pc.deployURL, strategy)
		if err != nil {
			return err
		}

		if pc.scoreBefore == nil {
			b, a := before.Score, after.Score
			pc.scoreBefore, pc.scoreAfter = &b, &a
		}

		improvement := map[string]float64{
			"score":      percentDelta(before.Score, after.Score),
			"loadTimeMs": percentDelta(float64(before.Vitals.LoadTimeMs), float64(after.Vitals.LoadTimeMs)),
		}

		comparison := &store.MeasurementComparison{
			ID:                 uuid.NewString(),
			SiteID:             pc.site.ID,
			BuildID:            &pc.build.ID,
			Strategy:           strategy,
			ScoreOriginal:      before.Score,
			ScoreOptimized:     after.Score,
			VitalsOriginal:     mustMarshalVitals(before.Vitals),
			VitalsOptimized:    mustMarshalVitals(after.Vitals),
			ImprovementPercent: improvement,
			PayloadSavings:     pc.originalSizes.Total() - pc.optimizedSizes.Total(),
			RawOriginal:        before.RawPayload,
			RawOptimized:       after.RawPayload,
		}
		if err := pc.engine.Store.InsertMeasurementComparison(ctx, comparison); err != nil {
			return err
		}
	}
	return nil
}

func percentDelta(before, after float64) float64 {
	if before == 0 {
		return 0
	}
	return (after - before) / before * 100
}

func mustMarshalVitals(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return raw
}
