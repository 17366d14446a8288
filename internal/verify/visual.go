package verify

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/staticforge/staticforge/internal/adapters"
)

func (s *Suite) runVisual(ctx context.Context, pages []PageInput, viewports []adapters.Viewport) ([]VisualResult, error) {
	var out []VisualResult
	for _, page := range pages {
		for _, vp := range viewports {
			baseline, err := s.Browser.Screenshot(ctx, page.BaselineURL, vp)
			if err != nil {
				out = append(out, VisualResult{PageURL: page.EdgeURL, Viewport: vp, Status: DiffFailed})
				continue
			}
			candidate, err := s.Browser.Screenshot(ctx, page.EdgeURL, vp)
			if err != nil {
				out = append(out, VisualResult{PageURL: page.EdgeURL, Viewport: vp, Status: DiffFailed})
				continue
			}

			percent, pixels, err := comparePNG(baseline, candidate)
			if err != nil {
				out = append(out, VisualResult{PageURL: page.EdgeURL, Viewport: vp, Status: DiffFailed})
				continue
			}
			out = append(out, VisualResult{
				PageURL: page.EdgeURL, Viewport: vp,
				DiffPercent: percent, DiffPixels: pixels,
				Status: classifyDiff(percent),
			})
		}
	}
	return out, nil
}

// comparePNG does a per-pixel RGBA comparison of two screenshots. A
// dimension mismatch is resolved by scaling the candidate onto the
// baseline's bounds with golang.org/x/image/draw before diffing,
// rather than declaring an automatic 100% failure — a scrollbar or
// viewport rounding difference of a few pixels shouldn't drown out a
// real visual regression.
func comparePNG(a, b []byte) (percent float64, diffPixels int64, err error) {
	imgA, err := png.Decode(bytes.NewReader(a))
	if err != nil {
		return 0, 0, err
	}
	imgB, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		return 0, 0, err
	}

	boundsA := imgA.Bounds()
	if imgB.Bounds() != boundsA {
		scaled := image.NewRGBA(boundsA)
		draw.CatmullRom.Scale(scaled, boundsA, imgB, imgB.Bounds(), draw.Over, nil)
		imgB = scaled
	}

	var diff int64
	total := int64(boundsA.Dx()) * int64(boundsA.Dy())
	for y := boundsA.Min.Y; y < boundsA.Max.Y; y++ {
		for x := boundsA.Min.X; x < boundsA.Max.X; x++ {
			if !pixelsClose(imgA.At(x, y), imgB.At(x, y)) {
				diff++
			}
		}
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(diff) / float64(total) * 100, diff, nil
}

// pixelsClose tolerates small per-channel deltas so lossy re-encoding
// (images phase quality settings) doesn't register as a visual diff.
func pixelsClose(a, b color.Color) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	const tolerance = 3 * 257 // ~3/255 per channel, scaled to 16-bit
	return absDiff(ar, br) <= tolerance && absDiff(ag, bg) <= tolerance &&
		absDiff(ab, bb) <= tolerance && absDiff(aa, ba) <= tolerance
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
