package adapters

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/staticforge/staticforge/internal/xerrors"
)

// ImagingCodec implements ImageCodec for the bitmap formats
// disintegration/imaging understands (jpeg/png/gif/tiff/bmp); webp/avif
// re-encode targets are rejected with a DeterministicPhaseFailure since
// neither format has a pure-Go encoder in this dependency — the
// pipeline's images phase then copies the original through unchanged.
type ImagingCodec struct{}

func NewImagingCodec() *ImagingCodec { return &ImagingCodec{} }

func (c *ImagingCodec) Transcode(ctx context.Context, src []byte, opts TranscodeOptions) ([]byte, error) {
	if opts.Format == "webp" || opts.Format == "avif" {
		return nil, xerrors.New(xerrors.DeterministicPhaseFailure, "images", "transcode",
			"no pure-Go "+opts.Format+" encoder available", nil)
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("adapters: decode image: %w", err)
	}

	if opts.ResizeW > 0 && img.Bounds().Dx() > opts.ResizeW {
		img = imaging.Resize(img, opts.ResizeW, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	switch opts.Format {
	case "png":
		err = png.Encode(&buf, img)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: clampQuality(opts.Quality)})
	}
	if err != nil {
		return nil, fmt.Errorf("adapters: encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func clampQuality(q int) int {
	if q <= 0 {
		return 75
	}
	if q > 100 {
		return 100
	}
	return q
}
