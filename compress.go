package main

import (
	"fmt"
	"image"
	"math"

	"github.com/nfnt/resize"
)

// CompressOptions controls the compressor.
type CompressOptions struct {
	Quality    int // 1-100, ignored for PNG
	MaxWidth   int // 0 = unbounded
	MaxHeight  int // 0 = unbounded
	KeepAspect bool
}

// CompressResult is a compressed image plus the size comparison.
type CompressResult struct {
	Result
	OriginalSize     int64
	CompressionRatio float64 // percent saved, never negative
}

// compressFormat picks the output container for an input MIME type.
// Anything that is not PNG or WebP is re-encoded as JPEG.
func compressFormat(mime string) Format {
	switch f, _ := formatForMIME(mime); f {
	case FormatPNG, FormatWebP:
		return f
	}
	return FormatJPG
}

// compressedSize computes output dimensions. With KeepAspect the width is
// clamped first and the height follows, then the height is clamped and the
// width follows. Without it each bound simply replaces its axis.
func compressedSize(w, h int, o CompressOptions) (int, int) {
	width, height := float64(w), float64(h)

	if o.MaxWidth > 0 || o.MaxHeight > 0 {
		if o.KeepAspect {
			aspect := width / height
			if o.MaxWidth > 0 && width > float64(o.MaxWidth) {
				width = float64(o.MaxWidth)
				height = width / aspect
			}
			if o.MaxHeight > 0 && height > float64(o.MaxHeight) {
				height = float64(o.MaxHeight)
				width = height * aspect
			}
		} else {
			if o.MaxWidth > 0 {
				width = float64(o.MaxWidth)
			}
			if o.MaxHeight > 0 {
				height = float64(o.MaxHeight)
			}
		}
	}

	return max(1, int(math.Round(width))), max(1, int(math.Round(height)))
}

// compressionRatio returns the percentage saved, clamped at 0.
func compressionRatio(original, compressed int64) float64 {
	if original <= 0 {
		return 0
	}
	return math.Max(0, float64(original-compressed)/float64(original)*100)
}

// compressImage re-encodes data in its own format family at a lower quality
// and optionally within maximum dimensions.
func compressImage(f InputFile, o CompressOptions) (CompressResult, error) {
	if !validQuality(o.Quality) {
		return CompressResult{}, fmt.Errorf("quality %d out of range 1-100", o.Quality)
	}
	if o.MaxWidth < 0 || o.MaxHeight < 0 {
		return CompressResult{}, fmt.Errorf("invalid max dimensions %dx%d", o.MaxWidth, o.MaxHeight)
	}

	img, _, err := decodeRaster(f.Data)
	if err != nil {
		return CompressResult{}, err
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return CompressResult{}, fmt.Errorf("decode image: empty bounds %v", b)
	}

	w, h := compressedSize(b.Dx(), b.Dy(), o)
	var scaled image.Image = img
	if w != b.Dx() || h != b.Dy() {
		scaled = resize.Resize(uint(w), uint(h), img, resize.Lanczos3)
	}

	dst := compressFormat(f.MIME)
	surf := newSurface(w, h)
	if dst == FormatJPG {
		surf.fill(white)
	}
	surf.drawFull(rasterSource{img: scaled})

	var out []byte
	switch dst {
	case FormatPNG:
		out, err = encodePNGSmallest(surf.image())
	case FormatWebP:
		out, err = encodeWebP(surf.image(), o.Quality)
	default:
		out, err = encodeJPEG(surf.image(), o.Quality)
	}
	if err != nil {
		return CompressResult{}, err
	}

	res := Result{Data: out, MIME: dst.MIME(), Format: dst, Width: w, Height: h}
	return CompressResult{
		Result:           res,
		OriginalSize:     f.Size(),
		CompressionRatio: compressionRatio(f.Size(), res.Size()),
	}, nil
}
