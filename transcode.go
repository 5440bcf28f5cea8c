package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"slices"
)

// ErrUnsupportedPair is returned for a (source, target) pair with no converter.
var ErrUnsupportedPair = errors.New("unsupported conversion")

// conversionPairs lists the targets each source format converts to.
var conversionPairs = map[Format][]Format{
	FormatJPG:  {FormatPNG, FormatWebP, FormatAVIF, FormatICO},
	FormatPNG:  {FormatJPG, FormatWebP, FormatAVIF, FormatICO, FormatSVG},
	FormatWebP: {FormatPNG, FormatJPG, FormatAVIF, FormatICO, FormatSVG},
	FormatSVG:  {FormatPNG, FormatJPG, FormatWebP, FormatAVIF, FormatICO},
}

// supportedPair reports whether src converts to dst.
func supportedPair(src, dst Format) bool {
	return slices.Contains(conversionPairs[src], dst)
}

// Options tunes a single conversion.
type Options struct {
	JPGQuality    int  // 1-100, raster sources
	SVGJPGQuality int  // 1-100, SVG source
	WebPQuality   int  // 1-100
	AVIFQuality   int  // 1-100
	IcoSize       int  // one of validIcoSizes
	SVGScale      int  // one of validSVGScales
	AVIFFallback  bool // encode WebP when AVIF encoding fails
}

// defaultOptions returns the per-format converter defaults. SVG input is
// rasterized, so its JPG default sits a little lower than for photos.
func defaultOptions() Options {
	return Options{
		JPGQuality:    92,
		SVGJPGQuality: 90,
		WebPQuality:   90,
		AVIFQuality:   85,
		IcoSize:       32,
		SVGScale:      1,
	}
}

func (o Options) validate() error {
	switch {
	case !validQuality(o.JPGQuality):
		return fmt.Errorf("jpg quality %d out of range 1-100", o.JPGQuality)
	case !validQuality(o.SVGJPGQuality):
		return fmt.Errorf("svg jpg quality %d out of range 1-100", o.SVGJPGQuality)
	case !validQuality(o.WebPQuality):
		return fmt.Errorf("webp quality %d out of range 1-100", o.WebPQuality)
	case !validQuality(o.AVIFQuality):
		return fmt.Errorf("avif quality %d out of range 1-100", o.AVIFQuality)
	case !validIcoSize(o.IcoSize):
		return fmt.Errorf("ico size %d not one of %v", o.IcoSize, validIcoSizes)
	case !validSVGScale(o.SVGScale):
		return fmt.Errorf("svg scale %d not one of %v", o.SVGScale, validSVGScales)
	}
	return nil
}

// Result is an encoded output image.
type Result struct {
	Data   []byte
	MIME   string
	Format Format
	Width  int
	Height int
}

// Size returns the encoded length in bytes.
func (r Result) Size() int64 { return int64(len(r.Data)) }

// transcode converts data from src to dst: decode, draw onto a raster
// surface, re-encode. Raster to SVG skips the surface and embeds the
// source bytes as-is.
func transcode(src, dst Format, data []byte, opts Options) (Result, error) {
	if !supportedPair(src, dst) {
		return Result{}, fmt.Errorf("%w: %s to %s", ErrUnsupportedPair, src.Label(), dst.Label())
	}
	if err := opts.validate(); err != nil {
		return Result{}, err
	}

	if dst == FormatSVG {
		return wrapRaster(src, data)
	}

	s, err := decodeSource(src, data)
	if err != nil {
		return Result{}, err
	}

	if dst == FormatICO {
		return toICO(s, opts.IcoSize)
	}

	w, h := s.Size()
	if src == FormatSVG {
		w, h = svgScaledSize(s, opts.SVGScale)
	}
	surf := newSurface(w, h)
	// JPEG has no alpha channel; SVG to PNG is flattened onto white.
	if dst == FormatJPG || (src == FormatSVG && dst == FormatPNG) {
		surf.fill(white)
	}
	surf.drawFull(s)

	if src == FormatSVG {
		opts.JPGQuality = opts.SVGJPGQuality
	}
	return encodeSurface(surf, dst, opts)
}

// encodeSurface encodes surface pixels into the target raster container.
func encodeSurface(surf *surface, dst Format, opts Options) (Result, error) {
	w, h := surf.bounds()
	img := surf.image()

	var (
		out []byte
		err error
		got = dst
	)
	switch dst {
	case FormatPNG:
		out, err = encodePNG(img)
	case FormatJPG:
		out, err = encodeJPEG(img, opts.JPGQuality)
	case FormatWebP:
		out, err = encodeWebP(img, opts.WebPQuality)
	case FormatAVIF:
		out, got, err = encodeAVIFOrWebP(img, opts.AVIFQuality, opts.AVIFFallback)
	default:
		return Result{}, errors.New("no raster encoder for " + dst.Label())
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Data: out, MIME: got.MIME(), Format: got, Width: w, Height: h}, nil
}

// toICO renders src fitted into a size x size white square and packs the
// PNG encoding into an ICO container.
func toICO(src source, size int) (Result, error) {
	surf := newSurface(size, size)
	surf.fill(white)
	surf.drawFitSquare(src, size)

	pngData, err := encodePNG(surf.image())
	if err != nil {
		return Result{}, err
	}
	return Result{
		Data:   packICO(icoImage{Data: pngData, Width: size, Height: size}),
		MIME:   FormatICO.MIME(),
		Format: FormatICO,
		Width:  size,
		Height: size,
	}, nil
}

// wrapRaster produces the SVG wrapper around the unmodified source bytes.
func wrapRaster(src Format, data []byte) (Result, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}
	return Result{
		Data:   wrapInSVG(data, src.MIME(), cfg.Width, cfg.Height),
		MIME:   FormatSVG.MIME(),
		Format: FormatSVG,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}
