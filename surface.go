package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var (
	white       = color.RGBA{255, 255, 255, 255}
	transparent = color.RGBA{0, 0, 0, 0}
)

// source is a decoded input that can be drawn at any size.
type source interface {
	// Size returns the intrinsic dimensions.
	Size() (w, h int)
	// Render returns the source as a w x h image.
	Render(w, h int) image.Image
}

// rasterSource wraps a decoded PNG, JPEG or WebP image.
type rasterSource struct {
	img image.Image
}

func (r rasterSource) Size() (int, int) {
	b := r.img.Bounds()
	return b.Dx(), b.Dy()
}

// Render resamples with Catmull-Rom when the size differs.
func (r rasterSource) Render(w, h int) image.Image {
	b := r.img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return r.img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), r.img, b, xdraw.Src, nil)
	return dst
}

// decodeRaster decodes any registered raster format (PNG, JPEG, WebP).
func decodeRaster(data []byte) (image.Image, string, error) {
	img, kind, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, kind, nil
}

// decodeSource decodes data as the given source format.
func decodeSource(src Format, data []byte) (source, error) {
	if src == FormatSVG {
		return parseSVG(data)
	}
	img, _, err := decodeRaster(data)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("decode image: empty bounds %v", b)
	}
	return rasterSource{img: img}, nil
}

// surface is an RGBA drawing context, the in-memory pixel buffer every
// transcode draws into before encoding.
type surface struct {
	dc *gg.Context
}

// newSurface creates a transparent w x h surface.
func newSurface(w, h int) *surface {
	dc := gg.NewContext(w, h)
	dc.SetColor(transparent)
	dc.Clear()
	return &surface{dc: dc}
}

// fill paints the whole surface with c, replacing what was there.
func (s *surface) fill(c color.Color) {
	s.dc.SetColor(c)
	s.dc.Clear()
}

// draw composites src over the surface at (x, y) scaled to w x h.
func (s *surface) draw(src source, x, y float64, w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	s.dc.DrawImage(src.Render(w, h), int(math.Round(x)), int(math.Round(y)))
}

// drawFull draws src stretched over the entire surface.
func (s *surface) drawFull(src source) {
	s.draw(src, 0, 0, s.dc.Width(), s.dc.Height())
}

// drawFitSquare scales src to fit a size x size surface preserving aspect
// ratio, centered.
func (s *surface) drawFitSquare(src source, size int) {
	sw, sh := src.Size()
	if sw <= 0 || sh <= 0 {
		return
	}
	scale := math.Min(float64(size)/float64(sw), float64(size)/float64(sh))
	w := float64(sw) * scale
	h := float64(sh) * scale
	x := (float64(size) - w) / 2
	y := (float64(size) - h) / 2
	s.draw(src, x, y, max(1, int(math.Round(w))), max(1, int(math.Round(h))))
}

// image returns the surface pixels.
func (s *surface) image() image.Image {
	return s.dc.Image()
}

// bounds returns the surface dimensions.
func (s *surface) bounds() (int, int) {
	return s.dc.Width(), s.dc.Height()
}
