package main

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="40" height="20" viewBox="0 0 40 20">
  <rect x="0" y="0" width="40" height="20" fill="#ff0000"/>
</svg>`

// halfSVG covers only the left half, leaving the right half transparent.
const halfSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="40" height="20" viewBox="0 0 40 20">
  <rect x="0" y="0" width="20" height="20" fill="#0000ff"/>
</svg>`

func TestParseSVG_Size(t *testing.T) {
	s, err := parseSVG([]byte(testSVG))
	require.NoError(t, err)
	w, h := s.Size()
	assert.Equal(t, 40, w)
	assert.Equal(t, 20, h)
}

func TestParseSVG_DefaultSize(t *testing.T) {
	s, err := parseSVG([]byte(`<svg xmlns="http://www.w3.org/2000/svg"><circle cx="5" cy="5" r="4"/></svg>`))
	require.NoError(t, err)
	w, h := s.Size()
	assert.Equal(t, defaultSVGWidth, w)
	assert.Equal(t, defaultSVGHeight, h)
}

func TestParseSVG_Invalid(t *testing.T) {
	_, err := parseSVG([]byte(`<svg xmlns="http://www.w3.org/2000/svg"><g></svg>`))
	assert.ErrorContains(t, err, "parse svg")
}

func TestSVGSource_Render(t *testing.T) {
	s, err := parseSVG([]byte(testSVG))
	require.NoError(t, err)

	img := s.Render(80, 40)
	assert.Equal(t, 80, img.Bounds().Dx())
	assert.Equal(t, 40, img.Bounds().Dy())
	r, g, b, a := rgba8(img, 40, 20)
	assert.Equal(t, [4]uint8{255, 0, 0, 255}, [4]uint8{r, g, b, a})
}

func TestSVGScaledSize(t *testing.T) {
	s, err := parseSVG([]byte(testSVG))
	require.NoError(t, err)
	for _, scale := range validSVGScales {
		w, h := svgScaledSize(s, scale)
		assert.Equal(t, 40*scale, w)
		assert.Equal(t, 20*scale, h)
	}
}

func TestWrapInSVG(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	doc := string(wrapInSVG(payload, mimePNG, 12, 34))

	assert.True(t, strings.HasPrefix(doc, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, doc, `width="12" height="34" viewBox="0 0 12 34"`)
	assert.Contains(t, doc, `xmlns:xlink="http://www.w3.org/1999/xlink"`)
	assert.Contains(t, doc, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(payload))
	assert.True(t, looksLikeSVG([]byte(doc)))
}

func TestParseSVG_WidthHeightWinOverViewBox(t *testing.T) {
	s, err := parseSVG([]byte(`<svg xmlns="http://www.w3.org/2000/svg" width="24" height="24" viewBox="0 0 48 48">
  <rect width="48" height="48" fill="#ff0000"/>
</svg>`))
	require.NoError(t, err)
	w, h := s.Size()
	assert.Equal(t, 24, w)
	assert.Equal(t, 24, h)

	img := s.Render(w, h)
	r, g, b, a := rgba8(img, 23, 23)
	assert.Equal(t, [4]uint8{255, 0, 0, 255}, [4]uint8{r, g, b, a}, "whole viewBox maps onto 24x24")
}

func TestTranscode_SVGUsesDeclaredSize(t *testing.T) {
	doc := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="24" height="24" viewBox="0 0 48 48">
  <rect width="48" height="48" fill="#00ff00"/>
</svg>`)
	res, err := transcode(FormatSVG, FormatPNG, doc, defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 24, res.Width)
	assert.Equal(t, 24, res.Height)

	opts := defaultOptions()
	opts.SVGScale = 2
	res, err = transcode(FormatSVG, FormatJPG, doc, opts)
	require.NoError(t, err)
	assert.Equal(t, 48, res.Width)
}

func TestSVGSource_RenderKeepsAspect(t *testing.T) {
	// A square viewBox in a 40x20 box is drawn 20x20 at x=10.
	s, err := parseSVG([]byte(`<svg xmlns="http://www.w3.org/2000/svg" width="40" height="20" viewBox="0 0 20 20">
  <rect width="20" height="20" fill="#ff0000"/>
</svg>`))
	require.NoError(t, err)

	img := s.Render(40, 20)
	r, g, b, a := rgba8(img, 20, 10)
	assert.Equal(t, [4]uint8{255, 0, 0, 255}, [4]uint8{r, g, b, a})
	_, _, _, a = rgba8(img, 3, 10)
	assert.Zero(t, a, "left pillarbox")
	_, _, _, a = rgba8(img, 36, 10)
	assert.Zero(t, a, "right pillarbox")
}

func TestSVGIntrinsicSize(t *testing.T) {
	tests := []struct {
		name                  string
		width, height, vw, vh float64
		wantW, wantH          int
	}{
		{"both attributes", 24, 24, 48, 48, 24, 24},
		{"width only", 30, 0, 60, 20, 30, 10},
		{"height only", 0, 10, 60, 20, 30, 10},
		{"viewBox only", 0, 0, 40, 20, 40, 20},
		{"nothing", 0, 0, 0, 0, defaultSVGWidth, defaultSVGHeight},
		{"width without viewBox", 50, 0, 0, 0, 50, defaultSVGHeight},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := svgIntrinsicSize(tt.width, tt.height, tt.vw, tt.vh)
			assert.Equal(t, tt.wantW, w, "width")
			assert.Equal(t, tt.wantH, h, "height")
		})
	}
}

func TestSVGRootSize(t *testing.T) {
	w, h := svgRootSize([]byte(`<?xml version="1.0"?><!-- logo --><svg width="1in" height="72pt"><g width="5"/></svg>`))
	assert.InDelta(t, 96, w, 1e-9)
	assert.InDelta(t, 96, h, 1e-9)

	w, h = svgRootSize([]byte(`<svg width="100%" height="2em" viewBox="0 0 40 20"/>`))
	assert.Zero(t, w, "percent has no intrinsic value")
	assert.Zero(t, h)

	w, _ = svgRootSize([]byte(`<svg width=" 12px "/>`))
	assert.Equal(t, 12.0, w)
}

func TestSVGSource_RenderRepeatable(t *testing.T) {
	s, err := parseSVG([]byte(testSVG))
	require.NoError(t, err)
	first := s.Render(40, 20)
	_ = s.Render(8, 8)
	again := s.Render(40, 20)
	assert.Equal(t, first, again, "cached icon renders identically after retargeting")
}
