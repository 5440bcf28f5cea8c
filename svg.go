package main

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Replaced-element default when an SVG declares neither size nor viewBox.
const (
	defaultSVGWidth  = 300
	defaultSVGHeight = 150
)

// svgSource is a parsed SVG that is rasterized on demand.
type svgSource struct {
	mu   sync.Mutex // SetTarget mutates icon
	icon *oksvg.SvgIcon
	w, h int
}

// parseSVG validates the document and records its intrinsic size.
func parseSVG(data []byte) (*svgSource, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data), oksvg.WarnErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	width, height := svgRootSize(data)
	w, h := svgIntrinsicSize(width, height, icon.ViewBox.W, icon.ViewBox.H)
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		icon.ViewBox.X, icon.ViewBox.Y = 0, 0
		icon.ViewBox.W, icon.ViewBox.H = float64(w), float64(h)
	}
	return &svgSource{icon: icon, w: w, h: h}, nil
}

// svgRootSize reads the width and height attributes of the root element.
// Missing, relative or unparsable values come back as 0.
func svgRootSize(data []byte) (width, height float64) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, 0
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, a := range start.Attr {
			switch a.Name.Local {
			case "width":
				width = parseSVGLength(a.Value)
			case "height":
				height = parseSVGLength(a.Value)
			}
		}
		return width, height
	}
}

// CSS absolute units in px at 96 dpi.
var svgUnits = map[string]float64{
	"px": 1,
	"in": 96,
	"cm": 96 / 2.54,
	"mm": 96 / 25.4,
	"pt": 96.0 / 72,
	"pc": 16,
}

// parseSVGLength converts an absolute length to px. Percentages and
// font-relative units have no intrinsic value and return 0.
func parseSVGLength(s string) float64 {
	s = strings.TrimSpace(s)
	mult := 1.0
	for unit, m := range svgUnits {
		if strings.HasSuffix(s, unit) {
			s, mult = strings.TrimSpace(strings.TrimSuffix(s, unit)), m
			break
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v * mult
}

// svgIntrinsicSize resolves the image size from root width/height first and
// the viewBox second. A single given axis takes the other from the viewBox
// aspect ratio.
func svgIntrinsicSize(width, height, vbW, vbH float64) (int, int) {
	hasVB := vbW > 0 && vbH > 0
	switch {
	case width > 0 && height > 0:
	case width > 0 && hasVB:
		height = width * vbH / vbW
	case height > 0 && hasVB:
		width = height * vbW / vbH
	case hasVB && width <= 0 && height <= 0:
		width, height = vbW, vbH
	}
	if width <= 0 {
		width = defaultSVGWidth
	}
	if height <= 0 {
		height = defaultSVGHeight
	}
	return max(1, int(math.Round(width))), max(1, int(math.Round(height)))
}

func (s *svgSource) Size() (int, int) { return s.w, s.h }

// Render rasterizes the vector paths into a w x h image, scaling the
// viewBox uniformly and centering it (xMidYMid meet).
func (s *svgSource) Render(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	s.mu.Lock()
	defer s.mu.Unlock()
	vb := s.icon.ViewBox
	scale := math.Min(float64(w)/vb.W, float64(h)/vb.H)
	tw, th := vb.W*scale, vb.H*scale
	s.icon.SetTarget((float64(w)-tw)/2, (float64(h)-th)/2, tw, th)

	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	s.icon.Draw(raster, 1.0)
	return img
}

// svgScaledSize applies an integer scale factor to the intrinsic size.
func svgScaledSize(src source, scale int) (int, int) {
	w, h := src.Size()
	return max(1, w*scale), max(1, h*scale)
}

// wrapInSVG embeds an encoded raster as a data URI inside an SVG document.
// This is not vectorization: the output scales like the embedded bitmap.
func wrapInSVG(data []byte, mime string, w, h int) []byte {
	uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	doc := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%d" height="%d" viewBox="0 0 %d %d">
  <image width="%d" height="%d" xlink:href="%s"/>
</svg>`, w, h, w, h, w, h, uri)
	return []byte(doc)
}
