package main

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sourceData returns a small fixture for each readable format.
func sourceData(t *testing.T, f Format) []byte {
	t.Helper()
	switch f {
	case FormatPNG:
		return testPNG(t, 40, 20, color.NRGBA{255, 0, 0, 128})
	case FormatJPG:
		return testJPEG(t, 40, 20)
	case FormatWebP:
		data, err := encodeWebP(solidImage(40, 20, color.RGBA{0, 0, 255, 255}), 90)
		require.NoError(t, err)
		return data
	case FormatSVG:
		return []byte(testSVG)
	}
	t.Fatalf("no fixture for %s", f)
	return nil
}

// stubAVIF replaces the AVIF encoder for the duration of the test.
func stubAVIF(t *testing.T, fn func(image.Image, int) ([]byte, error)) {
	t.Helper()
	orig := encodeAVIF
	encodeAVIF = fn
	t.Cleanup(func() { encodeAVIF = orig })
}

func fakeAVIF(image.Image, int) ([]byte, error) {
	return []byte("\x00\x00\x00\x1cftypavif"), nil
}

func TestTranscode_OutputMIMEFixedPerPair(t *testing.T) {
	stubAVIF(t, fakeAVIF)

	for src, targets := range conversionPairs {
		data := sourceData(t, src)
		for _, dst := range targets {
			t.Run(string(src)+"_to_"+string(dst), func(t *testing.T) {
				res, err := transcode(src, dst, data, defaultOptions())
				require.NoError(t, err)
				assert.Equal(t, dst.MIME(), res.MIME)
				assert.Equal(t, dst, res.Format)
				assert.NotEmpty(t, res.Data)
			})
		}
	}
}

func TestTranscode_UnsupportedPair(t *testing.T) {
	for _, pair := range [][2]Format{
		{FormatJPG, FormatSVG},
		{FormatSVG, FormatSVG},
		{FormatPNG, FormatPNG},
		{FormatAVIF, FormatPNG},
		{FormatICO, FormatPNG},
	} {
		_, err := transcode(pair[0], pair[1], []byte{1}, defaultOptions())
		assert.ErrorIs(t, err, ErrUnsupportedPair, "%s to %s", pair[0], pair[1])
	}
}

func TestTranscode_InvalidOptions(t *testing.T) {
	opts := defaultOptions()
	opts.IcoSize = 20
	_, err := transcode(FormatPNG, FormatICO, sourceData(t, FormatPNG), opts)
	assert.ErrorContains(t, err, "ico size")

	opts = defaultOptions()
	opts.JPGQuality = 0
	_, err = transcode(FormatPNG, FormatJPG, sourceData(t, FormatPNG), opts)
	assert.ErrorContains(t, err, "jpg quality")
}

func TestTranscode_JPGIsOpaque(t *testing.T) {
	// Fully transparent input must come out white, not black.
	data := testPNG(t, 8, 8, color.RGBA{0, 0, 0, 0})
	res, err := transcode(FormatPNG, FormatJPG, data, defaultOptions())
	require.NoError(t, err)

	img, kind, err := decodeRaster(res.Data)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", kind)
	for _, p := range [][2]int{{0, 0}, {7, 0}, {0, 7}, {7, 7}} {
		r, g, b, _ := rgba8(img, p[0], p[1])
		assert.GreaterOrEqual(t, r, uint8(250))
		assert.GreaterOrEqual(t, g, uint8(250))
		assert.GreaterOrEqual(t, b, uint8(250))
	}
}

func TestTranscode_PNGToWebPKeepsSize(t *testing.T) {
	res, err := transcode(FormatPNG, FormatWebP, sourceData(t, FormatPNG), defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 40, res.Width)
	assert.Equal(t, 20, res.Height)

	cfg, kind, err := image.DecodeConfig(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, "webp", kind)
	assert.Equal(t, 40, cfg.Width)
}

func TestTranscode_ICOFitsAndFillsWhite(t *testing.T) {
	opts := defaultOptions()
	opts.IcoSize = 64
	res, err := transcode(FormatPNG, FormatICO, testPNG(t, 40, 20, color.RGBA{255, 0, 0, 255}), opts)
	require.NoError(t, err)
	assert.Equal(t, 64, res.Width)
	assert.Equal(t, 64, res.Height)

	entries, err := readICOHeader(res.Data)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 64, entries[0].Width)
	assert.True(t, entries[0].PNG)

	e := entries[0]
	img, _, err := decodeRaster(res.Data[e.Offset : e.Offset+e.Size])
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 64), img.Bounds())

	// 40x20 fitted into 64 is 64x32 at y=16; corners are letterbox.
	for _, p := range [][2]int{{0, 0}, {63, 0}, {0, 63}, {63, 63}} {
		r, g, b, a := rgba8(img, p[0], p[1])
		assert.Equal(t, [4]uint8{255, 255, 255, 255}, [4]uint8{r, g, b, a}, "corner %v", p)
	}
	r, g, b, _ := rgba8(img, 32, 32)
	assert.Equal(t, [3]uint8{255, 0, 0}, [3]uint8{r, g, b})
}

func TestTranscode_ICO256(t *testing.T) {
	opts := defaultOptions()
	opts.IcoSize = 256
	res, err := transcode(FormatSVG, FormatICO, []byte(testSVG), opts)
	require.NoError(t, err)
	assert.Equal(t, byte(0), res.Data[6])
	assert.Equal(t, byte(0), res.Data[7])
}

func TestTranscode_SVGScale(t *testing.T) {
	opts := defaultOptions()
	opts.SVGScale = 3
	res, err := transcode(FormatSVG, FormatPNG, []byte(testSVG), opts)
	require.NoError(t, err)
	assert.Equal(t, 120, res.Width)
	assert.Equal(t, 60, res.Height)
}

func TestTranscode_SVGToPNGHasWhiteBackground(t *testing.T) {
	res, err := transcode(FormatSVG, FormatPNG, []byte(halfSVG), defaultOptions())
	require.NoError(t, err)
	img, _, err := decodeRaster(res.Data)
	require.NoError(t, err)

	r, g, b, a := rgba8(img, 35, 10)
	assert.Equal(t, [4]uint8{255, 255, 255, 255}, [4]uint8{r, g, b, a})
	r, g, b, a = rgba8(img, 5, 10)
	assert.Equal(t, [4]uint8{0, 0, 255, 255}, [4]uint8{r, g, b, a})
}

func TestTranscode_RasterToSVGEmbedsSource(t *testing.T) {
	data := sourceData(t, FormatPNG)
	res, err := transcode(FormatPNG, FormatSVG, data, defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 40, res.Width)
	assert.Equal(t, 20, res.Height)

	doc := string(res.Data)
	assert.Contains(t, doc, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(data))
	assert.Contains(t, doc, `width="40" height="20"`)
}

func TestTranscode_WebPToSVGUsesWebPMIME(t *testing.T) {
	res, err := transcode(FormatWebP, FormatSVG, sourceData(t, FormatWebP), defaultOptions())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(res.Data), "data:image/webp;base64,"))
}

func TestTranscode_CorruptInput(t *testing.T) {
	_, err := transcode(FormatPNG, FormatJPG, []byte("garbage"), defaultOptions())
	assert.ErrorContains(t, err, "decode image")

	_, err = transcode(FormatPNG, FormatSVG, []byte("garbage"), defaultOptions())
	assert.ErrorContains(t, err, "decode image")
}

func TestTranscode_AVIFFailureWithoutFallback(t *testing.T) {
	stubAVIF(t, func(image.Image, int) ([]byte, error) {
		return nil, ErrAVIFUnavailable
	})
	_, err := transcode(FormatPNG, FormatAVIF, sourceData(t, FormatPNG), defaultOptions())
	assert.ErrorIs(t, err, ErrAVIFUnavailable)
}

func TestTranscode_AVIFFallbackToWebP(t *testing.T) {
	stubAVIF(t, func(image.Image, int) ([]byte, error) {
		return nil, errors.New("no encoder")
	})
	opts := defaultOptions()
	opts.AVIFFallback = true
	res, err := transcode(FormatJPG, FormatAVIF, sourceData(t, FormatJPG), opts)
	require.NoError(t, err)
	assert.Equal(t, FormatWebP, res.Format)
	assert.Equal(t, mimeWebP, res.MIME)
}

func TestTranscode_AVIFQualityPassedThrough(t *testing.T) {
	var gotQuality int
	stubAVIF(t, func(_ image.Image, q int) ([]byte, error) {
		gotQuality = q
		return fakeAVIF(nil, q)
	})
	opts := defaultOptions()
	opts.AVIFQuality = 42
	_, err := transcode(FormatPNG, FormatAVIF, sourceData(t, FormatPNG), opts)
	require.NoError(t, err)
	assert.Equal(t, 42, gotQuality)
}

func TestDefaultOptions_JPGQualityBySource(t *testing.T) {
	opts := defaultOptions()
	assert.Equal(t, 92, opts.JPGQuality)
	assert.Equal(t, 90, opts.SVGJPGQuality)
	assert.NoError(t, opts.validate())

	opts.SVGJPGQuality = 0
	assert.ErrorContains(t, opts.validate(), "svg jpg quality")
}

func TestTranscode_SVGToJPGUsesSVGQuality(t *testing.T) {
	encode := func(jpgQ, svgQ int) []byte {
		opts := defaultOptions()
		opts.JPGQuality = jpgQ
		opts.SVGJPGQuality = svgQ
		res, err := transcode(FormatSVG, FormatJPG, []byte(halfSVG), opts)
		require.NoError(t, err)
		return res.Data
	}

	assert.Equal(t, encode(10, 90), encode(100, 90), "raster JPG quality does not apply to SVG input")
	assert.NotEqual(t, encode(92, 10), encode(92, 90))

	rasterOpts := defaultOptions()
	rasterOpts.SVGJPGQuality = 10
	a, err := transcode(FormatPNG, FormatJPG, sourceData(t, FormatPNG), rasterOpts)
	require.NoError(t, err)
	rasterOpts.SVGJPGQuality = 90
	b, err := transcode(FormatPNG, FormatJPG, sourceData(t, FormatPNG), rasterOpts)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data, "SVG JPG quality does not apply to raster input")
}
