package main

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log"

	"github.com/chai2010/webp"
	"github.com/gen2brain/avif"
)

// ErrAVIFUnavailable marks an AVIF encoder failure, e.g. when neither the
// shared library nor the embedded WASM encoder can be initialized.
var ErrAVIFUnavailable = errors.New("avif encoder unavailable")

// avifSpeed trades encode time for size; 0 is slowest, 10 fastest.
const avifSpeed = 8

// encodePNG encodes an image as PNG bytes.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// encodePNGSmallest encodes with the best zlib compression level. PNG is
// lossless, so this is all the compressor can do for it.
func encodePNGSmallest(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeJPEG encodes at the given quality (1-100).
func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeWebP encodes lossy WebP at the given quality (1-100).
func encodeWebP(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, fmt.Errorf("encode webp: %w", err)
	}
	return buf.Bytes(), nil
}

// encodeAVIF encodes AVIF at the given quality (1-100). Swapped in tests.
var encodeAVIF = func(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	opts := avif.Options{
		Quality:      quality,
		QualityAlpha: quality,
		Speed:        avifSpeed,
	}
	if err := avif.Encode(&buf, img, opts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAVIFUnavailable, err)
	}
	return buf.Bytes(), nil
}

// encodeAVIFOrWebP encodes AVIF and, when fallback is allowed, retries as
// WebP on failure. The returned format is the one actually produced.
func encodeAVIFOrWebP(img image.Image, quality int, fallback bool) ([]byte, Format, error) {
	data, err := encodeAVIF(img, quality)
	if err == nil {
		return data, FormatAVIF, nil
	}
	if !fallback {
		return nil, "", err
	}
	log.Printf("AVIF encode failed (%v), falling back to WebP", err)
	data, err = encodeWebP(img, quality)
	if err != nil {
		return nil, "", fmt.Errorf("encode avif/webp: %w", err)
	}
	return data, FormatWebP, nil
}
