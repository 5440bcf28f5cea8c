package main

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// Format identifies an image container pixconv can read or write.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPG  Format = "jpg"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatSVG  Format = "svg"
	FormatICO  Format = "ico"
)

const (
	mimePNG  = "image/png"
	mimeJPEG = "image/jpeg"
	mimeJPG  = "image/jpg"
	mimeWebP = "image/webp"
	mimeAVIF = "image/avif"
	mimeSVG  = "image/svg+xml"
	mimeICO  = "image/x-icon"
)

// MIME returns the fixed output MIME type of the format.
func (f Format) MIME() string {
	switch f {
	case FormatPNG:
		return mimePNG
	case FormatJPG:
		return mimeJPEG
	case FormatWebP:
		return mimeWebP
	case FormatAVIF:
		return mimeAVIF
	case FormatSVG:
		return mimeSVG
	case FormatICO:
		return mimeICO
	}
	return "application/octet-stream"
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Label is the upper-case name used in user-facing messages.
func (f Format) Label() string {
	return strings.ToUpper(string(f))
}

// parseFormat maps a user-supplied name to a Format.
func parseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	case "webp":
		return FormatWebP, nil
	case "avif":
		return FormatAVIF, nil
	case "svg":
		return FormatSVG, nil
	case "ico":
		return FormatICO, nil
	}
	return "", fmt.Errorf("unknown format %q", name)
}

// formatForMIME returns the Format a detected MIME type belongs to.
func formatForMIME(mime string) (Format, bool) {
	switch strings.ToLower(mime) {
	case mimePNG:
		return FormatPNG, true
	case mimeJPEG, mimeJPG:
		return FormatJPG, true
	case mimeWebP:
		return FormatWebP, true
	case mimeAVIF:
		return FormatAVIF, true
	case mimeSVG:
		return FormatSVG, true
	case mimeICO, "image/vnd.microsoft.icon":
		return FormatICO, true
	}
	return "", false
}

// detectMIME sniffs data and falls back to the file extension. SVG is
// recognized by its root element since content sniffing only reports it as
// XML or text.
func detectMIME(name string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	if looksLikeSVG(data) {
		return mimeSVG
	}
	if f, err := parseFormat(filepath.Ext(name)); err == nil && (f != FormatSVG || len(data) == 0) {
		return f.MIME()
	}
	return sniffed
}

// looksLikeSVG reports whether an <svg element appears within the first 4 KiB.
func looksLikeSVG(data []byte) bool {
	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}
