package main

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError is returned when an input file or file set is rejected
// before any decoding happens.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Rules is the allow-list applied to one kind of input.
type Rules struct {
	Label        string   // "PNG", "SVG", "JPG, PNG, or WebP"
	AllowedMIME  []string // lower-case MIME types
	MaxFileSize  int64    // bytes
	MaxFileCount int
}

// InputFile is an input as the validators see it: name, detected type and
// raw bytes.
type InputFile struct {
	Name string
	MIME string
	Data []byte
}

// Size returns the payload length in bytes.
func (f InputFile) Size() int64 { return int64(len(f.Data)) }

const mib = 1024 * 1024

// validIcoSizes are the square sizes offered for ICO output.
var validIcoSizes = []int{16, 32, 48, 64, 128, 256}

// validSVGScales are the raster scale factors offered for SVG input.
var validSVGScales = []int{1, 2, 3, 4}

var (
	pngRules  = Rules{Label: "PNG", AllowedMIME: []string{mimePNG}, MaxFileSize: 10 * mib, MaxFileCount: 10}
	jpgRules  = Rules{Label: "JPG", AllowedMIME: []string{mimeJPEG, mimeJPG}, MaxFileSize: 10 * mib, MaxFileCount: 10}
	webpRules = Rules{Label: "WebP", AllowedMIME: []string{mimeWebP}, MaxFileSize: 10 * mib, MaxFileCount: 10}
	svgRules  = Rules{Label: "SVG", AllowedMIME: []string{mimeSVG}, MaxFileSize: 5 * mib, MaxFileCount: 5}

	compressRules = Rules{
		Label:        "JPG, PNG, or WebP",
		AllowedMIME:  []string{mimeJPEG, mimeJPG, mimePNG, mimeWebP},
		MaxFileSize:  10 * mib,
		MaxFileCount: 10,
	}
)

// rulesFor returns the validator for a source format.
func rulesFor(src Format) (Rules, bool) {
	switch src {
	case FormatPNG:
		return pngRules, true
	case FormatJPG:
		return jpgRules, true
	case FormatWebP:
		return webpRules, true
	case FormatSVG:
		return svgRules, true
	}
	return Rules{}, false
}

// allows reports whether the MIME type is on the allow-list.
func (r Rules) allows(mime string) bool {
	return slices.Contains(r.AllowedMIME, strings.ToLower(mime))
}

// validateFile checks type, size ceiling and emptiness of a single file.
func validateFile(r Rules, f InputFile) error {
	if !r.allows(f.MIME) {
		return validationErrorf("Invalid file type. Only %s files are allowed.", r.Label)
	}
	if f.Size() > r.MaxFileSize {
		return validationErrorf("File size exceeds the maximum limit of %dMB.", r.MaxFileSize/mib)
	}
	if f.Size() == 0 {
		return validationErrorf("File is empty.")
	}
	return nil
}

// validateFiles checks the file count ceiling and then every file, stopping
// at the first failure. Per-file messages carry the 1-based index and name.
func validateFiles(r Rules, files []InputFile) error {
	if len(files) == 0 {
		return validationErrorf("No files selected.")
	}
	if len(files) > r.MaxFileCount {
		return validationErrorf("You can only upload up to %d files at once.", r.MaxFileCount)
	}
	for i, f := range files {
		if err := validateFile(r, f); err != nil {
			return validationErrorf("File %d (%s): %s", i+1, f.Name, err.Error())
		}
	}
	return nil
}

func validIcoSize(size int) bool {
	return slices.Contains(validIcoSizes, size)
}

func validSVGScale(scale int) bool {
	return slices.Contains(validSVGScales, scale)
}

func validQuality(q int) bool {
	return q >= 1 && q <= 100
}
