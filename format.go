package main

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// formatFileSize returns a human-readable byte count ("1.5 KiB").
func formatFileSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

// calculateCompression returns the rounded percentage saved going from
// original to converted bytes. Negative when the output is larger.
func calculateCompression(original, converted int64) int {
	if original <= 0 {
		return 0
	}
	return int(math.Round(float64(original-converted) / float64(original) * 100))
}

// formatChange renders a size change as "-35%" (smaller) or "+120%" (larger).
func formatChange(pct int) string {
	if pct >= 0 {
		return fmt.Sprintf("-%d%%", pct)
	}
	return fmt.Sprintf("+%d%%", -pct)
}

// formatEntryLine formats a single file line for the batch report.
func formatEntryLine(e Entry) string {
	switch e.Status {
	case StatusConverted:
		pct := calculateCompression(e.File.Size(), e.Output.Size())
		line := fmt.Sprintf("%s: %s -> %s (%s, %dx%d)",
			e.File.Name, formatFileSize(e.File.Size()), formatFileSize(e.Output.Size()),
			formatChange(pct), e.Output.Width, e.Output.Height)
		if e.Output.Path != "" {
			line += " => " + e.Output.Path
		}
		return line
	case StatusErrored:
		return fmt.Sprintf("%s: error: %s", e.File.Name, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.File.Name, e.Status)
}

// formatSummaryLine formats the batch totals, or "" if nothing converted.
func formatSummaryLine(s Summary) string {
	if s.Converted == 0 {
		if s.Errored > 0 {
			return fmt.Sprintf("0/%d converted, %d failed", s.Files, s.Errored)
		}
		return ""
	}
	line := fmt.Sprintf("%d/%d converted: %s -> %s (%s)",
		s.Converted, s.Files, formatFileSize(s.OriginalBytes), formatFileSize(s.ConvertedBytes),
		formatChange(s.Change()))
	if s.Errored > 0 {
		line += fmt.Sprintf(", %d failed", s.Errored)
	}
	return line
}
