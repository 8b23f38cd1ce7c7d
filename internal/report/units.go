package report

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// unitMultipliers maps report memory units to their power-of-1024 factor.
var unitMultipliers = map[string]float64{
	"B":     1,
	"BYTES": 1,
	"KB":    1024,
	"MB":    1024 * 1024,
	"GB":    1024 * 1024 * 1024,
	"TB":    1024 * 1024 * 1024 * 1024,
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// leadingNumberRe matches the numeric prefix of a cell, e.g. "12.5" in "12.5 %".
var leadingNumberRe = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`)

// leadingIntRe matches the integer prefix of a cell.
var leadingIntRe = regexp.MustCompile(`^[-+]?\d+`)

// ParseMemoryString converts a report size such as "512 MB" or "2 GB" to
// bytes. A missing or unknown unit keeps the raw value; an unparseable value
// yields 0. It never fails.
func ParseMemoryString(s string) uint64 {
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return 0
	}
	value, ok := parseLeadingFloat(parts[0])
	if !ok || value <= 0 {
		return 0
	}
	if len(parts) >= 2 {
		if mult, ok := unitMultipliers[strings.ToUpper(parts[1])]; ok {
			value *= mult
		}
	}
	if value >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(value)
}

// FormatBytes renders n with the largest unit where n/1024^i >= 1,
// using at most two decimals: 1536 -> "1.5 KB".
func FormatBytes(n uint64) string {
	if n == 0 {
		return "0 B"
	}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(byteUnits)-1 {
		v /= 1024
		i++
	}
	return strconv.FormatFloat(roundTo(v, 2), 'f', -1, 64) + " " + byteUnits[i]
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// parseLeadingFloat parses the numeric prefix of s the way report cells are
// written ("0.125", "12.5 %"). ok is false when s has no numeric prefix.
func parseLeadingFloat(s string) (float64, bool) {
	m := leadingNumberRe.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseFloat returns the cell's numeric value, 0 when non-numeric.
func parseFloat(s string) float64 {
	v, _ := parseLeadingFloat(s)
	return v
}

// parseInt returns the cell's integer prefix, 0 when non-numeric.
func parseInt(s string) int {
	m := leadingIntRe.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return v
}

// parseCount parses a job/time counter such as "12,345". Thousands
// separators are stripped; negative or non-numeric values yield 0.
func parseCount(s string) uint64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	m := leadingIntRe.FindString(s)
	if m == "" || strings.HasPrefix(m, "-") {
		return 0
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(m, "+"), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// formatThousands renders n with comma separators: 1234567 -> "1,234,567".
func formatThousands(n uint64) string {
	s := strconv.FormatUint(n, 10)
	if len(s) <= 3 {
		return s
	}
	var sb strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		sb.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}
