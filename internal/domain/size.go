package domain

import (
	"math"
	"strconv"
	"strings"
)

const (
	KB int64 = 1024
	MB int64 = 1024 * KB
)

const (
	UnitKB = "KB"
	UnitMB = "MB"
)

// FormatSize renders a byte count the way items display it: below 1 MB the
// size is whole kilobytes, otherwise megabytes rounded to one decimal.
func FormatSize(bytes int64) (string, string) {
	mb := float64(bytes) / float64(MB)
	if mb < 1 {
		kb := math.Round(mb * 1024)
		return strconv.FormatFloat(kb, 'f', -1, 64), UnitKB
	}
	rounded := math.Round(mb*10) / 10
	return strconv.FormatFloat(rounded, 'f', -1, 64), UnitMB
}

// SizeToBytes converts a display size back into bytes. Unknown or missing
// values count as zero; a missing unit is read as megabytes.
func SizeToBytes(size, unit string) int64 {
	num, err := strconv.ParseFloat(strings.TrimSpace(size), 64)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) || num <= 0 {
		return 0
	}
	switch strings.ToUpper(strings.TrimSpace(unit)) {
	case UnitKB:
		return int64(math.Round(num * float64(KB)))
	default:
		return int64(math.Round(num * float64(MB)))
	}
}
