package utils

import (
	"math"
	"strconv"
	"strings"
)

// FormatPrice renders 1234567.5 as "$1,234,568"
func FormatPrice(p float64) string {
	digits := strconv.FormatInt(int64(math.Round(math.Abs(p))), 10)
	var b strings.Builder
	if p < 0 {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return b.String()
}
