package wizard

import (
	"math"
	"strconv"
	"strings"
)

// ParseFloat converts form input to a number. Bad input becomes NaN,
// which the stored draft keeps until validation rejects it.
func ParseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// ParseInt converts form input to an integer. Bad input becomes NaN as a float64.
func ParseInt(s string) any {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return math.NaN()
	}
	return n
}

// ParseList splits comma separated input, dropping blanks.
func ParseList(s string) []any {
	var out []any
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
