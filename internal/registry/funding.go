package registry

import (
	"strconv"
	"strings"
)

// ParseFundingAmount converts a feed funding string like "$16.25M", "100M",
// or "$1.5B" into USD. Unparseable or empty input returns 0.
func ParseFundingAmount(s string) float64 {
	if s == "" {
		return 0
	}
	cleaned := strings.ReplaceAll(s, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ToUpper(strings.TrimSpace(cleaned))

	parse := func(v string, mult float64) float64 {
		num, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return num * mult
	}

	switch {
	case strings.Contains(cleaned, "B"):
		return parse(strings.ReplaceAll(cleaned, "B", ""), 1_000_000_000)
	case strings.Contains(cleaned, "M"):
		return parse(strings.ReplaceAll(cleaned, "M", ""), 1_000_000)
	case strings.Contains(cleaned, "K"):
		return parse(strings.ReplaceAll(cleaned, "K", ""), 1_000)
	default:
		return parse(cleaned, 1)
	}
}
