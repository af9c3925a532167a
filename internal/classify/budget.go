package classify

import (
	"regexp"
	"strconv"
	"strings"
)

var budgetPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$(\d+[\.\d]*)`),
	regexp.MustCompile(`(\d+[\.\d]*)\s*(?:usd|dollars?)`),
	regexp.MustCompile(`budget[:\s]*\$?(\d+[\.\d]*)`),
	regexp.MustCompile(`pay(?:ing)?\s*\$?(\d+[\.\d]*)`),
}

// ExtractBudget returns the largest amount stated in text, or nil when no
// amount parses.
func ExtractBudget(text string) *float64 {
	lower := strings.ToLower(text)
	var best *float64
	for _, re := range budgetPatterns {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			v, err := strconv.ParseFloat(strings.TrimSuffix(m[1], "."), 64)
			if err != nil {
				continue
			}
			if best == nil || v > *best {
				val := v
				best = &val
			}
		}
	}
	return best
}
