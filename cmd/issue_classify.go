package cmd

import "strings"

const (
	priorityLow    = 1
	priorityNormal = 2
	priorityHigh   = 4
	priorityUrgent = 5
)

// categoryKeywords maps each category to the words that suggest it. Order
// matters: the first category with a match wins.
var categoryKeywords = []struct {
	category string
	words    []string
}{
	{"Water", []string{"water", "pipe", "leak", "burst", "hydrant", "flood", "drain", "sewer", "sewage"}},
	{"Utilities", []string{"electric", "power", "outage", "streetlight", "street light", "lamp", "wire", "cable", "transformer"}},
	{"Roads", []string{"road", "pothole", "street", "pavement", "sidewalk", "traffic", "signal", "crossing", "speed bump"}},
	{"Sanitation", []string{"garbage", "trash", "rubbish", "litter", "waste", "bin", "dump", "refuse", "recycl"}},
	{"Parks", []string{"park", "tree", "playground", "bench", "grass", "garden"}},
	{"Safety", []string{"graffiti", "vandal", "unsafe", "crime", "abandoned"}},
}

// classifyIssueCategory infers a category from the description using
// keyword heuristics. Defaults to "General" if no keywords match.
func classifyIssueCategory(text string) string {
	lower := strings.ToLower(text)
	for _, c := range categoryKeywords {
		for _, kw := range c.words {
			if strings.Contains(lower, kw) {
				return c.category
			}
		}
	}
	return "General"
}

// classifyIssuePriority infers a priority from the description using
// keyword heuristics. Urgent keywords are checked before high, then low.
// Defaults to priorityNormal.
func classifyIssuePriority(text string) int {
	lower := strings.ToLower(text)

	urgentKeywords := []string{
		"emergency", "urgent", "danger", "exposed wire", "live wire",
		"burst", "collapsed", "sinkhole", "injur", "fire", "gas leak",
	}
	for _, kw := range urgentKeywords {
		if strings.Contains(lower, kw) {
			return priorityUrgent
		}
	}

	highKeywords := []string{
		"leak", "outage", "no water", "no power", "blocked", "flood",
		"sewage", "accident", "hazard", "broken signal",
	}
	for _, kw := range highKeywords {
		if strings.Contains(lower, kw) {
			return priorityHigh
		}
	}

	lowKeywords := []string{
		"minor", "cosmetic", "faded", "graffiti", "litter", "overgrown",
		"nice to have", "when possible",
	}
	for _, kw := range lowKeywords {
		if strings.Contains(lower, kw) {
			return priorityLow
		}
	}

	return priorityNormal
}
