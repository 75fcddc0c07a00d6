package scraper

import "strings"

// TermSet is the relevance filter configuration. Each entry is a tuple of
// tokens that must all appear in a title (case-insensitive substring match);
// entries are OR-combined, tokens within an entry AND-combined.
type TermSet [][]string

// Matches reports whether the title satisfies at least one entry.
func (t TermSet) Matches(title string) bool {
	lower := strings.ToLower(title)
	for _, entry := range t {
		if len(entry) == 0 {
			continue
		}
		all := true
		for _, token := range entry {
			if !strings.Contains(lower, strings.ToLower(token)) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
