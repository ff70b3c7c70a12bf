package content

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// Cleaner strips markup from feed summaries and extracted text before it is
// stored or handed to prompts.
type Cleaner struct {
	policy *bluemonday.Policy
}

// NewCleaner creates a cleaner with a strict strip-everything policy
func NewCleaner() *Cleaner {
	return &Cleaner{policy: bluemonday.StrictPolicy()}
}

// Plain removes all HTML tags, unescapes entities and collapses whitespace
func (c *Cleaner) Plain(s string) string {
	stripped := c.policy.Sanitize(s)
	unescaped := html.UnescapeString(stripped)
	return collapseSpace(unescaped)
}

// Truncate shortens text to at most maxChars without splitting a word.
// Text short enough is returned unchanged.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	cut := s[:maxChars]
	if idx := strings.LastIndexFunc(cut, unicode.IsSpace); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRightFunc(cut, unicode.IsSpace)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
