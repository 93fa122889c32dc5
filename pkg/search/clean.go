package search

import (
	"log/slog"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

var (
	htmlTag        = regexp.MustCompile(`(?i)</?(p|div|span|br|a|ul|ol|li|h[1-6]|table|tr|td|strong|em|b|i)\b[^>]*>`)
	repeatedBlanks = regexp.MustCompile(`\n{3,}`)
)

// CleanContent normalizes a result snippet. Snippets carrying HTML markup
// are converted to markdown so tags do not leak into prompts; runs of
// blank lines are collapsed either way.
func CleanContent(s string) string {
	if htmlTag.MatchString(s) {
		md, err := htmltomarkdown.ConvertString(s)
		if err != nil {
			slog.Debug("html snippet conversion failed", "error", err)
		} else {
			s = md
		}
	}
	s = repeatedBlanks.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
