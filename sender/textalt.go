package sender

import (
	"html"
	"regexp"
	"strings"
)

const textAltMaxLen = 1000

var (
	stylePattern  = regexp.MustCompile(`(?is)<style\b.*?</style>`)
	scriptPattern = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	tagPattern    = regexp.MustCompile(`(?s)<[^>]*>`)
	spacePattern  = regexp.MustCompile(`\s+`)
)

// htmlToText synthesizes the plain-text alternative for an HTML body:
// style and script blocks go first, then remaining tags, entities are
// decoded, whitespace collapses, and the result is truncated.
func htmlToText(source string) string {
	text := stylePattern.ReplaceAllString(source, " ")
	text = scriptPattern.ReplaceAllString(text, " ")
	text = tagPattern.ReplaceAllString(text, " ")
	text = html.UnescapeString(text)
	text = spacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if runes := []rune(text); len(runes) > textAltMaxLen {
		text = string(runes[:textAltMaxLen])
	}
	return text
}
