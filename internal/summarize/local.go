package summarize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"BriefScanner/internal/domain"
)

const (
	minSentenceRunes = 10
	scanBodyRunes    = 200
	tailBodyRunes    = 30
)

var (
	sentenceEnd   = regexp.MustCompile(`[。！？!?.\n]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Local derives a summary without the AI endpoint. It is deterministic and
// never returns an empty string.
func Local(item domain.Item) string {
	title := stripHeading(item.Title)
	if utf8.RuneCountInString(title) >= minSentenceRunes {
		return title
	}

	head := prefix(item.Body, scanBodyRunes)
	for _, sentence := range sentenceEnd.Split(head, -1) {
		sentence = strings.TrimSpace(sentence)
		if utf8.RuneCountInString(sentence) >= minSentenceRunes {
			if s := Clean(sentence); s != "" {
				return s
			}
		}
	}

	if title != "" {
		return title
	}
	if s := Clean(prefix(head, tailBodyRunes)); s != "" {
		return s
	}
	return fmt.Sprintf("Item %d", item.ID)
}

// Clean normalizes summary text: single spaces, no leading heading markers,
// no trailing full-width period.
func Clean(s string) string {
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "# ")
	s = strings.TrimRight(s, "。 ")
	return s
}

// stripHeading trims surrounding space and leading heading markers, leaving the
// rest of a title as published.
func stripHeading(s string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "#"))
}

func prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
