// Package textutil provides small text normalization helpers used when
// cleaning spreadsheet header and cell text:
//
//   - StripTags: remove <...> markup sequences from a string.
//   - CollapseWhitespace: reduce runs of whitespace to a single space.
//   - Fold: case-fold a string for case-insensitive comparisons.
//
// These are lightweight heuristics, not an HTML parser.
package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// StripTags removes markup of the form <...> from s. A tag ends at the first
// '>' after its '<'. A '<' with no closing '>' on the same line is kept as
// text, so "1 < 2" survives while "<b>bold</b>" becomes "bold".
func StripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); {
		if s[i] == '<' {
			if end := tagEnd(s[i+1:]); end >= 0 {
				i += end + 2
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// tagEnd returns the offset of the '>' closing a tag in rest, or -1 when the
// tag is not closed before the next newline.
func tagEnd(rest string) int {
	for j := 0; j < len(rest); j++ {
		switch rest[j] {
		case '>':
			return j
		case '\n':
			return -1
		}
	}
	return -1
}

// CollapseWhitespace replaces consecutive whitespace characters with a single
// ASCII space and trims leading and trailing whitespace.
func CollapseWhitespace(s string) string {
	if s == "" {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	seenSpace := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\u00a0':
			if !seenSpace {
				b.WriteByte(' ')
				seenSpace = true
			}
		default:
			b.WriteRune(r)
			seenSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}

// Fold lowercases s using Unicode rules. It is the single place that defines
// what "case-insensitive" means for header and answer comparisons.
func Fold(s string) string {
	if s == "" {
		return s
	}
	// A Caser carries state, so one is built per call.
	return cases.Lower(language.Und).String(s)
}
