// Package survey turns the historical youth survey layout into answers.
//
// The historical layout keeps one column per (season, year, question), with
// headers such as "Fall-2015 a. Do you like coming here?". BuildCatalog parses
// and validates those headers; Project pivots one student row into answers
// keyed by semester and question text.
package survey

import (
	"regexp"

	"rosteretl/internal/textutil"
)

// headerPattern captures a leading word, the last four-digit run and the text
// after it. The greedy middle is what makes the year the last run.
var headerPattern = regexp.MustCompile(`^(\w*)(?:\s)?.*(\d{4})\s?(.*)`)

// HeaderFields are the three parts of a season question header.
type HeaderFields struct {
	Lead     string
	Year     string
	Question string
}

// ParseHeader splits a header into its lead word, year and question text.
// Markup tags are stripped from the question. It returns a *HeaderFormatError
// when the header does not match or any part is empty; the question is checked
// after stripping, so a header whose text is only markup is rejected.
func ParseHeader(text string) (HeaderFields, error) {
	m := headerPattern.FindStringSubmatch(text)
	if m == nil {
		return HeaderFields{}, &HeaderFormatError{Header: text, Reason: "no four-digit year"}
	}
	f := HeaderFields{Lead: m[1], Year: m[2], Question: textutil.StripTags(m[3])}
	switch {
	case f.Lead == "":
		return HeaderFields{}, &HeaderFormatError{Header: text, Reason: "missing leading word"}
	case f.Question == "":
		return HeaderFields{}, &HeaderFormatError{Header: text, Reason: "missing question text"}
	}
	return f, nil
}
