package survey

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"rosteretl/internal/excel"
	"rosteretl/internal/textutil"
)

// Question is one recognized season question column.
type Question struct {
	Index  int    // zero-based column index
	Label  string // spreadsheet column label, for diagnostics
	Season string // as written in the header
	Year   string
	Text   string // markup stripped
}

// SemesterKey returns the key Project files this question's answers under.
func (q Question) SemesterKey() string { return SemesterKey(q.Season, q.Year) }

// SkippedHeader is a header cell BuildCatalog did not turn into a Question.
type SkippedHeader struct {
	Index  int
	Label  string
	Header string
	Reason string
}

// Catalog is the validated, ordered set of question columns of one worksheet.
type Catalog struct {
	Questions []Question
	Skipped   []SkippedHeader
}

// MaxIndex returns the highest column index any question reads, or -1 for
// an empty catalog. Rows must have at least MaxIndex()+1 cells.
func (c *Catalog) MaxIndex() int {
	hi := -1
	for _, q := range c.Questions {
		if q.Index > hi {
			hi = q.Index
		}
	}
	return hi
}

// Semesters returns the distinct semester keys of the catalog in column order.
func (c *Catalog) Semesters() []string {
	var out []string
	seen := map[string]bool{}
	for _, q := range c.Questions {
		k := q.SemesterKey()
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// Options controls which headers BuildCatalog accepts and which years it
// cross-checks.
type Options struct {
	// Seasons are the accepted lead words, compared case-insensitively.
	Seasons []string
	// Years is the closed set of survey years whose question sets must agree
	// within a season. Headers for other years are kept but not compared.
	Years []int
	// ExcludedQuestions are question texts that parse like questions but are
	// not, compared case-insensitively.
	ExcludedQuestions []string
	// StudentKeyAliases are the accepted headers of the student key column.
	StudentKeyAliases []string
}

// DefaultOptions matches the historical student roster workbook.
func DefaultOptions() Options {
	return Options{
		Seasons:           []string{"fall", "spring"},
		Years:             []int{2015, 2016, 2017, 2018},
		ExcludedQuestions: []string{"descriptionreading", "descriptionmath"},
		StudentKeyAliases: []string{"markelid", "studentid", "id", "pk"},
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if len(o.Seasons) == 0 {
		o.Seasons = d.Seasons
	}
	if len(o.Years) == 0 {
		o.Years = d.Years
	}
	if o.ExcludedQuestions == nil {
		o.ExcludedQuestions = d.ExcludedQuestions
	}
	if len(o.StudentKeyAliases) == 0 {
		o.StudentKeyAliases = d.StudentKeyAliases
	}
	return o
}

// CheckStudentKey verifies the first header names the student key column.
func CheckStudentKey(headers []string, opts Options) error {
	opts = opts.withDefaults()
	if len(headers) == 0 {
		return invalid("worksheet has no header row")
	}
	if !containsFold(opts.StudentKeyAliases, headers[0]) {
		return invalid("first column %q is not a known student id alias; "+
			"the first header must be one of %s",
			headers[0], strings.Join(opts.StudentKeyAliases, ", "))
	}
	return nil
}

// BuildCatalog recognizes the season question columns among headers and
// validates them. Headers that do not parse, do not start with a season or
// carry an excluded question are skipped and reported in Catalog.Skipped.
//
// It fails with a *ValidationError when a (season, year, question) triple
// repeats, ignoring case, or when, within a season, two consecutive years of
// Options.Years disagree on the number of questions or on their texts.
func BuildCatalog(headers []string, opts Options) (*Catalog, error) {
	opts = opts.withDefaults()
	c := &Catalog{}

	for i, h := range headers {
		label := excel.ColumnLabel(i)
		f, err := ParseHeader(h)
		var hfe *HeaderFormatError
		reason := ""
		switch {
		case errors.As(err, &hfe):
			reason = hfe.Reason
		case !containsFold(opts.Seasons, f.Lead):
			reason = fmt.Sprintf("%q is not a season", f.Lead)
		case containsFold(opts.ExcludedQuestions, f.Question):
			reason = "excluded question"
		}
		if reason != "" {
			c.Skipped = append(c.Skipped, SkippedHeader{Index: i, Label: label, Header: h, Reason: reason})
			continue
		}
		c.Questions = append(c.Questions, Question{
			Index:  i,
			Label:  label,
			Season: f.Lead,
			Year:   f.Year,
			Text:   f.Question,
		})
	}

	if problems := duplicates(c.Questions); len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	var problems []string
	for _, season := range opts.Seasons {
		problems = append(problems, checkSeason(c.Questions, season, opts.Years)...)
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return c, nil
}

type triple struct{ season, year, text string }

func duplicates(qs []Question) []string {
	first := make(map[triple]Question, len(qs))
	var problems []string
	for _, q := range qs {
		k := triple{textutil.Fold(q.Season), q.Year, textutil.Fold(q.Text)}
		if prev, ok := first[k]; ok {
			problems = append(problems, fmt.Sprintf(
				"duplicate question %q for %s %s: column %s repeats column %s",
				q.Text, q.Season, q.Year, q.Label, prev.Label))
			continue
		}
		first[k] = q
	}
	return problems
}

// checkSeason compares the question sets of consecutive years of one season.
// An empty year compared with an empty year passes.
func checkSeason(qs []Question, season string, years []int) []string {
	groups := make([][]Question, len(years))
	for i, y := range years {
		ys := strconv.Itoa(y)
		for _, q := range qs {
			if q.Year == ys && strings.EqualFold(q.Season, season) {
				groups[i] = append(groups[i], q)
			}
		}
	}

	var problems []string
	for i := 1; i < len(groups); i++ {
		prev, next := groups[i-1], groups[i]
		stem := fmt.Sprintf("%s %d and %s %d question collections",
			season, years[i-1], season, years[i])
		if len(prev) != len(next) {
			problems = append(problems, fmt.Sprintf("%s are of different length (%d vs %d)",
				stem, len(prev), len(next)))
			continue
		}
		if diff := textDifference(prev, next); len(diff) > 0 {
			problems = append(problems, fmt.Sprintf("%s contain different question text: %s",
				stem, strings.Join(diff, ", ")))
		}
	}
	return problems
}

// textDifference lists the question texts present in only one of a and b,
// compared case-insensitively, sorted for stable messages.
func textDifference(a, b []Question) []string {
	set := func(qs []Question) map[string]string {
		m := make(map[string]string, len(qs))
		for _, q := range qs {
			m[textutil.Fold(q.Text)] = q.Text
		}
		return m
	}
	sa, sb := set(a), set(b)
	var diff []string
	for k, v := range sa {
		if _, ok := sb[k]; !ok {
			diff = append(diff, strconv.Quote(v))
		}
	}
	for k, v := range sb {
		if _, ok := sa[k]; !ok {
			diff = append(diff, strconv.Quote(v))
		}
	}
	sort.Strings(diff)
	return diff
}

func containsFold(list []string, s string) bool {
	f := textutil.Fold(s)
	return slices.ContainsFunc(list, func(v string) bool { return textutil.Fold(v) == f })
}
