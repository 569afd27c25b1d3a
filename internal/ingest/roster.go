package ingest

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"rosteretl/internal/excel"
	"rosteretl/internal/sectionmap"
	"rosteretl/internal/survey"
)

// maxProblems caps the answer problems reported for one file.
const maxProblems = 25

// LoadRoster ingests the historical survey columns of a student roster
// workbook: every (student, semester) with answers becomes a questionnaire
// whose sections are filled from the section map.
func (l *Loader) LoadRoster(ctx context.Context, src Source, sheet string) (Result, error) {
	return l.run(ctx, src, KindRoster, func() (*prepared, error) {
		return l.prepareRoster(ctx, src, sheet)
	})
}

func (l *Loader) prepareRoster(ctx context.Context, src Source, sheet string) (*prepared, error) {
	sh, err := excel.ReadSheet(ctx, src, sheet)
	if err != nil {
		return nil, err
	}
	return l.prepareRosterSheet(src.Name(), sh)
}

// prepareRosterSheet validates an already loaded roster sheet and pivots its
// rows into buckets. name labels errors and skip log entries.
func (l *Loader) prepareRosterSheet(name string, sh *excel.Sheet) (*prepared, error) {
	headers := sh.Headers(0)
	if err := survey.CheckStudentKey(headers, l.catalog); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	cat, err := survey.BuildCatalog(headers, l.catalog)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	log := l.log.With(zap.String("source", name))
	for _, s := range cat.Skipped {
		if s.Index == 0 {
			continue
		}
		l.skips.Add("skipped header", name, s.Label, fmt.Sprintf("%s (%s)", s.Header, s.Reason))
		log.Debug("skipping header", zap.String("column", s.Label), zap.String("header", s.Header), zap.String("reason", s.Reason))
	}
	log.Info("question catalog built",
		zap.Int("questions", len(cat.Questions)),
		zap.Int("skipped_headers", len(cat.Skipped)),
		zap.Strings("semesters", cat.Semesters()))
	if len(cat.Questions) == 0 {
		log.Warn("no survey question columns found")
	}

	p := &prepared{}
	unmatched := map[string]bool{}
	need := cat.MaxIndex() + 1
	var problems []string
	for i, row := range sh.Rows[1:] {
		sheetRow := i + 2
		if blankRow(row) {
			continue
		}
		if len(row) < need {
			return nil, fmt.Errorf("%s: %w", name, &survey.ValidationError{Problems: []string{
				fmt.Sprintf("row %d has %d cells but the question columns reach column %s", sheetRow, len(row), excel.ColumnLabel(need-1)),
			}})
		}
		token := strings.TrimSpace(excel.CellString(row[0]))
		if token == "" {
			return nil, fmt.Errorf("%s: %w", name, &survey.ValidationError{Problems: []string{
				fmt.Sprintf("no student token in the first column of row %d", sheetRow),
			}})
		}
		p.rows++

		table := survey.Project(cat, row)
		semesters := table[excel.CellString(row[0])]
		for _, key := range sortedKeys(semesters) {
			season, year, err := survey.ParseSemesterKey(key)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d: %w", name, sheetRow, err)
			}
			secs, miss := l.sections.Route(semesters[key])
			for _, q := range miss {
				unmatched[q] = true
			}
			for j := range secs {
				problems = coerceSection(&secs[j], problems, fmt.Sprintf("row %d %s", sheetRow, key))
			}
			p.buckets = append(p.buckets, bucket{token: token, season: season, year: year, sections: secs})
		}
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%s: %w", name, &survey.ValidationError{Problems: capProblems(problems)})
	}

	for q := range unmatched {
		p.unmatched = append(p.unmatched, q)
	}
	slices.Sort(p.unmatched)
	return p, nil
}

// coerceSection converts routed answers to the integers section columns
// hold, appending a problem for every answer that is not one.
func coerceSection(sv *sectionmap.SectionValues, problems []string, where string) []string {
	for i, f := range sv.Fields {
		v, err := answerValue(f.Value)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %s.%s: %v", where, sv.Section.Model, f.Name, err))
			continue
		}
		sv.Fields[i].Value = v
	}
	return problems
}

// answerValue converts a cell to a section answer: nil for blanks, int64
// for integral numbers and numeric text.
func answerValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("answer %v is not a whole number", x)
		}
		return int64(x), nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), nil
		}
		return nil, fmt.Errorf("answer %q is not a number", x)
	default:
		return nil, fmt.Errorf("answer %v (%T) is not a number", v, v)
	}
}

func capProblems(p []string) []string {
	if len(p) <= maxProblems {
		return p
	}
	out := slices.Clone(p[:maxProblems])
	return append(out, fmt.Sprintf("... and %d more", len(p)-maxProblems))
}

func blankRow(row []any) bool {
	for _, v := range row {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return false
	}
	return true
}
