package ingest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"rosteretl/internal/excel"
	"rosteretl/internal/roster"
	"rosteretl/internal/schema"
	"rosteretl/internal/sectionmap"
	"rosteretl/internal/storage"
	"rosteretl/internal/survey"
	"rosteretl/internal/worksheet"
)

// SurveySheet describes a single-semester survey worksheet.
type SurveySheet struct {
	Sheet  string
	Season string
	Year   int

	// Questions bind columns of the sheet; answers of questions with a
	// Target are stored, the rest are only read and checked.
	Questions []worksheet.QuestionConfig

	HeaderRow      int
	KeyColumn      int
	FuzzyThreshold int
}

// LoadSurvey ingests a survey worksheet through its question configuration.
// The key column holds the student token.
func (l *Loader) LoadSurvey(ctx context.Context, src Source, ws SurveySheet) (Result, error) {
	return l.run(ctx, src, KindSurvey, func() (*prepared, error) {
		return l.prepareSurvey(ctx, src, ws)
	})
}

type targetedField struct {
	index  int
	target sectionmap.Target
}

func (l *Loader) prepareSurvey(ctx context.Context, src Source, ws SurveySheet) (*prepared, error) {
	if _, err := roster.Semesters.Canonical(ws.Season); err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name(), err)
	}
	fields, err := worksheet.Build(ws.Questions)
	if err != nil {
		return nil, err
	}
	var targeted []targetedField
	seen := map[string]string{}
	for i, f := range fields {
		if strings.TrimSpace(f.Target) == "" {
			continue
		}
		t, err := sectionmap.ParseTarget(f.Target)
		if err != nil {
			return nil, &worksheet.ConfigurationError{Column: f.Question.Label, Err: err}
		}
		if prev, dup := seen[t.String()]; dup {
			return nil, &worksheet.ConfigurationError{
				Column: f.Question.Label,
				Err:    fmt.Errorf("target %s is already stored from column %s", t, prev),
			}
		}
		seen[t.String()] = f.Question.Label
		targeted = append(targeted, targetedField{index: i, target: t})
	}

	sh, err := excel.ReadSheet(ctx, src, ws.Sheet)
	if err != nil {
		return nil, err
	}
	threshold := ws.FuzzyThreshold
	if threshold == 0 {
		threshold = worksheet.DefaultFuzzyThreshold
	}
	runner, err := worksheet.NewRunner(sh,
		worksheet.WithHeaderRow(ws.HeaderRow),
		worksheet.WithKeyColumn(ws.KeyColumn),
		worksheet.WithFuzzyThreshold(threshold))
	if err != nil {
		return nil, err
	}
	if err := runner.AddFields(fields); err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name(), err)
	}
	records, err := runner.Run()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Name(), err)
	}
	l.log.Info("survey questions bound",
		zap.String("source", src.Name()),
		zap.Int("questions", len(fields)),
		zap.Int("stored", len(targeted)),
		zap.Int("records", len(records)))

	p := &prepared{rows: len(records)}
	var problems []string
	for _, rec := range records {
		secs := groupTargets(targeted, rec.Values)
		for j := range secs {
			problems = coerceSection(&secs[j], problems, fmt.Sprintf("row %d", rec.Row))
		}
		p.buckets = append(p.buckets, bucket{token: rec.Key, season: ws.Season, year: ws.Year, sections: secs})
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("%s: %w", src.Name(), &survey.ValidationError{Problems: capProblems(problems)})
	}
	return p, nil
}

// groupTargets collects the targeted values of one record per section, in
// schema order.
func groupTargets(targeted []targetedField, values []any) []sectionmap.SectionValues {
	var out []sectionmap.SectionValues
	for _, sec := range schema.Sections() {
		sv := sectionmap.SectionValues{Section: sec}
		for _, t := range targeted {
			if t.target.Section.Model != sec.Model {
				continue
			}
			v := values[t.index]
			if v != nil {
				sv.Answered++
			}
			sv.Fields = append(sv.Fields, storage.F(t.target.Attribute, v))
		}
		if len(sv.Fields) > 0 {
			out = append(out, sv)
		}
	}
	return out
}
