// Package roster resolves natural keys (student tokens, school years,
// semesters and the questionnaire records hanging off them) to row ids,
// creating rows on first reference.
package roster

import (
	"context"
	"fmt"
	"strings"

	"rosteretl/internal/schema"
	"rosteretl/internal/storage"
)

type periodKey struct {
	table string
	year  int
	name  string
}

type sectionKey struct {
	table         string
	questionnaire int64
}

// Resolver caches resolved ids for the lifetime of one Store. Build a new
// Resolver for every transaction: ids cached from a rolled back transaction
// are not valid afterwards.
//
// Lookups are read-then-insert and assume a single writer.
type Resolver struct {
	store storage.Store

	students       map[string]int64
	years          map[int]int64
	periods        map[periodKey]int64
	questionnaires map[[2]int64]int64
	sections       map[sectionKey]int64

	// Created counts inserted rows per table.
	Created map[string]int
}

// NewResolver returns a Resolver writing through s.
func NewResolver(s storage.Store) *Resolver {
	return &Resolver{
		store:          s,
		students:       map[string]int64{},
		years:          map[int]int64{},
		periods:        map[periodKey]int64{},
		questionnaires: map[[2]int64]int64{},
		sections:       map[sectionKey]int64{},
		Created:        map[string]int{},
	}
}

func (r *Resolver) getOrCreate(ctx context.Context, table string, key, extra []storage.Field) (int64, error) {
	id, created, err := storage.GetOrCreate(ctx, r.store, table, key, extra)
	if err != nil {
		return 0, err
	}
	if created {
		r.Created[table]++
	}
	return id, nil
}

// Student resolves a student token.
func (r *Resolver) Student(ctx context.Context, token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, fmt.Errorf("student token must not be empty")
	}
	if id, ok := r.students[token]; ok {
		return id, nil
	}
	id, err := r.getOrCreate(ctx, schema.StudentTable,
		[]storage.Field{storage.F("student_token", token)}, nil)
	if err != nil {
		return 0, err
	}
	r.students[token] = id
	return id, nil
}

// SchoolYear resolves a school year by the calendar year it ends in.
func (r *Resolver) SchoolYear(ctx context.Context, year int) (int64, error) {
	if id, ok := r.years[year]; ok {
		return id, nil
	}
	id, err := r.getOrCreate(ctx, schema.SchoolYearTable,
		[]storage.Field{storage.F("school_year", year)},
		[]storage.Field{storage.F("name", SchoolYearName(year)), storage.F("start_year", startYear(year))})
	if err != nil {
		return 0, err
	}
	r.years[year] = id
	return id, nil
}

// Period resolves a named period of a school year in calendar c, creating
// the school year as needed.
func (r *Resolver) Period(ctx context.Context, c Calendar, year int, name string) (int64, error) {
	canon, err := c.Canonical(name)
	if err != nil {
		return 0, err
	}
	k := periodKey{table: c.Table, year: year, name: canon}
	if id, ok := r.periods[k]; ok {
		return id, nil
	}
	seq, err := c.Sequence(year, canon)
	if err != nil {
		return 0, err
	}
	yearID, err := r.SchoolYear(ctx, year)
	if err != nil {
		return 0, err
	}
	id, err := r.getOrCreate(ctx, c.Table,
		[]storage.Field{storage.F("school_year_id", yearID), storage.F("name", canon)},
		[]storage.Field{storage.F("time_series_sequence", seq)})
	if err != nil {
		return 0, err
	}
	r.periods[k] = id
	return id, nil
}

// Semester resolves a semester; season is matched case-insensitively.
func (r *Resolver) Semester(ctx context.Context, year int, season string) (int64, error) {
	return r.Period(ctx, Semesters, year, season)
}

// Trimester resolves a trimester (Fall, Winter, Spring).
func (r *Resolver) Trimester(ctx context.Context, year int, name string) (int64, error) {
	return r.Period(ctx, Trimesters, year, name)
}

// MarkingPeriod resolves a marking period (MP1 to MP4).
func (r *Resolver) MarkingPeriod(ctx context.Context, year int, name string) (int64, error) {
	return r.Period(ctx, MarkingPeriods, year, name)
}

// Questionnaire resolves the questionnaire container of a student for a
// semester.
func (r *Resolver) Questionnaire(ctx context.Context, studentID, semesterID int64) (int64, error) {
	k := [2]int64{studentID, semesterID}
	if id, ok := r.questionnaires[k]; ok {
		return id, nil
	}
	id, err := r.getOrCreate(ctx, schema.QuestionnaireTable,
		[]storage.Field{storage.F("student_id", studentID), storage.F("semester_id", semesterID)}, nil)
	if err != nil {
		return 0, err
	}
	r.questionnaires[k] = id
	return id, nil
}

// Section resolves the row of section sec belonging to a questionnaire.
func (r *Resolver) Section(ctx context.Context, sec schema.Section, questionnaireID int64) (int64, error) {
	k := sectionKey{table: sec.TableName, questionnaire: questionnaireID}
	if id, ok := r.sections[k]; ok {
		return id, nil
	}
	id, err := r.getOrCreate(ctx, sec.TableName,
		[]storage.Field{storage.F(schema.QuestionnaireKey, questionnaireID)}, nil)
	if err != nil {
		return 0, err
	}
	r.sections[k] = id
	return id, nil
}

// SetSection resolves the section row and writes values onto it. Every key
// of values must be an attribute of sec.
func (r *Resolver) SetSection(ctx context.Context, sec schema.Section, questionnaireID int64, values []storage.Field) (int64, error) {
	for _, f := range values {
		if !sec.HasAttribute(f.Name) {
			return 0, fmt.Errorf("%s has no attribute %q", sec.Model, f.Name)
		}
	}
	id, err := r.Section(ctx, sec, questionnaireID)
	if err != nil {
		return 0, err
	}
	if err := r.store.Update(ctx, sec.TableName, id, values); err != nil {
		return 0, err
	}
	return id, nil
}
