package survey

import (
	"fmt"
	"strconv"
	"strings"

	"rosteretl/internal/excel"
)

// Answers maps question text to the cell value given for it.
type Answers map[string]any

// AnswerTable maps a student token to that student's answers per semester
// key ("fall 2015").
type AnswerTable map[string]map[string]Answers

// SemesterKey joins a season and year the way AnswerTable keys them: the
// season lowercased, then a space, then the year.
func SemesterKey(season, year string) string {
	return strings.ToLower(season) + " " + year
}

// ParseSemesterKey splits a key produced by SemesterKey.
func ParseSemesterKey(key string) (season string, year int, err error) {
	s, y, ok := strings.Cut(key, " ")
	if !ok || s == "" {
		return "", 0, fmt.Errorf("semester key %q: want \"<season> <year>\"", key)
	}
	year, err = strconv.Atoi(y)
	if err != nil || len(y) != 4 {
		return "", 0, fmt.Errorf("semester key %q: bad year %q", key, y)
	}
	return s, year, nil
}

// Project pivots one data row into answers. The student token is the first
// cell rendered as a string. Every catalog question reads row[q.Index], so
// the row must have at least c.MaxIndex()+1 cells; Project does not check.
func Project(c *Catalog, row []any) AnswerTable {
	token := excel.CellString(row[0])
	semesters := make(map[string]Answers)
	for _, q := range c.Questions {
		key := q.SemesterKey()
		a, ok := semesters[key]
		if !ok {
			a = make(Answers)
			semesters[key] = a
		}
		a[q.Text] = row[q.Index]
	}
	return AnswerTable{token: semesters}
}
