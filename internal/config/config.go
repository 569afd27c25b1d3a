// Package config defines the JSON run file consumed by cmd/etl: which
// database to write to, which spreadsheets to ingest, how survey headers are
// validated, and where metrics go.
//
// Example (trimmed):
//
//	{
//	  "job": "nightly-roster",
//	  "storage": { "kind": "sqlite", "dsn": "file:roster.db", "auto_create_schema": true },
//	  "sources": [
//	    { "kind": "roster", "path": "exports/roster.xlsx", "sheet": "Students" },
//	    { "kind": "survey", "path": "exports/fall.xlsx", "sheet": "Sheet1",
//	      "options": { "season": "fall", "year": 2018, "questions": "configs/fall.json" } }
//	  ],
//	  "survey": { "years": [2015, 2016, 2017, 2018] },
//	  "metrics": { "backend": "pushgateway", "pushgateway_url": "http://localhost:9091" }
//	}
package config

import (
	"encoding/json"

	"rosteretl/internal/survey"
)

// Source kinds.
const (
	KindRoster = "roster"
	KindSurvey = "survey"
)

// DefaultRosterSheet is the worksheet a roster export keeps its students on.
const DefaultRosterSheet = "Students"

// Run is the top-level object decoded from a run file.
type Run struct {
	// Job names the run in logs, metrics and the import log.
	Job     string   `json:"job"`
	Storage Storage  `json:"storage"`
	Sources []Source `json:"sources"`
	Survey  Survey   `json:"survey"`
	Metrics Metrics  `json:"metrics"`

	// SkipLog, when set, is a CSV path receiving every skipped header column
	// and unmatched question.
	SkipLog string `json:"skip_log"`
}

// Storage selects the database backend.
type Storage struct {
	// Kind is a registered storage kind: sqlite, postgres, mssql, mysql, memory.
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`

	// AutoCreateSchema creates missing tables before the first source is read.
	AutoCreateSchema bool `json:"auto_create_schema"`
}

// Source is one spreadsheet to ingest.
type Source struct {
	// Kind is "roster" (multi-year historical survey columns on the student
	// roster) or "survey" (a single-semester survey sheet read through a
	// question configuration).
	Kind  string `json:"kind"`
	Path  string `json:"path"`
	Sheet string `json:"sheet"`

	// Options are kind specific. For "survey": season (string), year (int),
	// questions (path to a question configuration JSON), header_row (int),
	// key_column (string column label), fuzzy_threshold (int).
	Options Options `json:"options"`
}

// Survey tunes how historical survey headers are recognized and checked.
// Empty fields fall back to survey.DefaultOptions.
type Survey struct {
	Seasons           []string `json:"seasons"`
	Years             []int    `json:"years"`
	ExcludedQuestions []string `json:"excluded_questions"`
	StudentKeyAliases []string `json:"student_key_aliases"`

	// SectionMap is a YAML or workbook file mapping question text to
	// Section.attribute. Empty uses the built-in map.
	SectionMap string `json:"section_map"`
}

// CatalogOptions converts s to the options BuildCatalog takes. Empty fields
// are filled with the catalog defaults there.
func (s Survey) CatalogOptions() survey.Options {
	return survey.Options{
		Seasons:           s.Seasons,
		Years:             s.Years,
		ExcludedQuestions: s.ExcludedQuestions,
		StudentKeyAliases: s.StudentKeyAliases,
	}
}

// Metrics selects an optional metrics backend.
type Metrics struct {
	// Backend is "pushgateway", "datadog", or "" / "none".
	Backend        string `json:"backend"`
	PushgatewayURL string `json:"pushgateway_url"`
	DatadogAddr    string `json:"datadog_addr"`
}

// Options fetches typed values from a free-form JSON object, returning def
// when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. encoding/json decodes numbers as
// float64, so integral floats are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			if n == float64(int(n)) {
				return int(n)
			}
		case int:
			return n
		}
	}
	return def
}

// StringSlice returns the strings of an array value, or nil.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Has reports whether key is present.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// UnmarshalJSON decodes a missing or null object to an empty, non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	var tmp map[string]any
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
