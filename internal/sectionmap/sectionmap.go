// Package sectionmap routes survey answers onto questionnaire section
// attributes using a question text to "Model.attribute" table.
package sectionmap

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"rosteretl/internal/datasource/file"
	"rosteretl/internal/excel"
	"rosteretl/internal/schema"
	"rosteretl/internal/storage"
	"rosteretl/internal/textutil"
)

//go:embed default.yaml
var defaultYAML []byte

// Target is a section attribute.
type Target struct {
	Section   schema.Section
	Attribute string
}

func (t Target) String() string { return t.Section.Model + "." + t.Attribute }

// ParseTarget parses "Model.attribute" and checks both against the schema.
func ParseTarget(s string) (Target, error) {
	model, attr, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || model == "" || attr == "" {
		return Target{}, fmt.Errorf("target %q: want Model.attribute", s)
	}
	sec, ok := schema.SectionByModel(model)
	if !ok {
		return Target{}, fmt.Errorf("target %q: unknown section %q (have %s)", s, model, strings.Join(schema.Models(), ", "))
	}
	if !sec.HasAttribute(attr) {
		return Target{}, fmt.Errorf("target %q: %s has no attribute %q", s, model, attr)
	}
	return Target{Section: sec, Attribute: attr}, nil
}

// Entry maps one question text to a target.
type Entry struct {
	Question string
	Target   Target
}

// Map is a validated question to target table.
type Map struct {
	entries []Entry
	byKey   map[string]int
}

// key folds question text so lookups ignore case and repeated spaces.
func key(question string) string {
	return textutil.Fold(textutil.CollapseWhitespace(question))
}

// New validates entries: every question and every target appears once.
func New(entries []Entry) (*Map, error) {
	m := &Map{byKey: make(map[string]int, len(entries))}
	targets := map[string]string{}
	for _, e := range entries {
		k := key(e.Question)
		if k == "" {
			return nil, fmt.Errorf("section map: empty question for %s", e.Target)
		}
		if i, dup := m.byKey[k]; dup {
			return nil, fmt.Errorf("section map: question %q listed twice (%s and %s)", e.Question, m.entries[i].Target, e.Target)
		}
		if q, dup := targets[e.Target.String()]; dup {
			return nil, fmt.Errorf("section map: %s mapped from both %q and %q", e.Target, q, e.Question)
		}
		targets[e.Target.String()] = e.Question
		m.byKey[k] = len(m.entries)
		m.entries = append(m.entries, e)
	}
	return m, nil
}

type rawEntry struct {
	Question string `yaml:"question"`
	Target   string `yaml:"target"`
}

func fromRaw(raw []rawEntry) (*Map, error) {
	entries := make([]Entry, 0, len(raw))
	for i, r := range raw {
		t, err := ParseTarget(r.Target)
		if err != nil {
			return nil, fmt.Errorf("section map entry %d: %w", i+1, err)
		}
		entries = append(entries, Entry{Question: r.Question, Target: t})
	}
	return New(entries)
}

// Default returns the built-in map of the historical roster survey.
func Default() (*Map, error) { return LoadYAML(bytes.NewReader(defaultYAML)) }

// LoadYAML reads a map of the form
//
//	questions:
//	  - question: a. Do you like coming here?
//	    target: EnjoymentEngagementScale.you_like_coming_here
func LoadYAML(r io.Reader) (*Map, error) {
	var doc struct {
		Questions []rawEntry `yaml:"questions"`
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode section map: %w", err)
	}
	return fromRaw(doc.Questions)
}

// LoadWorkbook reads a map from the first two columns of a worksheet:
// question text and target, below a header row.
func LoadWorkbook(ctx context.Context, path, sheet string) (*Map, error) {
	s, err := excel.ReadSheet(ctx, file.NewLocal(path), sheet)
	if err != nil {
		return nil, err
	}
	var raw []rawEntry
	for _, row := range s.Rows[1:] {
		if len(row) < 2 || (excel.IsBlank(row[0]) && excel.IsBlank(row[1])) {
			continue
		}
		raw = append(raw, rawEntry{Question: excel.CellString(row[0]), Target: excel.CellString(row[1])})
	}
	return fromRaw(raw)
}

// Load reads a map from path, choosing the format by extension: .yaml and
// .yml files are YAML; anything else is a workbook read from Sheet1.
func Load(ctx context.Context, path string) (*Map, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return LoadYAML(f)
	default:
		return LoadWorkbook(ctx, path, "Sheet1")
	}
}

// Entries returns the entries in file order.
func (m *Map) Entries() []Entry { return slices.Clone(m.entries) }

// Lookup returns the target of a question.
func (m *Map) Lookup(question string) (Target, bool) {
	i, ok := m.byKey[key(question)]
	if !ok {
		return Target{}, false
	}
	return m.entries[i].Target, true
}

// Sections returns the sections the map writes to, in schema order.
func (m *Map) Sections() []schema.Section {
	var out []schema.Section
	for _, s := range schema.Sections() {
		if slices.ContainsFunc(m.entries, func(e Entry) bool { return e.Target.Section.Model == s.Model }) {
			out = append(out, s)
		}
	}
	return out
}

// SectionValues are the attribute values routed to one section.
type SectionValues struct {
	Section schema.Section
	Fields  []storage.Field
	// Answered counts fields whose question had an answer.
	Answered int
}

// Route spreads one semester's answers over the sections. Every section the
// map writes to is returned with every mapped attribute; attributes whose
// question is absent from answers are nil. Unmatched lists answered
// questions the map does not know, sorted.
func (m *Map) Route(answers map[string]any) (sections []SectionValues, unmatched []string) {
	byKey := make(map[string]any, len(answers))
	for q, v := range answers {
		k := key(q)
		byKey[k] = v
		if _, ok := m.byKey[k]; !ok {
			unmatched = append(unmatched, q)
		}
	}
	slices.Sort(unmatched)

	for _, sec := range m.Sections() {
		sv := SectionValues{Section: sec}
		for _, e := range m.entries {
			if e.Target.Section.Model != sec.Model {
				continue
			}
			v, ok := byKey[key(e.Question)]
			if ok && v != nil {
				sv.Answered++
			}
			sv.Fields = append(sv.Fields, storage.F(e.Target.Attribute, v))
		}
		sections = append(sections, sv)
	}
	return sections, unmatched
}
