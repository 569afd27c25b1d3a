package sectionmap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rosteretl/internal/excel/exceltest"
	"rosteretl/internal/schema"
	"rosteretl/internal/storage"
	"rosteretl/internal/survey"
)

func TestDefaultCoversEverySection(t *testing.T) {
	t.Parallel()

	m, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	total := 0
	for _, s := range schema.Sections() {
		total += len(s.Attributes)
	}
	if got := len(m.Entries()); got != total {
		t.Fatalf("default map has %d entries, want one per attribute (%d)", got, total)
	}
	if got := len(m.Sections()); got != len(schema.Sections()) {
		t.Fatalf("default map writes %d sections, want %d", got, len(schema.Sections()))
	}

	tgt, ok := m.Lookup("  c. do you FEEL   bored here? ")
	if !ok || tgt.String() != "EnjoymentEngagementScale.feel_bored" {
		t.Fatalf("Lookup = %v, %v", tgt, ok)
	}
}

// Question texts below are taken from real roster headers, as ParseHeader
// leaves them once the season and year are split off.
func TestDefaultRoutesRosterHeaders(t *testing.T) {
	t.Parallel()

	m, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	answers := map[string]any{}
	for header, answer := range map[string]int64{
		"Fall 2015 d. Is there an adult here who you will listen to and respect?":      4,
		"Spring-2016 c. Is there an adult here who helps you when you have a problem?": 3,
	} {
		f, err := survey.ParseHeader(header)
		if err != nil {
			t.Fatalf("ParseHeader(%q): %v", header, err)
		}
		answers[f.Question] = answer
	}

	sections, unmatched := m.Route(answers)
	if len(unmatched) != 0 {
		t.Fatalf("unmatched = %v", unmatched)
	}

	var got SectionValues
	for _, sv := range sections {
		if sv.Section.Model == "SupportiveAdultScale" {
			got = sv
		} else if sv.Answered != 0 {
			t.Errorf("%s answered = %d, want 0", sv.Section.Model, sv.Answered)
		}
	}
	adult, _ := schema.SectionByModel("SupportiveAdultScale")
	want := SectionValues{
		Section: adult,
		Fields: []storage.Field{
			storage.F("adult_interested_in_think", nil),
			storage.F("adult_can_talk_when_upset", nil),
			storage.F("adult_helps_with_problems", int64(3)),
			storage.F("adult_you_respect", int64(4)),
		},
		Answered: 2,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("SupportiveAdultScale mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTarget(t *testing.T) {
	t.Parallel()

	if _, err := ParseTarget("MathScale.interested_in_math"); err != nil {
		t.Fatalf("ParseTarget: %v", err)
	}
	for _, bad := range []string{"", "MathScale", "MathScale.", ".x", "Nope.x", "MathScale.go_to_college"} {
		if _, err := ParseTarget(bad); err == nil {
			t.Errorf("ParseTarget(%q) succeeded", bad)
		}
	}
}

func TestLoadYAMLRejects(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"unknown field": "questions:\n  - question: q\n    target: MathScale.interested_in_math\n    extra: 1\n",
		"bad target":    "questions:\n  - question: q\n    target: MathScale.nope\n",
		"dup question": "questions:\n  - question: Q\n    target: MathScale.interested_in_math\n" +
			"  - question: q\n    target: MathScale.math_is_something_good_at\n",
		"dup target": "questions:\n  - question: a\n    target: MathScale.interested_in_math\n" +
			"  - question: b\n    target: MathScale.interested_in_math\n",
	}
	for name, doc := range tests {
		if _, err := LoadYAML(strings.NewReader(doc)); err == nil {
			t.Errorf("%s: LoadYAML succeeded", name)
		}
	}
}

func TestLoadWorkbook(t *testing.T) {
	t.Parallel()

	path := exceltest.WriteWorkbook(t, "Sheet1", [][]any{
		{"question_text", "model_attribute"},
		{"I like coming here.", "EnjoymentEngagementScale.you_like_coming_here"},
		{nil, nil},
		{"I am good at reading.", "ReaderScale.good_at_reading"},
	})
	m, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var got []string
	for _, e := range m.Entries() {
		got = append(got, e.Question+" -> "+e.Target.String())
	}
	want := []string{
		"I like coming here. -> EnjoymentEngagementScale.you_like_coming_here",
		"I am good at reading. -> ReaderScale.good_at_reading",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "map.yml")
	doc := "questions:\n  - question: I have fun here.\n    target: EnjoymentEngagementScale.have_fun_here\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Entries()) != 1 {
		t.Fatalf("entries = %+v", m.Entries())
	}
}

func TestRoute(t *testing.T) {
	t.Parallel()

	m, err := LoadYAML(strings.NewReader(`questions:
  - question: I like coming here.
    target: EnjoymentEngagementScale.you_like_coming_here
  - question: I feel bored here.
    target: EnjoymentEngagementScale.feel_bored
  - question: I am good at reading.
    target: ReaderScale.good_at_reading
`))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}

	sections, unmatched := m.Route(map[string]any{
		"i like coming here.":   int64(4),
		"I am good at reading.": nil,
		"What is your name?":    "Sam",
	})

	enjoyment, _ := schema.SectionByModel("EnjoymentEngagementScale")
	reader, _ := schema.SectionByModel("ReaderScale")
	want := []SectionValues{
		{
			Section: enjoyment,
			Fields: []storage.Field{
				storage.F("you_like_coming_here", int64(4)),
				storage.F("feel_bored", nil),
			},
			Answered: 1,
		},
		{
			Section:  reader,
			Fields:   []storage.Field{storage.F("good_at_reading", nil)},
			Answered: 0,
		},
	}
	if diff := cmp.Diff(want, sections); diff != "" {
		t.Fatalf("Route mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"What is your name?"}, unmatched); diff != "" {
		t.Fatalf("unmatched mismatch (-want +got):\n%s", diff)
	}
}
