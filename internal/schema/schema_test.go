package schema

import (
	"testing"
)

func TestTablesReferenceEarlierTables(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for _, tbl := range Tables() {
		if seen[tbl.Name] {
			t.Fatalf("table %s declared twice", tbl.Name)
		}
		for _, c := range tbl.Columns {
			if c.References != "" && !seen[c.References] {
				t.Errorf("%s.%s references %s before it is created", tbl.Name, c.Name, c.References)
			}
		}
		for _, u := range tbl.Unique {
			if _, ok := tbl.Column(u); !ok {
				t.Errorf("%s unique key names unknown column %s", tbl.Name, u)
			}
		}
		seen[tbl.Name] = true
	}
	if len(seen) != 14 {
		t.Fatalf("got %d tables, want 14", len(seen))
	}
}

func TestSections(t *testing.T) {
	t.Parallel()

	want := map[string]int{
		"SupportiveSocialEnvironmentScale": 6,
		"EnjoymentEngagementScale":         4,
		"FeelChallengedScale":              3,
		"SupportiveAdultScale":             4,
		"ReaderScale":                      5,
		"MathScale":                        6,
		"RetrospectiveQuestionnaire":       8,
	}
	if len(Models()) != len(want) {
		t.Fatalf("Models() = %v", Models())
	}
	for model, n := range want {
		s, ok := SectionByModel(model)
		if !ok {
			t.Fatalf("SectionByModel(%q) not found", model)
		}
		if len(s.Attributes) != n {
			t.Errorf("%s has %d attributes, want %d", model, len(s.Attributes), n)
		}
		tbl, ok := Lookup(s.TableName)
		if !ok {
			t.Fatalf("Lookup(%q) not found", s.TableName)
		}
		if len(tbl.Columns) != n+1 || tbl.Columns[0].Name != QuestionnaireKey {
			t.Errorf("%s columns = %+v", s.TableName, tbl.Columns)
		}
	}
	if _, ok := SectionByModel("Nope"); ok {
		t.Fatalf("SectionByModel found an unknown model")
	}
	s, _ := SectionByModel("EnjoymentEngagementScale")
	if !s.HasAttribute("feel_bored") || s.HasAttribute("go_to_college") {
		t.Fatalf("HasAttribute misreports membership")
	}
}
