// Package schema declares the relational model the loaders write to.
//
// Tables are described declaratively so every storage backend can render its
// own DDL. Each table has a surrogate "id" key and, where it has one, a unique
// natural key used for get-or-create lookups.
package schema

// ColumnType is a portable column type.
type ColumnType int

const (
	Integer ColumnType = iota
	Text
	Timestamp
)

// Column is one non-id column of a table.
type Column struct {
	Name    string
	Type    ColumnType
	NotNull bool
	// References names the table whose id this column points at.
	References string
}

// Table is a table with an implicit auto-increment "id" primary key.
type Table struct {
	Name    string
	Columns []Column
	// Unique is the natural key, empty when the table has none.
	Unique []string
}

// Column returns the named column.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

const (
	StudentTable       = "student"
	SchoolYearTable    = "school_year"
	SemesterTable      = "semester"
	TrimesterTable     = "trimester"
	MarkingPeriodTable = "marking_period"
	QuestionnaireTable = "student_experience_questionnaire"
	ImportLogTable     = "import_log"

	// QuestionnaireKey is the column linking a section row to its
	// questionnaire.
	QuestionnaireKey = "questionnaire_id"
)

func periodTable(name string) Table {
	return Table{
		Name: name,
		Columns: []Column{
			{Name: "school_year_id", Type: Integer, NotNull: true, References: SchoolYearTable},
			{Name: "name", Type: Text, NotNull: true},
			{Name: "time_series_sequence", Type: Integer, NotNull: true},
		},
		Unique: []string{"school_year_id", "name"},
	}
}

var coreTables = []Table{
	{
		Name:    StudentTable,
		Columns: []Column{{Name: "student_token", Type: Text, NotNull: true}},
		Unique:  []string{"student_token"},
	},
	{
		Name: SchoolYearTable,
		Columns: []Column{
			{Name: "school_year", Type: Integer, NotNull: true},
			{Name: "name", Type: Text, NotNull: true},
			{Name: "start_year", Type: Integer, NotNull: true},
		},
		Unique: []string{"school_year"},
	},
	periodTable(SemesterTable),
	periodTable(TrimesterTable),
	periodTable(MarkingPeriodTable),
	{
		Name: QuestionnaireTable,
		Columns: []Column{
			{Name: "student_id", Type: Integer, NotNull: true, References: StudentTable},
			{Name: "semester_id", Type: Integer, NotNull: true, References: SemesterTable},
		},
		Unique: []string{"student_id", "semester_id"},
	},
}

// ImportLog records every ingested source file.
var ImportLog = Table{
	Name: ImportLogTable,
	Columns: []Column{
		{Name: "run_id", Type: Text, NotNull: true},
		{Name: "job", Type: Text},
		{Name: "source", Type: Text, NotNull: true},
		{Name: "kind", Type: Text, NotNull: true},
		{Name: "checksum", Type: Text, NotNull: true},
		{Name: "row_count", Type: Integer, NotNull: true},
		{Name: "section_count", Type: Integer, NotNull: true},
		{Name: "finished_at", Type: Timestamp, NotNull: true},
	},
}

// Tables returns every table in creation order: referenced tables precede
// the tables that reference them.
func Tables() []Table {
	out := make([]Table, 0, len(coreTables)+len(sections)+1)
	out = append(out, coreTables...)
	for _, s := range sections {
		out = append(out, s.Table())
	}
	return append(out, ImportLog)
}

// Lookup returns the table with the given name.
func Lookup(name string) (Table, bool) {
	for _, t := range Tables() {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
