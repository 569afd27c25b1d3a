// Package worksheet binds configured questions to the columns of a survey
// worksheet and reads them row by row.
//
// A Question names a column by its spreadsheet label and the header text it
// expects there. Binding compares the worksheet's header with the expected
// text using Ratio, so small drift between export versions is tolerated.
package worksheet

import (
	"strings"

	"rosteretl/internal/excel"
	"rosteretl/internal/textutil"
	"rosteretl/internal/transform"
)

// DefaultFuzzyThreshold is the lowest Ratio a header may score against its
// expected text and still bind.
const DefaultFuzzyThreshold = 75

// Option configures a Runner.
type Option func(*Runner)

// WithHeaderRow sets the zero-based row holding the headers. Data starts on
// the row after it.
func WithHeaderRow(i int) Option { return func(r *Runner) { r.headerRow = i } }

// WithKeyColumn sets the zero-based column holding each row's primary key.
func WithKeyColumn(i int) Option { return func(r *Runner) { r.keyCol = i } }

// WithFuzzyThreshold sets the binding threshold on Ratio's 0-100 scale.
func WithFuzzyThreshold(n int) Option { return func(r *Runner) { r.threshold = n } }

// Runner reads every data row of one worksheet through its fields.
type Runner struct {
	headerRow int
	keyCol    int
	threshold int

	headers []string
	rows    [][]any
	fields  []Field
}

// Field is a bound question and the chain its values flow through. Source
// is the question itself when there is no transformation.
type Field struct {
	Question *Question
	Source   transform.Source
	Target   string
}

// Record is the answers of one data row, in field order.
type Record struct {
	Key    string
	Row    int
	Values []any
}

// NewRunner prepares a runner over sheet. It fails with an
// *excel.IngestionError when the header row is not in the sheet.
func NewRunner(sheet *excel.Sheet, opts ...Option) (*Runner, error) {
	r := &Runner{threshold: DefaultFuzzyThreshold}
	for _, o := range opts {
		o(r)
	}
	if r.headerRow < 0 || r.headerRow >= len(sheet.Rows) {
		return nil, excel.Ingestionf("%s: header row %d not found (sheet has %d rows)",
			sheet.Source, r.headerRow+1, len(sheet.Rows))
	}
	r.headers = sheet.Headers(r.headerRow)
	r.rows = sheet.Rows[r.headerRow+1:]
	return r, nil
}

// Headers returns the header row.
func (r *Runner) Headers() []string { return r.headers }

// Len is the number of data rows.
func (r *Runner) Len() int { return len(r.rows) }

// Fields returns the fields in the order they were added.
func (r *Runner) Fields() []Field { return r.fields }

// AddQuestion binds q and adds it as an untransformed field.
func (r *Runner) AddQuestion(q *Question) error {
	return r.AddField(Field{Question: q, Source: q})
}

// AddField binds f.Question to the runner and appends the field.
func (r *Runner) AddField(f Field) error {
	if err := f.Question.Bind(r); err != nil {
		return err
	}
	if f.Source == nil {
		f.Source = f.Question
	}
	r.fields = append(r.fields, f)
	return nil
}

// Run reads every data row through the fields. Rows whose cells are all blank
// are skipped. It fails with an *excel.IngestionError when no fields were
// added, a key is blank or a key repeats; field errors are returned as is.
func (r *Runner) Run() ([]Record, error) {
	if len(r.fields) == 0 {
		return nil, excel.Ingestionf("worksheet runner has no questions")
	}
	seen := make(map[string]int, len(r.rows))
	out := make([]Record, 0, len(r.rows))
	for i, row := range r.rows {
		if blankRow(row) {
			continue
		}
		key := r.key(row)
		if key == "" {
			return nil, excel.Ingestionf("row %d has no primary key in column %s",
				r.sheetRow(i), excel.ColumnLabel(r.keyCol))
		}
		if prev, dup := seen[key]; dup {
			return nil, excel.Ingestionf("primary key %s duplicate found at row %d (first at row %d)",
				key, r.sheetRow(i), r.sheetRow(prev))
		}
		seen[key] = i

		values := make([]any, len(r.fields))
		for j, f := range r.fields {
			v, err := f.Source.Value(i)
			if err != nil {
				return nil, err
			}
			values[j] = v
		}
		out = append(out, Record{Key: key, Row: r.sheetRow(i), Values: values})
	}
	return out, nil
}

func (r *Runner) key(row []any) string {
	if r.keyCol < 0 || r.keyCol >= len(row) {
		return ""
	}
	return strings.TrimSpace(excel.CellString(row[r.keyCol]))
}

// sheetRow converts a data row index to the one-based row number a person
// sees in the spreadsheet.
func (r *Runner) sheetRow(i int) int { return r.headerRow + i + 2 }

func blankRow(row []any) bool {
	for _, v := range row {
		if v != nil && v != "" {
			return false
		}
	}
	return true
}

// Question reads one column of a worksheet after checking its header.
type Question struct {
	Label    string
	Expected string

	index  int
	runner *Runner
}

// NewQuestion returns an unbound question for the column labelled label
// ("A", "ab") whose header should read expected.
func NewQuestion(label, expected string) (*Question, error) {
	idx, err := excel.ColumnIndex(label)
	if err != nil {
		return nil, err
	}
	return &Question{Label: strings.ToUpper(label), Expected: expected, index: idx}, nil
}

// Index is the zero-based column the question reads.
func (q *Question) Index() int { return q.index }

// Bind checks that the header at the question's column matches the expected
// text, compared lowercased, with a Ratio of at least the runner's threshold.
func (q *Question) Bind(r *Runner) error {
	if q.index >= len(r.headers) {
		return excel.Ingestionf("column %s is beyond the last header (%s)",
			q.Label, excel.ColumnLabel(len(r.headers)-1))
	}
	found := textutil.Fold(r.headers[q.index])
	want := textutil.Fold(q.Expected)
	if score := Ratio(found, want); score < r.threshold {
		return excel.Ingestionf("found header value %q in column %s did not exceed fuzzy match %q threshold of %d (score %d)",
			found, q.Label, want, r.threshold, score)
	}
	q.runner = r
	return nil
}

// Value returns the question's cell in data row row.
func (q *Question) Value(row int) (any, error) {
	if q.runner == nil {
		return nil, excel.Ingestionf("cannot get value of column %s without binding it to a worksheet", q.Label)
	}
	if len(q.runner.rows) == 0 {
		return nil, excel.Ingestionf("cannot get value of column %s: worksheet has no data", q.Label)
	}
	if row < 0 || row >= len(q.runner.rows) {
		return nil, excel.Ingestionf("row %d out of range for column %s", row, q.Label)
	}
	cells := q.runner.rows[row]
	if q.index >= len(cells) {
		return nil, nil
	}
	return cells[q.index], nil
}
