package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"

	"rosteretl/internal/datasource"
)

// Sheet is a worksheet loaded into memory as a grid of cells. Rows[0] is the
// header row for every layout this project reads; data starts at Rows[1].
//
// Every row is at least as wide as the header row: spreadsheet writers drop
// trailing blank cells, and the reader pads them back with nil so that column
// positions taken from the header are always addressable.
type Sheet struct {
	Source string
	Name   string
	Rows   [][]any
}

// Headers returns row i rendered as strings, normalized to NFKC so that
// non-breaking spaces and compatibility characters compare like their plain
// forms. It returns nil when the row does not exist.
func (s *Sheet) Headers(i int) []string {
	if i < 0 || i >= len(s.Rows) {
		return nil
	}
	row := s.Rows[i]
	out := make([]string, len(row))
	for j, v := range row {
		out[j] = norm.NFKC.String(CellString(v))
	}
	return out
}

// Width returns the number of cells in the header row.
func (s *Sheet) Width() int {
	if len(s.Rows) == 0 {
		return 0
	}
	return len(s.Rows[0])
}

// ReadSheet loads one worksheet from src. Files ending in .csv are read as a
// single sheet and the sheet name is ignored; anything else is opened as an
// Excel workbook and sheet must exist in it.
func ReadSheet(ctx context.Context, src datasource.Source, sheet string) (*Sheet, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var rows [][]any
	if strings.EqualFold(filepath.Ext(src.Name()), ".csv") {
		rows, err = readCSV(rc)
	} else {
		rows, err = readWorkbook(rc, sheet)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Name(), err)
	}
	if len(rows) == 0 {
		return nil, Ingestionf("sheet %q in %s has no rows", sheet, src.Name())
	}
	return &Sheet{Source: src.Name(), Name: sheet, Rows: padRows(rows)}, nil
}

func readWorkbook(r io.Reader, sheet string) ([][]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return nil, Ingestionf("sheet %q not found (have %s)", sheet, strings.Join(f.GetSheetList(), ", "))
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("get rows of %q: %w", sheet, err)
	}

	rows := make([][]any, len(raw))
	for r, cells := range raw {
		row := make([]any, len(cells))
		for c, s := range cells {
			if s == "" {
				continue
			}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			ct, err := f.GetCellType(sheet, axis)
			if err != nil {
				return nil, fmt.Errorf("cell type %s: %w", axis, err)
			}
			row[c] = typedCell(ct, s)
		}
		rows[r] = row
	}
	return rows, nil
}

// typedCell converts a raw cell string using the type recorded in the
// workbook. Numbers are stored untyped, so Unset is treated as numeric when
// the text parses as one.
func typedCell(ct excelize.CellType, s string) any {
	switch ct {
	case excelize.CellTypeBool:
		return s == "1" || strings.EqualFold(s, "true")
	case excelize.CellTypeNumber, excelize.CellTypeUnset, excelize.CellTypeDate:
		if v, ok := numeric(s); ok {
			return v
		}
	}
	return norm.NFC.String(s)
}

var csvDecimal = regexp.MustCompile(`^-?(0|[1-9][0-9]*)\.[0-9]+$`)

func readCSV(r io.Reader) ([][]any, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var rows [][]any
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
		}
		row := make([]any, len(rec))
		for i, s := range rec {
			row[i] = csvCell(s)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// csvCell only turns text into a number when nothing is lost: "0078" stays a
// string so identifiers keep their leading zeros.
func csvCell(s string) any {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(i, 10) == s {
		return i
	}
	if csvDecimal.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return norm.NFC.String(s)
}

func padRows(rows [][]any) [][]any {
	width := len(rows[0])
	for i, row := range rows {
		if len(row) < width {
			padded := make([]any, width)
			copy(padded, row)
			rows[i] = padded
		}
	}
	return rows
}
