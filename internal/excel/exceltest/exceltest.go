// Package exceltest writes small workbooks for tests of packages that ingest
// spreadsheets.
package exceltest

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

// WriteWorkbook saves rows into sheet of a new .xlsx file under a fresh
// temporary directory and returns its path. Rows are written verbatim, so a
// nil cell stays blank and numbers keep their numeric type.
func WriteWorkbook(tb testing.TB, sheet string, rows [][]any) string {
	tb.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			tb.Fatalf("new sheet %q: %v", sheet, err)
		}
		if err := f.DeleteSheet("Sheet1"); err != nil {
			tb.Fatalf("delete default sheet: %v", err)
		}
	}

	for i, row := range rows {
		axis, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			tb.Fatalf("cell name: %v", err)
		}
		r := row
		if err := f.SetSheetRow(sheet, axis, &r); err != nil {
			tb.Fatalf("set row %d: %v", i+1, err)
		}
	}

	path := filepath.Join(tb.TempDir(), "book.xlsx")
	if err := f.SaveAs(path); err != nil {
		tb.Fatalf("save workbook: %v", err)
	}
	return path
}
