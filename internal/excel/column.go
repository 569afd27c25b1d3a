// Package excel reads spreadsheet worksheets into plain cell grids and holds
// the small helpers every worksheet-driven import shares: column label
// arithmetic, cell-to-string coercion, and the IngestionError type.
package excel

import (
	"fmt"
	"strings"
)

// ColumnIndex converts a spreadsheet column label such as "A", "ab" or "ATP"
// (case-insensitive) to a zero-based column index, so "A" is 0 and "ATP" is 1211.
func ColumnIndex(label string) (int, error) {
	if label == "" {
		return 0, fmt.Errorf("column label must not be empty")
	}
	total := 0
	for _, r := range strings.ToLower(label) {
		if r < 'a' || r > 'z' {
			return 0, fmt.Errorf("column label %q must be all alpha", label)
		}
		total = total*26 + int(r-'a'+1)
	}
	return total - 1, nil
}

// ColumnLabel is the inverse of ColumnIndex: 0 is "A", 25 is "Z", 26 is "AA".
// Negative indexes yield "".
func ColumnLabel(index int) string {
	if index < 0 {
		return ""
	}
	var buf [8]byte
	i := len(buf)
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		i--
		buf[i] = byte('A' + (n-1)%26)
	}
	return string(buf[i:])
}
