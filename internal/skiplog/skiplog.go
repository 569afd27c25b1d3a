// Package skiplog writes the columns and answers an import deliberately
// ignored to a CSV file so they can be reviewed after a run.
package skiplog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Header is the first row of every skip log.
var Header = []string{"reason", "source", "column", "detail"}

// Log appends skip entries to a CSV file and counts them per reason.
// A nil *Log accepts every call and records nothing.
type Log struct {
	mu      sync.Mutex
	reasons map[string]int
	w       *csv.Writer
	f       *os.File
}

// New creates path (and any missing parent directories), truncating an
// existing file, and writes the header row.
func New(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("skiplog: create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("skiplog: open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("skiplog: write header: %w", err)
	}
	return &Log{reasons: make(map[string]int), w: w, f: f}, nil
}

// Add records one skipped item. column is a spreadsheet column label or
// empty when the entry is not tied to a column.
func (l *Log) Add(reason, source, column, detail string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reasons[reason]++
	_ = l.w.Write([]string{reason, source, column, detail})
}

// Counts returns a copy of the per-reason totals.
func (l *Log) Counts() map[string]int {
	out := map[string]int{}
	if l == nil {
		return out
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range l.reasons {
		out[k] = v
	}
	return out
}

// Reasons returns the recorded reasons in sorted order.
func (l *Log) Reasons() []string {
	counts := l.Counts()
	out := make([]string, 0, len(counts))
	for k := range counts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Close flushes buffered rows and closes the file.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		_ = l.f.Close()
		return fmt.Errorf("skiplog: flush: %w", err)
	}
	return l.f.Close()
}
