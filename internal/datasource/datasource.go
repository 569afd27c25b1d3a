// Package datasource defines where ingestion input bytes come from. Readers
// in internal/excel depend only on Source, so tests and alternative origins
// can supply workbooks without touching the filesystem.
package datasource

import (
	"context"
	"io"
)

// Source opens a readable stream of a single input file.
type Source interface {
	// Open returns a fresh reader positioned at the start of the input.
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name identifies the input in logs and in the import log, typically a path.
	Name() string
}
