package excel

import "fmt"

// IngestionError reports a worksheet that cannot be read the way its import
// is configured: a header mismatch, an unbound reader, an empty sheet.
// It is always fatal to the file being ingested.
type IngestionError struct {
	Msg string
}

func (e *IngestionError) Error() string { return "excel ingestion: " + e.Msg }

// Ingestionf builds an *IngestionError from a format string.
func Ingestionf(format string, a ...any) error {
	return &IngestionError{Msg: fmt.Sprintf(format, a...)}
}
