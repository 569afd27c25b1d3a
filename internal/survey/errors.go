package survey

import (
	"fmt"
	"strings"
)

// HeaderFormatError reports a header cell that is not a season question
// column. BuildCatalog recovers from it by skipping the column.
type HeaderFormatError struct {
	Header string
	Reason string
}

func (e *HeaderFormatError) Error() string {
	return fmt.Sprintf("header %q: %s", e.Header, e.Reason)
}

// ValidationError reports structural defects in a survey worksheet: duplicate
// questions, question sets that drift between years, an unknown student key
// column or rows that cannot be read. Every defect found is listed.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	switch len(e.Problems) {
	case 0:
		return "survey validation failed"
	case 1:
		return "survey validation: " + e.Problems[0]
	}
	return fmt.Sprintf("survey validation: %d problems:\n  %s",
		len(e.Problems), strings.Join(e.Problems, "\n  "))
}

func invalid(format string, a ...any) *ValidationError {
	return &ValidationError{Problems: []string{fmt.Sprintf(format, a...)}}
}
