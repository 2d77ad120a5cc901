package pipeline

import (
	"fmt"
	"strings"
)

// InvalidInputError indicates request parameters that cannot be satisfied
// (row-selection mode, unknown or non-numeric columns, bad cluster count).
// It is raised before any stage runs.
type InvalidInputError struct {
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

func invalid(format string, args ...any) *InvalidInputError {
	return &InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}

// DegenerateColumnError lists every clustering column with at most one
// distinct non-missing value among the selected rows.
type DegenerateColumnError struct {
	Columns []string
}

func (e *DegenerateColumnError) Error() string {
	return fmt.Sprintf("degenerate clustering columns (at most one distinct value): %s", strings.Join(e.Columns, ", "))
}
