package parser

import "fmt"

// ParseError reports input whose structure cannot be interpreted at all.
type ParseError struct {
	Symbol string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Symbol, e.Reason)
}

// DataError reports input that was structurally readable but had no usable rows.
type DataError struct {
	Symbol  string
	Rows    int
	Skipped int
}

func (e *DataError) Error() string {
	return fmt.Sprintf("parse %s: no valid rows (%d read, %d skipped)", e.Symbol, e.Rows, e.Skipped)
}
