// Package tabular implements the spreadsheet import path: decoding
// uploaded files into a column/row table, suggesting the date and value
// columns, and mapping confirmed columns into parsed reading rows.
package tabular

import "errors"

var (
	// ErrEmptyFile is returned when a file holds no data rows.
	ErrEmptyFile = errors.New("tabular: file contains no data")
	// ErrMissingMapping is returned when the date or value column has
	// not been chosen before mapping.
	ErrMissingMapping = errors.New("tabular: date and value columns must be mapped")
	// ErrNoRows is returned when no row survives parsing.
	ErrNoRows = errors.New("tabular: no parseable rows")
)

// Table is a decoded upload: column names plus rows keyed by column.
type Table struct {
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"data"`
}
