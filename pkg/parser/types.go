// Package parser reads tabular event data (CSV and XLSX) into header-indexed tables.
package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("missing column")

// Format identifies a tabular input format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat infers the input format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("cannot infer format of %s (use csv or xlsx)", path)
	}
}

// Table is a header row plus data rows read from a tabular source.
type Table struct {
	// Source is the file the table was read from.
	Source string

	// Header holds the column names.
	Header []string

	// Rows holds the data rows. Short rows are padded to the header width.
	Rows [][]string

	columns map[string]int
}

// NewTable builds a table and its column index.
func NewTable(source string, header []string, rows [][]string) *Table {
	t := &Table{
		Source:  source,
		Header:  header,
		Rows:    rows,
		columns: make(map[string]int, len(header)),
	}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := t.columns[name]; !dup {
			t.columns[name] = i
		}
	}
	for i, row := range t.Rows {
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			t.Rows[i] = padded
		}
	}
	return t
}

// Column returns the index of a named column, or -1 if absent.
func (t *Table) Column(name string) int {
	if idx, ok := t.columns[name]; ok {
		return idx
	}
	return -1
}

// RequireColumns resolves every named column or reports the first missing one.
func (t *Table) RequireColumns(names ...string) ([]int, error) {
	idxs := make([]int, len(names))
	for i, name := range names {
		idx := t.Column(name)
		if idx < 0 {
			return nil, fmt.Errorf("%s: %w %q", t.Source, ErrMissingColumn, name)
		}
		idxs[i] = idx
	}
	return idxs, nil
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}
