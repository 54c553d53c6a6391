package parser

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ReadXLSXFile reads the first sheet of an Excel workbook as a table.
func ReadXLSXFile(path string) (*Table, error) {
	xlFile, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening xlsx %s: %w", path, err)
	}
	defer xlFile.Close()

	sheets := xlFile.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: no sheets found", path)
	}

	rows, err := xlFile.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%s: reading rows: %w", path, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, fmt.Errorf("%s: empty sheet %q", path, sheets[0])
	}
	header, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%s: reading header: %w", path, err)
	}

	var data [][]string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("%s: reading row %d: %w", path, len(data)+2, err)
		}
		if isBlank(cols) {
			continue
		}
		data = append(data, cols)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return NewTable(path, header, data), nil
}
