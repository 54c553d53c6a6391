package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadCSV reads a comma-separated table with a header row.
func ReadCSV(source string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty input", source)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: reading header: %w", source, err)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		if isBlank(record) {
			continue
		}
		rows = append(rows, record)
	}

	return NewTable(source, header, rows), nil
}

// ReadCSVFile opens and reads a CSV file.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return ReadCSV(path, f)
}

// ReadFile reads a table in the given format. An empty format is inferred
// from the file extension.
func ReadFile(path string, format Format) (*Table, error) {
	if format == "" {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	switch format {
	case FormatCSV:
		return ReadCSVFile(path)
	case FormatXLSX:
		return ReadXLSXFile(path)
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
}

func isBlank(record []string) bool {
	for _, field := range record {
		if field != "" {
			return false
		}
	}
	return true
}
