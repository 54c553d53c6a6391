package reasons

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ccollicutt/waitlens/pkg/parser"
)

// FromTable converts a parsed table into a report. Transition, case and end
// columns are required; resource, start and waiting-time columns are optional
// and default to empty or zero. A wt_simple column, when present, is carried
// over as already reconciled.
func FromTable(table *parser.Table, timestamps *parser.TimestampParser) (*Report, error) {
	idxs, err := table.RequireColumns(HeaderSourceActivity, HeaderDestinationActivity, HeaderCase, HeaderEnd)
	if err != nil {
		return nil, err
	}
	srcIdx, dstIdx, caseIdx, endIdx := idxs[0], idxs[1], idxs[2], idxs[3]
	srcResIdx := table.Column(HeaderSourceResource)
	dstResIdx := table.Column(HeaderDestinationResource)
	startIdx := table.Column(HeaderStart)

	report := &Report{Rows: make([]Row, 0, table.Len())}
	for i, cells := range table.Rows {
		line := i + 2
		row := Row{
			SourceActivity:      cells[srcIdx],
			DestinationActivity: cells[dstIdx],
			CaseID:              cells[caseIdx],
			SourceResource:      cell(cells, srcResIdx),
			DestinationResource: cell(cells, dstResIdx),
			Simple:              math.NaN(),
		}

		row.End, err = timestamps.Parse(cells[endIdx])
		if err != nil {
			return nil, fmt.Errorf("%s row %d column %q: %w", table.Source, line, HeaderEnd, err)
		}
		if v := cell(cells, startIdx); v != "" {
			row.Start, err = timestamps.Parse(v)
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %q: %w", table.Source, line, HeaderStart, err)
			}
		}

		for _, column := range Columns() {
			raw := strings.TrimSpace(cell(cells, table.Column(string(column))))
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %q: %w", table.Source, line, column, err)
			}
			row.set(column, v)
		}

		report.Rows = append(report.Rows, row)
	}

	return report, nil
}

func cell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

// ReadCSV reads a report from CSV.
func ReadCSV(r io.Reader, layout string) (*Report, error) {
	table, err := parser.ReadCSV("reasons", r)
	if err != nil {
		return nil, err
	}
	return FromTable(table, parser.NewTimestampParser(layout))
}

// ReadXLSX reads a report from the first sheet of a workbook.
func ReadXLSX(path, layout string) (*Report, error) {
	table, err := parser.ReadXLSXFile(path)
	if err != nil {
		return nil, err
	}
	return FromTable(table, parser.NewTimestampParser(layout).WithExcelSerial())
}

// Load reads a report file. An empty format is inferred from the extension.
func Load(path string, format parser.Format, layout string) (*Report, error) {
	if format == "" {
		detected, err := parser.DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}
	if format == parser.FormatXLSX {
		return ReadXLSX(path, layout)
	}

	table, err := parser.ReadFile(path, format)
	if err != nil {
		return nil, err
	}
	return FromTable(table, parser.NewTimestampParser(layout))
}

// Header returns the column names written by WriteCSV.
func Header() []string {
	header := []string{
		HeaderCase, HeaderSourceActivity, HeaderDestinationActivity,
		HeaderSourceResource, HeaderDestinationResource, HeaderStart, HeaderEnd,
	}
	for _, column := range Columns() {
		header = append(header, string(column))
	}
	return header
}

// Record renders a row in Header order. Unreconciled rows leave wt_simple empty.
func (r Row) Record() []string {
	record := []string{
		r.CaseID, r.SourceActivity, r.DestinationActivity,
		r.SourceResource, r.DestinationResource,
		formatTime(r.Start), formatTime(r.End),
	}
	for _, column := range Columns() {
		v, err := r.Value(column)
		if err != nil {
			record = append(record, "")
			continue
		}
		record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return record
}

// WriteCSV writes the report, including the wt_simple column.
func WriteCSV(w io.Writer, report *Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, row := range report.Rows {
		if err := writer.Write(row.Record()); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
