package eventlog

import (
	"fmt"

	"github.com/ccollicutt/waitlens/pkg/parser"
)

// FromTable converts table rows to occurrences in row order. Resource and
// start columns are optional; a missing or empty start falls back to the end
// timestamp.
func FromTable(table *parser.Table, cols Columns, timestamps *parser.TimestampParser) ([]Occurrence, error) {
	idxs, err := table.RequireColumns(cols.Case, cols.Activity, cols.End)
	if err != nil {
		return nil, err
	}
	caseIdx, activityIdx, endIdx := idxs[0], idxs[1], idxs[2]

	resourceIdx := -1
	if cols.Resource != "" {
		resourceIdx = table.Column(cols.Resource)
	}
	startIdx := -1
	if cols.Start != "" {
		startIdx = table.Column(cols.Start)
	}

	occurrences := make([]Occurrence, 0, table.Len())
	for i, row := range table.Rows {
		end, err := timestamps.Parse(row[endIdx])
		if err != nil {
			return nil, fmt.Errorf("%s row %d column %q: %w", table.Source, i+2, cols.End, err)
		}

		start := end
		if startIdx >= 0 && row[startIdx] != "" {
			start, err = timestamps.Parse(row[startIdx])
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %q: %w", table.Source, i+2, cols.Start, err)
			}
		}

		occ := Occurrence{
			CaseID:   row[caseIdx],
			Activity: row[activityIdx],
			Start:    start,
			End:      end,
		}
		if resourceIdx >= 0 {
			occ.Resource = row[resourceIdx]
		}
		occurrences = append(occurrences, occ)
	}

	return occurrences, nil
}

// Load reads one or more event log files in order and builds a Log. Rows of
// later files follow rows of earlier files in log order.
func Load(paths []string, format parser.Format, cols Columns, layout string) (*Log, error) {
	timestamps := parser.NewTimestampParser(layout)

	var occurrences []Occurrence
	for _, path := range paths {
		table, err := parser.ReadFile(path, format)
		if err != nil {
			return nil, err
		}

		ts := timestamps
		if f, _ := parser.DetectFormat(path); f == parser.FormatXLSX || format == parser.FormatXLSX {
			ts = timestamps.WithExcelSerial()
		}

		occs, err := FromTable(table, cols, ts)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, occs...)
	}

	return New(occurrences)
}
