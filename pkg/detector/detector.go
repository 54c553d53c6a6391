// Package detector infers timestamp layouts and column roles from tabular
// event logs.
package detector

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ccollicutt/waitlens/pkg/eventlog"
	"github.com/ccollicutt/waitlens/pkg/parser"
)

const minConfidence = 0.5

// DetectionResult holds what was learned about a table.
type DetectionResult struct {
	Source        string
	SampledRows   int
	Columns       []ColumnDetection // Timestamp-like columns, in header order
	Suggested     eventlog.Columns  // Best guess at the column mapping
	AmbiguityNote string            // Warning about date ordering if applicable
}

// ColumnDetection lists the formats that matched one column.
type ColumnDetection struct {
	Name    string
	Index   int
	Matches []FormatMatch // Sorted by confidence descending
}

// Best returns the highest confidence match.
func (c ColumnDetection) Best() FormatMatch {
	return c.Matches[0]
}

// FormatMatch represents a format that matched with its confidence score.
type FormatMatch struct {
	Format     *TimestampFormat
	Confidence float64 // 0.0 to 1.0 (share of non-empty cells matched)
	MatchCount int
	Sample     string
	ParsedTime time.Time
}

// Detector inspects tables to identify timestamp formats.
type Detector struct {
	formats    []*TimestampFormat
	sampleSize int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of rows to sample (default 100).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// New creates a new Detector with default formats.
func New(opts ...Option) *Detector {
	d := &Detector{
		formats:    DefaultFormats(),
		sampleSize: 100,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFile reads a CSV or XLSX file and analyzes it.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	table, err := parser.ReadFile(path, "")
	if err != nil {
		return nil, err
	}
	return d.DetectTable(ctx, table)
}

// DetectTable analyzes the first sampled rows of every column.
func (d *Detector) DetectTable(ctx context.Context, table *parser.Table) (*DetectionResult, error) {
	rows := table.Rows
	if len(rows) > d.sampleSize {
		rows = rows[:d.sampleSize]
	}

	result := &DetectionResult{Source: table.Source, SampledRows: len(rows)}
	format, _ := parser.DetectFormat(table.Source)
	excel := format == parser.FormatXLSX

	for idx, name := range table.Header {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cells := make([]string, 0, len(rows))
		for _, row := range rows {
			if v := strings.TrimSpace(row[idx]); v != "" {
				cells = append(cells, v)
			}
		}

		matches := d.detectCells(cells, excel)
		if len(matches) == 0 || matches[0].Confidence < minConfidence {
			continue
		}
		result.Columns = append(result.Columns, ColumnDetection{
			Name:    strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")),
			Index:   idx,
			Matches: matches,
		})
	}

	result.Suggested = suggestColumns(table.Header, result.Columns)

	for _, c := range result.Columns {
		if c.Best().Format.Ambiguous {
			result.AmbiguityNote = "Column " + c.Name + " has date ordering ambiguity (MM/DD vs DD/MM). " +
				"Verify the layout matches your data. " +
				"For European format (DD/MM/YYYY), use layout: \"02/01/2006 15:04:05\""
			break
		}
	}

	return result, nil
}

// DetectCells returns the formats matching cells, best first. Excel serial
// dates are only considered for XLSX sources, where they cannot be confused
// with numeric ids.
func (d *Detector) DetectCells(cells []string) []FormatMatch {
	return d.detectCells(cells, false)
}

func (d *Detector) detectCells(cells []string, excel bool) []FormatMatch {
	if len(cells) == 0 {
		return nil
	}

	var matches []FormatMatch
	for _, format := range d.formats {
		if format.Layout == LayoutExcelSerial && !excel {
			continue
		}
		m := FormatMatch{Format: format}
		for _, cell := range cells {
			if !format.Pattern.MatchString(cell) {
				continue
			}
			ts, ok := parseCell(cell, format.Layout)
			if !ok {
				continue
			}
			if m.MatchCount == 0 {
				m.Sample = cell
				m.ParsedTime = ts
			}
			m.MatchCount++
		}
		if m.MatchCount == 0 {
			continue
		}
		m.Confidence = float64(m.MatchCount) / float64(len(cells))
		matches = append(matches, m)
	}

	// Ties keep the DefaultFormats order, which lists specific formats first.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	return matches
}

func parseCell(cell, layout string) (time.Time, bool) {
	if layout == LayoutExcelSerial {
		serial, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return time.Time{}, false
		}
		epoch := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
		return epoch.Add(time.Duration(serial * 24 * float64(time.Hour))).Round(time.Millisecond), true
	}
	t, err := time.Parse(layout, cell)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var roleAliases = map[string][]string{
	"case":     {"case:concept:name", "case_id", "caseid", "case id", "case"},
	"activity": {"concept:name", "activity", "activity_name", "task", "event"},
	"resource": {"org:resource", "resource", "user", "performer"},
	"start":    {"start_timestamp", "start_time", "starttime", "start"},
	"end":      {"time:timestamp", "end_timestamp", "end_time", "complete_timestamp", "endtime", "timestamp", "end"},
}

// suggestColumns maps header names to roles by alias. Without an end alias the
// last detected timestamp column that is not the start column becomes End.
func suggestColumns(header []string, detected []ColumnDetection) eventlog.Columns {
	normalized := make(map[string]string, len(header))
	for _, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		normalized[strings.ToLower(name)] = name
	}

	pick := func(role string) string {
		for _, alias := range roleAliases[role] {
			if name, ok := normalized[alias]; ok {
				return name
			}
		}
		return ""
	}

	cols := eventlog.Columns{
		Case:     pick("case"),
		Activity: pick("activity"),
		Resource: pick("resource"),
		Start:    pick("start"),
		End:      pick("end"),
	}

	if cols.End == "" {
		for _, c := range detected {
			if c.Name != cols.Start {
				cols.End = c.Name
			}
		}
	}
	return cols
}

// Layout returns the layout shared by most timestamp columns, or "" when none
// were found. Ties go to the earlier column.
func (r *DetectionResult) Layout() string {
	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, c := range r.Columns {
		layout := c.Best().Format.Layout
		if layout == LayoutExcelSerial {
			continue
		}
		counts[layout]++
		if counts[layout] > bestCount {
			best, bestCount = layout, counts[layout]
		}
	}
	return best
}

// HasMatch returns true if at least one timestamp column was found.
func (r *DetectionResult) HasMatch() bool {
	return len(r.Columns) > 0
}
