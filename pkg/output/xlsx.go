package output

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/ccollicutt/waitlens/pkg/reasons"
	"github.com/ccollicutt/waitlens/pkg/stats"
)

// Sheet names of the XLSX report.
const (
	SheetTransitions = "Transitions"
	SheetMetric      = "Metric"
	SheetReasons     = "Reasons"
	SheetIssues      = "Issues"
)

// XLSXFormatter writes the report as an Excel workbook.
type XLSXFormatter struct {
	opts FormatOptions
}

// NewXLSXFormatter creates a new XLSX formatter with the given options.
func NewXLSXFormatter(opts FormatOptions) *XLSXFormatter {
	return &XLSXFormatter{opts: opts}
}

// Name returns the format name.
func (f *XLSXFormatter) Name() string {
	return "xlsx"
}

// Format writes one sheet per view. Quiet mode writes the Transitions sheet only.
func (f *XLSXFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	wb := excelize.NewFile()
	defer wb.Close()

	if err := wb.SetSheetName(wb.GetSheetName(0), SheetTransitions); err != nil {
		return err
	}
	if err := writeTransitions(wb, report); err != nil {
		return fmt.Errorf("writing %s sheet: %w", SheetTransitions, err)
	}

	if !f.opts.Quiet {
		writers := []struct {
			sheet string
			write func(*excelize.File, *Report) error
		}{
			{SheetMetric, writeSeries},
			{SheetReasons, writeReasons},
			{SheetIssues, writeIssues},
		}
		for _, sw := range writers {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := wb.NewSheet(sw.sheet); err != nil {
				return err
			}
			if err := sw.write(wb, report); err != nil {
				return fmt.Errorf("writing %s sheet: %w", sw.sheet, err)
			}
		}
	}

	return wb.Write(w)
}

func setRow(wb *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return wb.SetSheetRow(sheet, cell, &values)
}

func writeTransitions(wb *excelize.File, report *Report) error {
	header := []interface{}{
		"source", "destination", "frequency",
		"naive_min", "naive_median", "naive_mean", "naive_max", "naive_stdev", "overlaps",
		report.ValueLabel(), "samples", "intensity",
	}
	if err := setRow(wb, SheetTransitions, 1, header); err != nil {
		return err
	}
	for i, tr := range report.Transitions {
		n := tr.Naive
		row := []interface{}{
			tr.Key.Source, tr.Key.Destination, tr.Frequency,
			n.Min, n.Median, n.Mean, n.Max, n.Stdev, tr.Overlaps,
			tr.Value, tr.Samples, tr.Intensity,
		}
		if err := setRow(wb, SheetTransitions, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

// writeSeries lays out one column per metric over the naive waiting times.
func writeSeries(wb *excelize.File, report *Report) error {
	header := []interface{}{"source", "destination"}
	for _, m := range stats.Metrics() {
		header = append(header, string(m))
	}
	if err := setRow(wb, SheetMetric, 1, header); err != nil {
		return err
	}

	base := report.Series[stats.MetricSum]
	for i, v := range base {
		row := []interface{}{v.Key.Source, v.Key.Destination}
		for _, m := range stats.Metrics() {
			series := report.Series[m]
			if i < len(series) && series[i].Key == v.Key {
				row = append(row, series[i].Value)
			} else {
				row = append(row, nil)
			}
		}
		if err := setRow(wb, SheetMetric, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeReasons(wb *excelize.File, report *Report) error {
	header := []interface{}{"source", "destination", "rows", string(reasons.ColumnTotal)}
	for _, c := range reasons.Components() {
		header = append(header, string(c))
	}
	if err := setRow(wb, SheetReasons, 1, header); err != nil {
		return err
	}
	for i, b := range report.Breakdowns {
		row := []interface{}{b.Key.Source, b.Key.Destination, b.Rows, b.Total}
		for _, c := range reasons.Components() {
			row = append(row, b.Component(c))
		}
		if err := setRow(wb, SheetReasons, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeIssues(wb *excelize.File, report *Report) error {
	header := []interface{}{"type", "check", "source", "destination", "value", "limit", "rows", "description"}
	if err := setRow(wb, SheetIssues, 1, header); err != nil {
		return err
	}
	for i, issue := range report.Issues {
		row := []interface{}{
			string(issue.Type), issue.Check, issue.Transition.Source, issue.Transition.Destination,
			issue.Value, issue.Limit, issue.Rows, issue.Description,
		}
		if err := setRow(wb, SheetIssues, i+2, row); err != nil {
			return err
		}
	}
	return nil
}
