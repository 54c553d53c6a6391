package output

import (
	"context"
	"encoding/json"
	"io"

	"github.com/ccollicutt/waitlens/pkg/aggregate"
	"github.com/ccollicutt/waitlens/pkg/reasons"
	"github.com/ccollicutt/waitlens/pkg/stats"
)

// JSONFormatter writes the report as indented JSON. Quiet writes the summary
// alone; verbose adds the naive series and the reconciled reasons rows.
type JSONFormatter struct {
	opts FormatOptions
}

func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

func (f *JSONFormatter) Name() string {
	return "json"
}

// jsonReport shadows Report.Series so it can be left out.
type jsonReport struct {
	*Report
	Series  map[stats.Metric][]aggregate.Value `json:"series,omitempty"`
	Reasons []jsonReasonRow                    `json:"reasons,omitempty"`
}

type jsonReasonRow struct {
	CaseID      string  `json:"case_id"`
	Source      string  `json:"source_activity"`
	Destination string  `json:"destination_activity"`
	Total       float64 `json:"wt_total"`
	Simple      float64 `json:"wt_simple"`
}

func (f *JSONFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if f.opts.Quiet {
		return encoder.Encode(report.Summary)
	}

	out := jsonReport{Report: report}
	if f.opts.Verbose {
		out.Series = report.Series
		out.Reasons = reasonRows(report.Reconciled())
	}
	return encoder.Encode(out)
}

// reasonRows flattens a fully reconciled report; anything else yields nil
// since unreconciled rows hold NaN.
func reasonRows(r *reasons.Report) []jsonReasonRow {
	if r == nil || !r.Reconciled() {
		return nil
	}
	rows := make([]jsonReasonRow, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = jsonReasonRow{
			CaseID:      row.CaseID,
			Source:      row.SourceActivity,
			Destination: row.DestinationActivity,
			Total:       row.Total,
			Simple:      row.Simple,
		}
	}
	return rows
}
