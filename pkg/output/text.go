package output

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ccollicutt/waitlens/pkg/reasons"
)

const barWidth = 20

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	keyStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FAFFF"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F5F"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFAF00"))
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "WaitLens: %d transitions, %d traces, %d total issues\n",
		report.Summary.Transitions,
		report.Summary.Traces,
		report.Summary.TotalIssues)
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	fmt.Fprintln(w, titleStyle.Render("=== WaitLens Analysis Report ==="))
	scale := "per-transition"
	if report.Summary.GlobalScale {
		scale = "global"
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("Metric: %s (%s scale %s .. %s)",
		report.ValueLabel(), scale,
		FormatSeconds(report.Scale.Min), FormatSeconds(report.Scale.Max))))
	fmt.Fprintln(w)

	for _, tr := range report.Transitions {
		f.formatTransition(report, tr, w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d transitions, %d occurrences in %d traces, %d total issues\n",
		report.Summary.Transitions,
		report.Summary.Occurrences,
		report.Summary.Traces,
		report.Summary.TotalIssues)

	if report.Summary.ReasonsRows > 0 {
		fmt.Fprintf(w, "Reasons rows reconciled: %d\n", report.Summary.ReasonsRows)
	}

	if f.opts.Verbose {
		cd := report.Metadata.CaseDurations
		fmt.Fprintf(w, "Case duration: mean %s, median %s, max %s\n",
			FormatSeconds(cd.Mean), FormatSeconds(cd.Median), FormatSeconds(cd.Max))
		fmt.Fprintf(w, "Run: %s\n", report.RunID)
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
	}

	return nil
}

func (f *TextFormatter) formatTransition(report *Report, tr TransitionReport, w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", keyStyle.Render("["+tr.Key.String()+"]"),
		mutedStyle.Render(fmt.Sprintf("%d instance(s)", tr.Frequency)))

	if tr.Samples == 0 {
		fmt.Fprintf(w, "  %s: no samples\n", report.ValueLabel())
	} else {
		fmt.Fprintf(w, "  %-24s %12s %s\n",
			report.ValueLabel()+":",
			FormatSeconds(tr.Value),
			barStyle.Render(bar(tr.Intensity)))
	}

	if f.opts.Verbose {
		n := tr.Naive
		fmt.Fprintf(w, "  naive wait: min %s, median %s, mean %s, max %s, stdev %s\n",
			FormatSeconds(n.Min), FormatSeconds(n.Median), FormatSeconds(n.Mean),
			FormatSeconds(n.Max), FormatSeconds(n.Stdev))
		if tr.Overlaps > 0 {
			fmt.Fprintf(w, "  overlapping instances: %d\n", tr.Overlaps)
		}
		if b, ok := report.Breakdown(tr.Key); ok && b.Rows > 0 {
			parts := make([]string, 0, len(reasons.Components()))
			for _, c := range reasons.Components() {
				if v := b.Component(c); v != 0 {
					parts = append(parts, fmt.Sprintf("%s %s", strings.TrimPrefix(string(c), "wt_"), FormatSeconds(v)))
				}
			}
			if len(parts) > 0 {
				fmt.Fprintf(w, "  reasons: %s\n", strings.Join(parts, ", "))
			}
		}
	}

	for _, issue := range report.IssuesFor(tr.Key) {
		fmt.Fprintf(w, "  %s %s\n", warnStyle.Render("!"), issue.Description)
	}

	fmt.Fprintln(w)
}

// bar draws intensity in [0, 1] as a fixed-width bar.
func bar(intensity float64) string {
	filled := int(math.Round(intensity * barWidth))
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}
