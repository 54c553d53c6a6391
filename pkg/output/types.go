// Package output provides formatting and output generation for analysis results.
package output

import (
	"time"

	"github.com/ccollicutt/waitlens/pkg/aggregate"
	"github.com/ccollicutt/waitlens/pkg/analyzer"
	"github.com/ccollicutt/waitlens/pkg/reasons"
	"github.com/ccollicutt/waitlens/pkg/stats"
	"github.com/ccollicutt/waitlens/pkg/transition"
)

// Report is the complete analysis output.
type Report struct {
	// RunID identifies the analysis run.
	RunID string `json:"run_id"`

	// Summary provides aggregate counts.
	Summary Summary `json:"summary"`

	// Transitions holds one entry per analyzed transition, in analysis order.
	Transitions []TransitionReport `json:"transitions"`

	// Scale is the range transitions were shaded against.
	Scale aggregate.Scale `json:"scale"`

	// Series holds every metric over the naive waiting times.
	Series map[stats.Metric][]aggregate.Value `json:"series,omitempty"`

	// Breakdowns sums causal components per transition.
	Breakdowns []aggregate.Breakdown `json:"breakdowns,omitempty"`

	// Issues lists every finding.
	Issues []analyzer.Issue `json:"issues"`

	// Metadata provides context about the analysis.
	Metadata Metadata `json:"metadata"`

	reconciled *reasons.Report
}

// Summary provides aggregate counts.
type Summary struct {
	Metric      stats.Metric   `json:"metric"`
	Notion      reasons.Column `json:"notion,omitempty"`
	GlobalScale bool           `json:"global_scale"`

	Transitions int `json:"transitions"`
	Occurrences int `json:"occurrences"`
	Traces      int `json:"traces"`
	Activities  int `json:"activities"`
	Resources   int `json:"resources"`
	ReasonsRows int `json:"reasons_rows"`
	TotalIssues int `json:"total_issues"`
}

// TransitionReport combines the naive and aggregated views of a transition.
type TransitionReport struct {
	Key transition.Key `json:"key"`

	// Frequency and Naive describe the naive waiting times from the event log.
	Frequency int           `json:"frequency"`
	Naive     stats.Summary `json:"naive"`
	Overlaps  int           `json:"overlaps"`

	// Value is the selected metric, Samples the number of values behind it.
	Value     float64 `json:"value"`
	Samples   int     `json:"samples"`
	Intensity float64 `json:"intensity"`
}

// Metadata provides context about the analysis run.
type Metadata struct {
	// ConfigFile is the path to the configuration file used.
	ConfigFile string `json:"config_file"`

	// Sources lists the event log files that were analyzed.
	Sources []string `json:"sources"`

	// ReasonsFile is the reasons report path, if any.
	ReasonsFile string `json:"reasons_file,omitempty"`

	// AnalyzedAt is when the analysis was performed.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Duration is how long the analysis took.
	Duration time.Duration `json:"duration"`

	// CaseDurations summarizes case durations in seconds.
	CaseDurations stats.Summary `json:"case_durations"`
}

// NewReport creates a Report from analysis results.
func NewReport(result *analyzer.AnalysisResult, configFile string) *Report {
	report := &Report{
		RunID:      result.RunID,
		Scale:      result.Scale,
		Series:     result.Series,
		Breakdowns: result.Breakdowns,
		Issues:     result.Issues,
		reconciled: result.Reconciled,
		Metadata: Metadata{
			ConfigFile:    configFile,
			Sources:       result.Metadata.Sources,
			ReasonsFile:   result.Metadata.ReasonsFile,
			AnalyzedAt:    result.Metadata.EndTime,
			Duration:      result.Metadata.EndTime.Sub(result.Metadata.StartTime),
			CaseDurations: result.Metadata.CaseDurations,
		},
		Summary: Summary{
			Metric:      result.Metric,
			GlobalScale: result.GlobalScale,
			Transitions: len(result.Keys),
			Occurrences: result.Metadata.Occurrences,
			Traces:      result.Metadata.Traces,
			Activities:  result.Metadata.Activities,
			Resources:   result.Metadata.Resources,
			TotalIssues: len(result.Issues),
		},
	}
	if report.Issues == nil {
		report.Issues = []analyzer.Issue{}
	}
	if result.Reconciled != nil {
		report.Summary.Notion = result.Notion
		report.Summary.ReasonsRows = result.Reconciled.Len()
	}

	naive := make(map[transition.Key]analyzer.TransitionResult, len(result.Transitions))
	for _, tr := range result.Transitions {
		naive[tr.Key] = tr
	}
	report.Transitions = make([]TransitionReport, len(result.Values))
	for i, v := range result.Values {
		tr := naive[v.Key]
		report.Transitions[i] = TransitionReport{
			Key:       v.Key,
			Frequency: tr.Frequency,
			Naive:     tr.Stats,
			Overlaps:  tr.Overlaps,
			Value:     v.Value,
			Samples:   v.Samples,
			Intensity: v.Intensity,
		}
	}

	return report
}

// HasIssues returns true if any issues were detected.
func (r *Report) HasIssues() bool {
	return r.Summary.TotalIssues > 0
}

// Reconciled returns the reasons report with simple waiting times, or nil.
func (r *Report) Reconciled() *reasons.Report {
	return r.reconciled
}

// Breakdown returns the breakdown for key.
func (r *Report) Breakdown(key transition.Key) (aggregate.Breakdown, bool) {
	for _, b := range r.Breakdowns {
		if b.Key == key {
			return b, true
		}
	}
	return aggregate.Breakdown{}, false
}

// IssuesFor returns the issues raised for key.
func (r *Report) IssuesFor(key transition.Key) []analyzer.Issue {
	var out []analyzer.Issue
	for _, issue := range r.Issues {
		if issue.Transition == key {
			out = append(out, issue)
		}
	}
	return out
}

// ValueLabel names what Transitions[].Value measures, e.g. "mean wt_total".
func (r *Report) ValueLabel() string {
	notion := "naive wait"
	if r.Summary.Notion != "" {
		notion = string(r.Summary.Notion)
	}
	return string(r.Summary.Metric) + " " + notion
}

// FormatSeconds renders a waiting time in seconds as a rounded duration.
func FormatSeconds(s float64) string {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond).String()
}
