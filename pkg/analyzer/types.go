// Package analyzer orchestrates transition extraction, reconciliation and
// aggregation into a single analysis result.
package analyzer

import (
	"time"

	"github.com/ccollicutt/waitlens/pkg/aggregate"
	"github.com/ccollicutt/waitlens/pkg/reasons"
	"github.com/ccollicutt/waitlens/pkg/stats"
	"github.com/ccollicutt/waitlens/pkg/transition"
)

// IssueType categorizes detected issues.
type IssueType string

const (
	// IssueTypeWaitExceeded indicates a transition whose metric exceeds max_wait.
	IssueTypeWaitExceeded IssueType = "wait_exceeded"

	// IssueTypeComponentMismatch indicates reasons rows whose causal components
	// do not add up to the total waiting time.
	IssueTypeComponentMismatch IssueType = "component_mismatch"
)

// Issue represents a single detected problem.
type Issue struct {
	// Type categorizes the issue.
	Type IssueType `json:"type"`

	// Check is the name of the check that raised the issue.
	Check string `json:"check"`

	// Transition is the affected transition.
	Transition transition.Key `json:"transition"`

	// Description is a human-readable summary of the issue.
	Description string `json:"description"`

	// Value is the observed value in seconds.
	Value float64 `json:"value"`

	// Limit is the threshold that was crossed, in seconds.
	Limit float64 `json:"limit"`

	// Rows is the number of reasons rows involved, if any.
	Rows int `json:"rows,omitempty"`
}

// TransitionResult holds the naive waiting-time view of one transition.
type TransitionResult struct {
	Key       transition.Key `json:"key"`
	Frequency int            `json:"frequency"`
	Stats     stats.Summary  `json:"stats"`

	// Overlaps counts instances whose destination started before the source
	// completed, giving a negative naive waiting time.
	Overlaps int `json:"overlaps"`
}

// MetricValue is an aggregated value with its shading intensity in [0, 1].
type MetricValue struct {
	Key       transition.Key `json:"key"`
	Value     float64        `json:"value"`
	Samples   int            `json:"samples"`
	Intensity float64        `json:"intensity"`
}

// AnalysisResult contains the complete analysis output.
type AnalysisResult struct {
	// RunID identifies this analysis run.
	RunID string

	// Metric and Notion are the selections applied.
	Metric stats.Metric
	Notion reasons.Column

	// Keys is the transition order every series below follows.
	Keys []transition.Key

	// Transitions holds the naive view for keys observed in the event log.
	Transitions []TransitionResult

	// Series holds every metric over the naive waiting times.
	Series map[stats.Metric][]aggregate.Value

	// Values holds the selected metric per transition: over the notion column
	// when a reasons report was given, otherwise over the naive waiting times.
	Values []MetricValue

	// Scale is the range Values were shaded against.
	Scale       aggregate.Scale
	GlobalScale bool

	// Breakdowns sums the causal components per transition. Empty without a
	// reasons report.
	Breakdowns []aggregate.Breakdown

	// Reconciled is the reasons report with simple waiting times merged in.
	// Nil without a reasons report.
	Reconciled *reasons.Report

	// Issues lists the findings of every check.
	Issues []Issue

	// Metadata provides context about the analysis.
	Metadata AnalysisMetadata
}

// AnalysisMetadata provides context about the analysis run.
type AnalysisMetadata struct {
	// ConfigFile is the path to the configuration file used.
	ConfigFile string

	// Sources lists the event log files that were analyzed.
	Sources []string

	// ReasonsFile is the reasons report path, if any.
	ReasonsFile string

	// StartTime is when analysis began.
	StartTime time.Time

	// EndTime is when analysis completed.
	EndTime time.Time

	// Occurrences, Traces, Activities and Resources count the event log.
	Occurrences int
	Traces      int
	Activities  int
	Resources   int

	// CaseDurations summarizes the per-case durations in seconds.
	CaseDurations stats.Summary
}

// HasIssues returns true if any check raised an issue.
func (r *AnalysisResult) HasIssues() bool {
	return len(r.Issues) > 0
}

// IssuesFor returns the issues raised for one transition.
func (r *AnalysisResult) IssuesFor(key transition.Key) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Transition == key {
			out = append(out, issue)
		}
	}
	return out
}
