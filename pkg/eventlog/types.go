// Package eventlog provides the in-memory, case-grouped event log model.
package eventlog

import (
	"errors"
	"time"
)

// ErrEndBeforeStart is returned when an occurrence completes before it starts.
var ErrEndBeforeStart = errors.New("end time before start time")

// Occurrence is one recorded performance of an activity within a case.
type Occurrence struct {
	// Index is the 0-based row position in the ingested log.
	Index int

	// CaseID groups occurrences into a trace.
	CaseID string

	// Activity is the name of the process step.
	Activity string

	// Resource is the actor that performed the activity. Empty when unknown.
	Resource string

	// Start is when the activity started.
	Start time.Time

	// End is when the activity completed.
	End time.Time
}

// Duration returns the processing time of the occurrence.
func (o Occurrence) Duration() time.Duration {
	return o.End.Sub(o.Start)
}

// Columns maps the logical event log fields to header names in tabular input.
type Columns struct {
	Case     string `yaml:"case"`
	Activity string `yaml:"activity"`
	Resource string `yaml:"resource,omitempty"`
	Start    string `yaml:"start,omitempty"`
	End      string `yaml:"end"`
}

// DefaultColumns returns the XES attribute names used by interval event logs.
func DefaultColumns() Columns {
	return Columns{
		Case:     "case:concept:name",
		Activity: "concept:name",
		Resource: "org:resource",
		Start:    "start_timestamp",
		End:      "time:timestamp",
	}
}
