// Package reasons models the causal waiting-time report produced by an external
// analysis, one row per transition instance.
package reasons

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ccollicutt/waitlens/pkg/transition"
)

var (
	// ErrUnknownColumn is returned for waiting-time columns outside the recognized set.
	ErrUnknownColumn = errors.New("unknown waiting-time column")

	// ErrNotReconciled is returned when the simple waiting time of a row is read
	// before reconciliation.
	ErrNotReconciled = errors.New("simple waiting time not reconciled")
)

// Column names a numeric waiting-time column of the report.
type Column string

const (
	ColumnTotal          Column = "wt_total"
	ColumnSimple         Column = "wt_simple"
	ColumnContention     Column = "wt_contention"
	ColumnBatching       Column = "wt_batching"
	ColumnPrioritization Column = "wt_prioritization"
	ColumnUnavailability Column = "wt_unavailability"
	ColumnExtraneous     Column = "wt_extraneous"
)

// Header names of the non-numeric columns.
const (
	HeaderSourceActivity      = "source_activity"
	HeaderDestinationActivity = "destination_activity"
	HeaderSourceResource      = "source_resource"
	HeaderDestinationResource = "destination_resource"
	HeaderCase                = "case_id"
	HeaderStart               = "start_time"
	HeaderEnd                 = "end_time"
)

// Columns returns every waiting-time column in report order.
func Columns() []Column {
	return []Column{
		ColumnTotal, ColumnContention, ColumnBatching, ColumnPrioritization,
		ColumnUnavailability, ColumnExtraneous, ColumnSimple,
	}
}

// Components returns the causal components that add up to the total.
func Components() []Column {
	return []Column{
		ColumnContention, ColumnBatching, ColumnPrioritization,
		ColumnUnavailability, ColumnExtraneous,
	}
}

// ParseColumn validates a column name.
func ParseColumn(name string) (Column, error) {
	for _, c := range Columns() {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownColumn, name)
}

// Row is one transition instance of the reasons report. Waiting times are in
// seconds.
type Row struct {
	SourceActivity      string
	DestinationActivity string
	SourceResource      string
	DestinationResource string
	CaseID              string

	// Start and End are the row's own recorded timestamps. End identifies
	// which repetition of the source activity the row refers to.
	Start time.Time
	End   time.Time

	Total          float64
	Contention     float64
	Batching       float64
	Prioritization float64
	Unavailability float64
	Extraneous     float64

	// Simple is the reconciled waiting time. NaN until reconciled.
	Simple float64
}

// HasSimple reports whether the row carries a reconciled waiting time.
func (r Row) HasSimple() bool {
	return !math.IsNaN(r.Simple)
}

// Key returns the transition the row belongs to.
func (r Row) Key() transition.Key {
	return transition.Key{Source: r.SourceActivity, Destination: r.DestinationActivity}
}

// Value returns the named waiting-time column.
func (r Row) Value(column Column) (float64, error) {
	switch column {
	case ColumnTotal:
		return r.Total, nil
	case ColumnContention:
		return r.Contention, nil
	case ColumnBatching:
		return r.Batching, nil
	case ColumnPrioritization:
		return r.Prioritization, nil
	case ColumnUnavailability:
		return r.Unavailability, nil
	case ColumnExtraneous:
		return r.Extraneous, nil
	case ColumnSimple:
		if !r.HasSimple() {
			return 0, fmt.Errorf("case %s %s: %w", r.CaseID, r.Key(), ErrNotReconciled)
		}
		return r.Simple, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrUnknownColumn, column)
	}
}

// ComponentSum adds the causal components. For well-formed reports it
// approximates Total.
func (r Row) ComponentSum() float64 {
	return r.Contention + r.Batching + r.Prioritization + r.Unavailability + r.Extraneous
}

func (r *Row) set(column Column, v float64) {
	switch column {
	case ColumnTotal:
		r.Total = v
	case ColumnContention:
		r.Contention = v
	case ColumnBatching:
		r.Batching = v
	case ColumnPrioritization:
		r.Prioritization = v
	case ColumnUnavailability:
		r.Unavailability = v
	case ColumnExtraneous:
		r.Extraneous = v
	case ColumnSimple:
		r.Simple = v
	}
}
