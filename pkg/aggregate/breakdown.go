package aggregate

import (
	"github.com/ccollicutt/waitlens/pkg/reasons"
	"github.com/ccollicutt/waitlens/pkg/transition"
)

// Breakdown sums the total waiting time and its causal components for one
// transition.
type Breakdown struct {
	Key            transition.Key `json:"key"`
	Rows           int            `json:"rows"`
	Total          float64        `json:"wt_total"`
	Contention     float64        `json:"wt_contention"`
	Batching       float64        `json:"wt_batching"`
	Prioritization float64        `json:"wt_prioritization"`
	Unavailability float64        `json:"wt_unavailability"`
	Extraneous     float64        `json:"wt_extraneous"`
}

// ComponentSum adds the causal components.
func (b Breakdown) ComponentSum() float64 {
	return b.Contention + b.Batching + b.Prioritization + b.Unavailability + b.Extraneous
}

// Component returns the sum for one causal column. Unknown and non-causal
// columns yield 0.
func (b Breakdown) Component(column reasons.Column) float64 {
	switch column {
	case reasons.ColumnContention:
		return b.Contention
	case reasons.ColumnBatching:
		return b.Batching
	case reasons.ColumnPrioritization:
		return b.Prioritization
	case reasons.ColumnUnavailability:
		return b.Unavailability
	case reasons.ColumnExtraneous:
		return b.Extraneous
	}
	return 0
}

// ReasonsBreakdown sums the rows of key.
func ReasonsBreakdown(rows []reasons.Row, key transition.Key) Breakdown {
	b := Breakdown{Key: key}
	for _, row := range FilterByTransition(rows, &key) {
		b.Rows++
		b.Total += row.Total
		b.Contention += row.Contention
		b.Batching += row.Batching
		b.Prioritization += row.Prioritization
		b.Unavailability += row.Unavailability
		b.Extraneous += row.Extraneous
	}
	return b
}

// Breakdowns computes ReasonsBreakdown for each key in order.
func Breakdowns(keys []transition.Key, rows []reasons.Row) []Breakdown {
	out := make([]Breakdown, len(keys))
	for i, key := range keys {
		out[i] = ReasonsBreakdown(rows, key)
	}
	return out
}
