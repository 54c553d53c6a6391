package reasons

import (
	"fmt"

	"github.com/ccollicutt/waitlens/pkg/transition"
)

// Report is an ordered collection of reasons rows.
type Report struct {
	Rows []Row
}

// Len returns the number of rows.
func (r *Report) Len() int {
	return len(r.Rows)
}

// Clone returns a deep copy of the report.
func (r *Report) Clone() *Report {
	rows := make([]Row, len(r.Rows))
	copy(rows, r.Rows)
	return &Report{Rows: rows}
}

// WithSimple returns a copy of the report with values merged into the Simple
// column, one value per row. The receiver is not modified.
func (r *Report) WithSimple(values []float64) (*Report, error) {
	if len(values) != len(r.Rows) {
		return nil, fmt.Errorf("merging simple waiting times: %d values for %d rows", len(values), len(r.Rows))
	}
	out := r.Clone()
	for i := range out.Rows {
		out.Rows[i].Simple = values[i]
	}
	return out, nil
}

// Reconciled reports whether every row carries a simple waiting time.
func (r *Report) Reconciled() bool {
	for _, row := range r.Rows {
		if !row.HasSimple() {
			return false
		}
	}
	return len(r.Rows) > 0
}

// Keys returns the distinct transitions of the report in first-appearance order.
func (r *Report) Keys() []transition.Key {
	seen := make(map[transition.Key]bool)
	var keys []transition.Key
	for _, row := range r.Rows {
		key := row.Key()
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}
