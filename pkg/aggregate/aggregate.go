// Package aggregate computes per-transition metrics over reasons report rows and
// transition sets, and the scales used to shade them.
package aggregate

import (
	"fmt"

	"github.com/ccollicutt/waitlens/pkg/reasons"
	"github.com/ccollicutt/waitlens/pkg/stats"
	"github.com/ccollicutt/waitlens/pkg/transition"
)

// Value pairs a transition with one aggregated scalar.
type Value struct {
	Key     transition.Key `json:"key"`
	Value   float64        `json:"value"`
	Samples int            `json:"samples"`
}

// FilterByTransition returns rows unchanged when key is nil, otherwise a new
// slice with the rows of that transition.
func FilterByTransition(rows []reasons.Row, key *transition.Key) []reasons.Row {
	if key == nil {
		return rows
	}
	var out []reasons.Row
	for _, row := range rows {
		if row.Key() == *key {
			out = append(out, row)
		}
	}
	return out
}

// Samples extracts a column from rows.
func Samples(rows []reasons.Row, column reasons.Column) ([]float64, error) {
	if _, err := reasons.ParseColumn(string(column)); err != nil {
		return nil, err
	}
	values := make([]float64, len(rows))
	for i, row := range rows {
		v, err := row.Value(column)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// ComputeMetric applies metric to column over rows. An empty row set yields 0.
func ComputeMetric(rows []reasons.Row, metric stats.Metric, column reasons.Column) (float64, error) {
	values, err := Samples(rows, column)
	if err != nil {
		return 0, err
	}
	return stats.Compute(metric, values)
}

// AggregateAll computes metric over column for every key, in the order of
// keys. Keys without rows get a zero value with Samples 0. Any error aborts the
// whole computation.
func AggregateAll(keys []transition.Key, rows []reasons.Row, metric stats.Metric, column reasons.Column) ([]Value, error) {
	if _, err := stats.ParseMetric(string(metric)); err != nil {
		return nil, err
	}

	grouped := make(map[transition.Key][]reasons.Row)
	for _, row := range rows {
		grouped[row.Key()] = append(grouped[row.Key()], row)
	}

	out := make([]Value, 0, len(keys))
	for _, key := range keys {
		subset := grouped[key]
		v, err := ComputeMetric(subset, metric, column)
		if err != nil {
			return nil, fmt.Errorf("transition %s: %w", key, err)
		}
		out = append(out, Value{Key: key, Value: v, Samples: len(subset)})
	}
	return out, nil
}

// AggregateTransitions computes metric over the naive waiting times of every
// transition in set, in key order.
func AggregateTransitions(set *transition.Set, metric stats.Metric) ([]Value, error) {
	if _, err := stats.ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	summaries := set.Summaries()
	out := make([]Value, 0, len(summaries))
	for _, s := range summaries {
		v, err := s.Stats.Value(metric)
		if err != nil {
			return nil, err
		}
		out = append(out, Value{Key: s.Key, Value: v, Samples: s.Frequency})
	}
	return out, nil
}

// Series computes every metric over the naive waiting times of set.
func Series(set *transition.Set) map[stats.Metric][]Value {
	series := make(map[stats.Metric][]Value, len(stats.Metrics()))
	for _, metric := range stats.Metrics() {
		// Metrics() only yields known metrics.
		values, _ := AggregateTransitions(set, metric)
		series[metric] = values
	}
	return series
}

// Lookup returns the value for key.
func Lookup(values []Value, key transition.Key) (Value, bool) {
	for _, v := range values {
		if v.Key == key {
			return v, true
		}
	}
	return Value{}, false
}
