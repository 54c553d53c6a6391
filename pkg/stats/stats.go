// Package stats computes summary statistics over waiting-time samples.
package stats

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrUnknownMetric is returned for metric names outside the recognized set.
var ErrUnknownMetric = errors.New("unknown metric")

// Metric names a summary statistic.
type Metric string

const (
	MetricMin    Metric = "min"
	MetricMax    Metric = "max"
	MetricStdev  Metric = "stdev"
	MetricMedian Metric = "median"
	MetricMean   Metric = "mean"
	MetricSum    Metric = "sum"
)

// Metrics returns every recognized metric in canonical order.
func Metrics() []Metric {
	return []Metric{MetricMin, MetricMax, MetricStdev, MetricMedian, MetricMean, MetricSum}
}

// ParseMetric validates a metric name.
func ParseMetric(name string) (Metric, error) {
	for _, m := range Metrics() {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w %q (must be one of min, max, stdev, median, mean, sum)", ErrUnknownMetric, name)
}

// Summary holds aggregate statistics for a sample set.
type Summary struct {
	Count  int     `json:"count"`
	Sum    float64 `json:"sum"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Stdev  float64 `json:"stdev"`
}

// Summarize computes all statistics for values. An empty input yields the zero
// Summary; Stdev is the sample standard deviation and 0 for fewer than 2 values.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	s := Summary{
		Count:  len(values),
		Sum:    floats.Sum(values),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
		Mean:   stat.Mean(values, nil),
		Median: median(values),
	}
	if len(values) > 1 {
		s.Stdev = stat.StdDev(values, nil)
	}
	return s
}

// Value returns the statistic named by metric.
func (s Summary) Value(metric Metric) (float64, error) {
	switch metric {
	case MetricMin:
		return s.Min, nil
	case MetricMax:
		return s.Max, nil
	case MetricStdev:
		return s.Stdev, nil
	case MetricMedian:
		return s.Median, nil
	case MetricMean:
		return s.Mean, nil
	case MetricSum:
		return s.Sum, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrUnknownMetric, metric)
	}
}

// Compute applies a single metric to values.
func Compute(metric Metric, values []float64) (float64, error) {
	return Summarize(values).Value(metric)
}

// median averages the two middle values for even counts. values is not modified.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
