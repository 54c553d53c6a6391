package aggregate

import (
	"github.com/ccollicutt/waitlens/pkg/reasons"
	"github.com/ccollicutt/waitlens/pkg/transition"
)

// Scale is the value range used to shade a series.
type Scale struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ScaleOf returns the range of values. Empty input yields the zero Scale.
func ScaleOf(values []float64) Scale {
	if len(values) == 0 {
		return Scale{}
	}
	s := Scale{Min: values[0], Max: values[0]}
	for _, v := range values[1:] {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	return s
}

// Normalize maps v into [0, 1]. A degenerate scale maps everything to 1.
func (s Scale) Normalize(v float64) float64 {
	if s.Max == s.Min {
		return 1
	}
	n := (v - s.Min) / (s.Max - s.Min)
	switch {
	case n < 0:
		return 0
	case n > 1:
		return 1
	}
	return n
}

// GlobalScale is the range of column over every row of the report.
func GlobalScale(rows []reasons.Row, column reasons.Column) (Scale, error) {
	values, err := Samples(rows, column)
	if err != nil {
		return Scale{}, err
	}
	return ScaleOf(values), nil
}

// TransitionScale is the range of column over the rows of one transition.
func TransitionScale(rows []reasons.Row, key transition.Key, column reasons.Column) (Scale, error) {
	return GlobalScale(FilterByTransition(rows, &key), column)
}

// SeriesScale is the range of an aggregated series.
func SeriesScale(values []Value) Scale {
	raw := make([]float64, len(values))
	for i, v := range values {
		raw[i] = v.Value
	}
	return ScaleOf(raw)
}

// Intensities normalizes each value of a series. The series' own range is
// used unless global is given.
func Intensities(values []Value, global *Scale) []float64 {
	scale := SeriesScale(values)
	if global != nil {
		scale = *global
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = scale.Normalize(v.Value)
	}
	return out
}
