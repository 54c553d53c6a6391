package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	testCases := []struct {
		name   string
		values []float64
		want   Summary
	}{
		{
			name:   "empty",
			values: nil,
			want:   Summary{},
		},
		{
			name:   "single sample has zero stdev",
			values: []float64{42},
			want:   Summary{Count: 1, Sum: 42, Min: 42, Max: 42, Mean: 42, Median: 42, Stdev: 0},
		},
		{
			name:   "odd count",
			values: []float64{3, 1, 2},
			want:   Summary{Count: 3, Sum: 6, Min: 1, Max: 3, Mean: 2, Median: 2, Stdev: 1},
		},
		{
			name:   "even count averages middle values",
			values: []float64{4, 1, 3, 2},
			want:   Summary{Count: 4, Sum: 10, Min: 1, Max: 4, Mean: 2.5, Median: 2.5, Stdev: math.Sqrt(5.0 / 3.0)},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := Summarize(testCase.values)
			require.Equal(t, testCase.want.Count, got.Count)
			require.InDelta(t, testCase.want.Sum, got.Sum, 1e-9)
			require.InDelta(t, testCase.want.Min, got.Min, 1e-9)
			require.InDelta(t, testCase.want.Max, got.Max, 1e-9)
			require.InDelta(t, testCase.want.Mean, got.Mean, 1e-9)
			require.InDelta(t, testCase.want.Median, got.Median, 1e-9)
			require.InDelta(t, testCase.want.Stdev, got.Stdev, 1e-9)
		})
	}
}

func TestSummarize_SampleStdev(t *testing.T) {
	got := Summarize([]float64{5, 7})
	require.InDelta(t, math.Sqrt2, got.Stdev, 1e-9)
}

func TestSummarize_DoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	Summarize(values)
	require.Equal(t, []float64{3, 1, 2}, values)
}

func TestParseMetric(t *testing.T) {
	for _, metric := range Metrics() {
		parsed, err := ParseMetric(string(metric))
		require.NoError(t, err)
		require.Equal(t, metric, parsed)
	}

	_, err := ParseMetric("p95")
	require.ErrorIs(t, err, ErrUnknownMetric)
}

func TestCompute(t *testing.T) {
	values := []float64{10, 20, 60}

	expected := map[Metric]float64{
		MetricMin:    10,
		MetricMax:    60,
		MetricSum:    90,
		MetricMean:   30,
		MetricMedian: 20,
		MetricStdev:  math.Sqrt(700),
	}
	for metric, want := range expected {
		got, err := Compute(metric, values)
		require.NoError(t, err)
		require.InDelta(t, want, got, 1e-9, "metric %s", metric)
	}

	_, err := Compute(Metric("mode"), values)
	require.ErrorIs(t, err, ErrUnknownMetric)
}
