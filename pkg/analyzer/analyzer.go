package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ccollicutt/waitlens/pkg/aggregate"
	"github.com/ccollicutt/waitlens/pkg/eventlog"
	"github.com/ccollicutt/waitlens/pkg/reasons"
	"github.com/ccollicutt/waitlens/pkg/reconcile"
	"github.com/ccollicutt/waitlens/pkg/stats"
	"github.com/ccollicutt/waitlens/pkg/transition"
)

const (
	logFieldRunID       = "run_id"
	logFieldTransitions = "transitions"
	logFieldRows        = "rows"
	logFieldIssues      = "issues"
	logFieldElapsed     = "elapsed"
)

// Analyzer runs the waiting-time pipeline over an event log and an optional
// reasons report.
type Analyzer struct {
	metric      stats.Metric
	notion      reasons.Column
	filter      []transition.Key
	globalScale bool
	workers     int
	maxWait     time.Duration
	checks      []Check
	logger      *zap.Logger
	progress    func(done, total int)
}

// AnalyzerOption configures analyzer behavior.
type AnalyzerOption func(*Analyzer)

// WithMetric selects the aggregated statistic.
func WithMetric(m stats.Metric) AnalyzerOption {
	return func(a *Analyzer) {
		a.metric = m
	}
}

// WithColumn selects the reasons report column aggregated per transition.
func WithColumn(c reasons.Column) AnalyzerOption {
	return func(a *Analyzer) {
		a.notion = c
	}
}

// WithTransitionFilter limits the analysis to keys, in the given order.
func WithTransitionFilter(keys []transition.Key) AnalyzerOption {
	return func(a *Analyzer) {
		if len(keys) > 0 {
			a.filter = append([]transition.Key(nil), keys...)
		}
	}
}

// WithGlobalScale shades values against the whole dataset's range.
func WithGlobalScale(v bool) AnalyzerOption {
	return func(a *Analyzer) {
		a.globalScale = v
	}
}

// WithWorkers bounds concurrent reconciliation.
func WithWorkers(n int) AnalyzerOption {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// WithMaxWait flags transitions whose metric exceeds d.
func WithMaxWait(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		a.maxWait = d
	}
}

// WithChecks replaces the default checks.
func WithChecks(checks ...Check) AnalyzerOption {
	return func(a *Analyzer) {
		a.checks = checks
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithProgress reports reconciliation progress.
func WithProgress(fn func(done, total int)) AnalyzerOption {
	return func(a *Analyzer) {
		a.progress = fn
	}
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(opts ...AnalyzerOption) (*Analyzer, error) {
	a := &Analyzer{
		metric: stats.MetricMean,
		notion: reasons.ColumnTotal,
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(a)
	}

	if _, err := stats.ParseMetric(string(a.metric)); err != nil {
		return nil, err
	}
	if _, err := reasons.ParseColumn(string(a.notion)); err != nil {
		return nil, err
	}

	if a.checks == nil {
		a.checks = []Check{
			&WaitThresholdCheck{Limit: a.maxWait},
			&ComponentBalanceCheck{Tolerance: DefaultComponentTolerance},
		}
	}

	return a, nil
}

// Analyze extracts transitions from log, reconciles report against it when
// given, aggregates the selected metric and runs every check. report is not
// modified.
func (a *Analyzer) Analyze(ctx context.Context, log *eventlog.Log, report *reasons.Report) (*AnalysisResult, error) {
	if log == nil {
		return nil, errors.New("event log is required")
	}
	if report == nil && a.notion == reasons.ColumnSimple {
		return nil, errors.New("notion wt_simple requires a reasons report")
	}

	result := &AnalysisResult{
		RunID:       uuid.NewString(),
		Metric:      a.metric,
		Notion:      a.notion,
		GlobalScale: a.globalScale,
		Metadata: AnalysisMetadata{
			StartTime:   time.Now(),
			Occurrences: log.Len(),
			Traces:      log.TraceCount(),
			Activities:  len(log.Activities()),
			Resources:   len(log.Resources()),
		},
	}
	logger := a.logger.With(zap.String(logFieldRunID, result.RunID))

	durations := make([]float64, 0, log.TraceCount())
	for _, d := range log.CaseDurations() {
		durations = append(durations, float64(d))
	}
	result.Metadata.CaseDurations = stats.Summarize(durations)

	set := transition.Extract(log)
	result.Keys = a.keys(set, report)
	logger.Debug("extracted transitions", zap.Int(logFieldTransitions, set.Len()))

	a.naive(set, result)

	if report != nil {
		if err := a.reconciled(ctx, log, report, result, logger); err != nil {
			return nil, err
		}
	} else if err := a.naiveValues(set, result); err != nil {
		return nil, err
	}

	for _, check := range a.checks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		issues, err := check.Evaluate(ctx, result)
		if err != nil {
			return nil, fmt.Errorf("check %q: %w", check.Name(), err)
		}
		result.Issues = append(result.Issues, issues...)
	}

	result.Metadata.EndTime = time.Now()
	logger.Info("analysis complete",
		zap.Int(logFieldTransitions, len(result.Keys)),
		zap.Int(logFieldIssues, len(result.Issues)),
		zap.Duration(logFieldElapsed, result.Metadata.EndTime.Sub(result.Metadata.StartTime)))

	return result, nil
}

// keys returns the filter when set, otherwise the extractor's order followed
// by transitions only present in the report.
func (a *Analyzer) keys(set *transition.Set, report *reasons.Report) []transition.Key {
	if a.filter != nil {
		return append([]transition.Key(nil), a.filter...)
	}
	keys := set.Keys()
	if report == nil {
		return keys
	}
	seen := make(map[transition.Key]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	for _, k := range report.Keys() {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

func (a *Analyzer) naive(set *transition.Set, result *AnalysisResult) {
	wanted := keySet(result.Keys)

	for _, s := range set.Summaries() {
		if !wanted[s.Key] {
			continue
		}
		tr := TransitionResult{Key: s.Key, Frequency: s.Frequency, Stats: s.Stats}
		for _, w := range set.WaitingTimes(s.Key) {
			if w < 0 {
				tr.Overlaps++
			}
		}
		result.Transitions = append(result.Transitions, tr)
	}

	result.Series = make(map[stats.Metric][]aggregate.Value)
	for metric, values := range aggregate.Series(set) {
		result.Series[metric] = keep(values, wanted)
	}
}

func (a *Analyzer) naiveValues(set *transition.Set, result *AnalysisResult) error {
	values, err := aggregate.AggregateTransitions(set, a.metric)
	if err != nil {
		return err
	}
	values = order(values, result.Keys)

	scale := aggregate.SeriesScale(values)
	if a.globalScale {
		var all []float64
		for _, inst := range set.Instances() {
			all = append(all, inst.WaitingTime)
		}
		scale = aggregate.ScaleOf(all)
	}
	result.Scale = scale
	result.Values = shade(values, scale)
	return nil
}

func (a *Analyzer) reconciled(ctx context.Context, log *eventlog.Log, report *reasons.Report, result *AnalysisResult, logger *zap.Logger) error {
	opts := []reconcile.Option{reconcile.WithLogger(logger), reconcile.WithProgress(a.progress)}
	if a.workers > 0 {
		opts = append(opts, reconcile.WithWorkers(a.workers))
	}

	merged, err := reconcile.New(log, opts...).ReconcileReport(ctx, report)
	if err != nil {
		return fmt.Errorf("reconciling reasons report: %w", err)
	}
	result.Reconciled = merged
	logger.Debug("reconciled reasons report", zap.Int(logFieldRows, merged.Len()))

	rows := merged.Rows
	values, err := aggregate.AggregateAll(result.Keys, rows, a.metric, a.notion)
	if err != nil {
		return err
	}

	scale := aggregate.SeriesScale(values)
	if a.globalScale {
		scale, err = aggregate.GlobalScale(rows, a.notion)
		if err != nil {
			return err
		}
	}
	result.Scale = scale
	result.Values = shade(values, scale)
	result.Breakdowns = aggregate.Breakdowns(result.Keys, rows)
	return nil
}

func shade(values []aggregate.Value, scale aggregate.Scale) []MetricValue {
	intensities := aggregate.Intensities(values, &scale)
	out := make([]MetricValue, len(values))
	for i, v := range values {
		out[i] = MetricValue{Key: v.Key, Value: v.Value, Samples: v.Samples, Intensity: intensities[i]}
	}
	return out
}

func keySet(keys []transition.Key) map[transition.Key]bool {
	set := make(map[transition.Key]bool, len(keys))
	for _, k := range keys {
		set[k] = true
	}
	return set
}

func keep(values []aggregate.Value, wanted map[transition.Key]bool) []aggregate.Value {
	out := make([]aggregate.Value, 0, len(values))
	for _, v := range values {
		if wanted[v.Key] {
			out = append(out, v)
		}
	}
	return out
}

// order arranges values by keys. Keys without a value get an empty entry.
func order(values []aggregate.Value, keys []transition.Key) []aggregate.Value {
	byKey := make(map[transition.Key]aggregate.Value, len(values))
	for _, v := range values {
		byKey[v.Key] = v
	}
	out := make([]aggregate.Value, len(keys))
	for i, k := range keys {
		v, ok := byKey[k]
		if !ok {
			v = aggregate.Value{Key: k}
		}
		out[i] = v
	}
	return out
}
