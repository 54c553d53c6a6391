package analyzer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ccollicutt/waitlens/pkg/transition"
)

// DefaultComponentTolerance is the allowed gap, in seconds, between a row's
// total waiting time and the sum of its causal components.
const DefaultComponentTolerance = 1.0

// WaitThresholdCheck flags transitions whose selected metric exceeds Limit.
type WaitThresholdCheck struct {
	Limit time.Duration
}

// Name returns the check's identifier.
func (c *WaitThresholdCheck) Name() string {
	return "max_wait"
}

// Evaluate flags every value above the limit.
func (c *WaitThresholdCheck) Evaluate(_ context.Context, result *AnalysisResult) ([]Issue, error) {
	if c.Limit <= 0 {
		return nil, nil
	}
	limit := c.Limit.Seconds()

	var issues []Issue
	for _, v := range result.Values {
		if v.Samples == 0 || v.Value <= limit {
			continue
		}
		issues = append(issues, Issue{
			Type:       IssueTypeWaitExceeded,
			Check:      c.Name(),
			Transition: v.Key,
			Description: fmt.Sprintf("%s of %s is %s, above %s",
				result.Metric, notionLabel(result), formatSeconds(v.Value), c.Limit),
			Value: v.Value,
			Limit: limit,
			Rows:  v.Samples,
		})
	}
	return issues, nil
}

// ComponentBalanceCheck flags transitions with reasons rows whose causal
// components do not add up to the total within Tolerance seconds.
type ComponentBalanceCheck struct {
	Tolerance float64
}

// Name returns the check's identifier.
func (c *ComponentBalanceCheck) Name() string {
	return "component_balance"
}

// Evaluate groups unbalanced rows per transition.
func (c *ComponentBalanceCheck) Evaluate(_ context.Context, result *AnalysisResult) ([]Issue, error) {
	if result.Reconciled == nil {
		return nil, nil
	}

	type tally struct {
		rows  int
		worst float64
	}
	var order []transition.Key
	tallies := make(map[transition.Key]*tally)

	for _, row := range result.Reconciled.Rows {
		diff := math.Abs(row.Total - row.ComponentSum())
		if diff <= c.Tolerance {
			continue
		}
		key := row.Key()
		t, ok := tallies[key]
		if !ok {
			t = &tally{}
			tallies[key] = t
			order = append(order, key)
		}
		t.rows++
		t.worst = math.Max(t.worst, diff)
	}

	issues := make([]Issue, 0, len(order))
	for _, key := range order {
		t := tallies[key]
		issues = append(issues, Issue{
			Type:       IssueTypeComponentMismatch,
			Check:      c.Name(),
			Transition: key,
			Description: fmt.Sprintf("%d row(s) where causal components differ from wt_total by up to %s",
				t.rows, formatSeconds(t.worst)),
			Value: t.worst,
			Limit: c.Tolerance,
			Rows:  t.rows,
		})
	}
	return issues, nil
}

func notionLabel(result *AnalysisResult) string {
	if result.Reconciled == nil {
		return "naive waiting time"
	}
	return string(result.Notion)
}

func formatSeconds(s float64) string {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond).String()
}
