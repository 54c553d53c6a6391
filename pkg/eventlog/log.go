package eventlog

import (
	"fmt"
	"sort"
)

type lookupKey struct {
	activity string
	caseID   string
	resource string
}

// Log is an immutable, case-grouped event log.
type Log struct {
	occurrences []Occurrence
	traces      map[string][]int // case id -> indexes in log order
	caseOrder   []string
	index       map[lookupKey][]int
}

// New builds a Log from occurrences given in log order. Each occurrence's Index
// is reassigned to its position in the input.
func New(occurrences []Occurrence) (*Log, error) {
	l := &Log{
		occurrences: make([]Occurrence, len(occurrences)),
		traces:      make(map[string][]int),
		index:       make(map[lookupKey][]int),
	}

	for i, occ := range occurrences {
		if occ.End.Before(occ.Start) {
			return nil, fmt.Errorf("row %d (case %s, activity %s): %w",
				i, occ.CaseID, occ.Activity, ErrEndBeforeStart)
		}
		occ.Index = i
		l.occurrences[i] = occ

		if _, seen := l.traces[occ.CaseID]; !seen {
			l.caseOrder = append(l.caseOrder, occ.CaseID)
		}
		l.traces[occ.CaseID] = append(l.traces[occ.CaseID], i)

		key := lookupKey{activity: occ.Activity, caseID: occ.CaseID, resource: occ.Resource}
		l.index[key] = append(l.index[key], i)
	}

	return l, nil
}

// Len returns the number of occurrences in the log.
func (l *Log) Len() int {
	return len(l.occurrences)
}

// TraceCount returns the number of distinct cases.
func (l *Log) TraceCount() int {
	return len(l.caseOrder)
}

// Occurrences returns a copy of all occurrences in log order.
func (l *Log) Occurrences() []Occurrence {
	out := make([]Occurrence, len(l.occurrences))
	copy(out, l.occurrences)
	return out
}

// Cases returns the distinct case ids in order of first appearance.
func (l *Log) Cases() []string {
	out := make([]string, len(l.caseOrder))
	copy(out, l.caseOrder)
	return out
}

// Trace returns the occurrences of a case in log order.
// Returns nil for unknown cases.
func (l *Log) Trace(caseID string) []Occurrence {
	idxs, ok := l.traces[caseID]
	if !ok {
		return nil
	}
	out := make([]Occurrence, len(idxs))
	for i, idx := range idxs {
		out[i] = l.occurrences[idx]
	}
	return out
}

// Activities returns the distinct activity names, sorted.
func (l *Log) Activities() []string {
	return l.distinct(func(o Occurrence) string { return o.Activity })
}

// Resources returns the distinct non-empty resource names, sorted.
func (l *Log) Resources() []string {
	return l.distinct(func(o Occurrence) string { return o.Resource })
}

func (l *Log) distinct(field func(Occurrence) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, occ := range l.occurrences {
		v := field(occ)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// CaseDurations returns, per case, the span between the earliest and latest
// completion time in whole seconds.
func (l *Log) CaseDurations() map[string]int64 {
	durations := make(map[string]int64, len(l.caseOrder))
	for caseID, idxs := range l.traces {
		first := l.occurrences[idxs[0]].End
		last := first
		for _, idx := range idxs[1:] {
			end := l.occurrences[idx].End
			if end.Before(first) {
				first = end
			}
			if end.After(last) {
				last = end
			}
		}
		durations[caseID] = int64(last.Sub(first).Seconds())
	}
	return durations
}

// Lookup returns the occurrences of an activity performed by a resource within
// a case, in log order.
func (l *Log) Lookup(activity, caseID, resource string) []Occurrence {
	idxs := l.index[lookupKey{activity: activity, caseID: caseID, resource: resource}]
	out := make([]Occurrence, len(idxs))
	for i, idx := range idxs {
		out[i] = l.occurrences[idx]
	}
	return out
}

// DuplicateKeys returns the activity/case/resource combinations that occur more
// than once, with their occurrence counts.
func (l *Log) DuplicateKeys() map[string]int {
	dups := make(map[string]int)
	for key, idxs := range l.index {
		if len(idxs) > 1 {
			dups[fmt.Sprintf("%s/%s/%s", key.caseID, key.activity, key.resource)] = len(idxs)
		}
	}
	return dups
}
