package transition

import (
	"github.com/ccollicutt/waitlens/pkg/eventlog"
	"github.com/ccollicutt/waitlens/pkg/stats"
)

// Set maps transition keys to their instances. Keys keep the order in which
// they were first observed.
type Set struct {
	order     []Key
	entries   map[Key]*Entry
	durations map[string][]float64
}

// Extract walks every case in log order and emits one instance per
// adjacent pair of occurrences. It has no side effects on the log.
func Extract(log *eventlog.Log) *Set {
	set := &Set{
		entries:   make(map[Key]*Entry),
		durations: make(map[string][]float64),
	}

	for _, caseID := range log.Cases() {
		trace := log.Trace(caseID)
		for i, curr := range trace {
			if i == 0 {
				set.durations[curr.Activity] = append(set.durations[curr.Activity], 0)
				continue
			}
			prev := trace[i-1]
			inst := Instance{
				CaseID:      caseID,
				Source:      prev,
				Destination: curr,
				WaitingTime: curr.Start.Sub(prev.End).Seconds(),
				Duration:    curr.End.Sub(prev.End).Seconds(),
			}
			set.add(inst)
			set.durations[curr.Activity] = append(set.durations[curr.Activity], inst.Duration)
		}
	}

	return set
}

func (s *Set) add(inst Instance) {
	key := inst.Key()
	entry, ok := s.entries[key]
	if !ok {
		entry = &Entry{Key: key}
		s.entries[key] = entry
		s.order = append(s.order, key)
	}
	entry.Instances = append(entry.Instances, inst)
}

// Keys returns the transition keys in first-observed order.
func (s *Set) Keys() []Key {
	out := make([]Key, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of distinct transitions.
func (s *Set) Len() int {
	return len(s.order)
}

// Get returns the entry for a key.
func (s *Set) Get(key Key) (*Entry, bool) {
	entry, ok := s.entries[key]
	return entry, ok
}

// Frequency returns the number of instances observed for key.
func (s *Set) Frequency(key Key) int {
	if entry, ok := s.entries[key]; ok {
		return entry.Frequency()
	}
	return 0
}

// WaitingTimes returns the naive waiting times observed for key.
func (s *Set) WaitingTimes(key Key) []float64 {
	if entry, ok := s.entries[key]; ok {
		return entry.WaitingTimes()
	}
	return nil
}

// Instances returns every instance, grouped by key in key order.
func (s *Set) Instances() []Instance {
	var out []Instance
	for _, key := range s.order {
		out = append(out, s.entries[key].Instances...)
	}
	return out
}

// Summaries computes waiting-time statistics for each key in key order.
func (s *Set) Summaries() []Summary {
	out := make([]Summary, 0, len(s.order))
	for _, key := range s.order {
		entry := s.entries[key]
		out = append(out, Summary{
			Key:       key,
			Frequency: entry.Frequency(),
			Stats:     stats.Summarize(entry.WaitingTimes()),
		})
	}
	return out
}

// ActivityDurations returns the duration samples attributed to each activity.
// The first occurrence of a case contributes 0.
func (s *Set) ActivityDurations() map[string][]float64 {
	out := make(map[string][]float64, len(s.durations))
	for activity, values := range s.durations {
		out[activity] = append([]float64(nil), values...)
	}
	return out
}
