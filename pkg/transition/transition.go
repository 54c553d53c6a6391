// Package transition extracts directly-follows transitions and their naive
// waiting times from an event log.
package transition

import (
	"strings"

	"github.com/ccollicutt/waitlens/pkg/eventlog"
	"github.com/ccollicutt/waitlens/pkg/stats"
)

// Separator joins source and destination in a transition's string form.
const Separator = " -> "

// Key identifies a directed edge between two activities.
type Key struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// String renders the key as "source -> destination".
func (k Key) String() string {
	return k.Source + Separator + k.Destination
}

// ParseKey parses the "source -> destination" form.
func ParseKey(s string) (Key, bool) {
	source, destination, ok := strings.Cut(s, Separator)
	if !ok {
		return Key{}, false
	}
	return Key{Source: strings.TrimSpace(source), Destination: strings.TrimSpace(destination)}, true
}

// Instance is one observed adjacency of two occurrences within a case.
type Instance struct {
	CaseID      string
	Source      eventlog.Occurrence
	Destination eventlog.Occurrence

	// WaitingTime is Destination.Start - Source.End in seconds. It is an
	// approximation: logs without true start timestamps make it zero, and
	// overlapping occurrences make it negative.
	WaitingTime float64

	// Duration is Destination.End - Source.End in seconds, a stand-in for
	// processing time when start timestamps are absent.
	Duration float64
}

// Key returns the transition key of the instance.
func (i Instance) Key() Key {
	return Key{Source: i.Source.Activity, Destination: i.Destination.Activity}
}

// Entry collects the instances observed for one transition key.
type Entry struct {
	Key       Key
	Instances []Instance
}

// Frequency returns the number of observed instances.
func (e *Entry) Frequency() int {
	return len(e.Instances)
}

// WaitingTimes returns the naive waiting time samples in observation order.
func (e *Entry) WaitingTimes() []float64 {
	out := make([]float64, len(e.Instances))
	for i, inst := range e.Instances {
		out[i] = inst.WaitingTime
	}
	return out
}

// Summary pairs a transition with the statistics of its waiting times.
type Summary struct {
	Key       Key           `json:"key"`
	Frequency int           `json:"frequency"`
	Stats     stats.Summary `json:"stats"`
}
