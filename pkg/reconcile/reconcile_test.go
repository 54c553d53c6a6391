package reconcile

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ccollicutt/waitlens/pkg/eventlog"
	"github.com/ccollicutt/waitlens/pkg/reasons"
)

var base = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return base.Add(time.Duration(seconds) * time.Second)
}

func buildLog(t *testing.T, occs ...eventlog.Occurrence) *eventlog.Log {
	t.Helper()
	log, err := eventlog.New(occs)
	require.NoError(t, err)
	return log
}

func row(caseID, src, srcRes, dst, dstRes string, end time.Time) reasons.Row {
	return reasons.Row{
		CaseID:              caseID,
		SourceActivity:      src,
		SourceResource:      srcRes,
		DestinationActivity: dst,
		DestinationResource: dstRes,
		End:                 end,
		Simple:              math.NaN(),
	}
}

// reworkLog has activity A performed twice by alice, followed by B.
func reworkLog(t *testing.T) *eventlog.Log {
	return buildLog(t,
		eventlog.Occurrence{CaseID: "c1", Activity: "A", Resource: "alice", Start: at(0), End: at(10)},
		eventlog.Occurrence{CaseID: "c1", Activity: "A", Resource: "alice", Start: at(20), End: at(30)},
		eventlog.Occurrence{CaseID: "c1", Activity: "B", Resource: "bob", Start: at(42), End: at(50)},
	)
}

func TestResolve_DisambiguatesRepeatedSourceByEnd(t *testing.T) {
	r := New(reworkLog(t))

	match, err := r.Resolve(row("c1", "A", "alice", "B", "bob", at(30)))
	require.NoError(t, err)
	require.Equal(t, 1, match.Source.Index)
	require.Equal(t, 2, match.Destination.Index)
	require.Equal(t, 12.0, match.WaitingTime)
}

func TestResolve_ZeroWaitSentinel(t *testing.T) {
	r := New(buildLog(t,
		eventlog.Occurrence{CaseID: "c1", Activity: "A", Resource: "alice", Start: at(0), End: at(10)},
		eventlog.Occurrence{CaseID: "c1", Activity: "B", Resource: "bob", Start: at(10), End: at(20)},
	))

	match, err := r.Resolve(row("c1", "A", "alice", "B", "bob", at(10)))
	require.NoError(t, err)
	require.Equal(t, ZeroWait, match.WaitingTime)
	require.NotZero(t, match.WaitingTime)
}

func TestResolve_ContractViolations(t *testing.T) {
	testCases := []struct {
		name string
		row  reasons.Row
		want error
		side Side
	}{
		{
			name: "unknown source key",
			row:  row("c1", "A", "carol", "B", "bob", at(30)),
			want: ErrNoCandidate,
			side: SideSource,
		},
		{
			name: "unknown case",
			row:  row("c9", "A", "alice", "B", "bob", at(30)),
			want: ErrNoCandidate,
			side: SideSource,
		},
		{
			name: "repeated source with no matching end",
			row:  row("c1", "A", "alice", "B", "bob", at(99)),
			want: ErrNoCandidate,
			side: SideSource,
		},
		{
			name: "unknown destination resource",
			row:  row("c1", "A", "alice", "B", "dave", at(30)),
			want: ErrNoCandidate,
			side: SideDestination,
		},
	}

	r := New(reworkLog(t))
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			match, err := r.Resolve(testCase.row)
			require.ErrorIs(t, err, testCase.want)
			require.Zero(t, match.WaitingTime)

			var contractErr *ContractError
			require.True(t, errors.As(err, &contractErr))
			require.Equal(t, testCase.side, contractErr.Side)
			require.Equal(t, testCase.row.CaseID, contractErr.CaseID)
			require.Contains(t, err.Error(), testCase.row.SourceResource)
		})
	}
}

func TestResolve_AmbiguousSource(t *testing.T) {
	r := New(buildLog(t,
		eventlog.Occurrence{CaseID: "c1", Activity: "A", Resource: "alice", Start: at(0), End: at(10)},
		eventlog.Occurrence{CaseID: "c1", Activity: "A", Resource: "alice", Start: at(5), End: at(10)},
		eventlog.Occurrence{CaseID: "c1", Activity: "B", Resource: "bob", Start: at(20), End: at(30)},
	))

	_, err := r.Resolve(row("c1", "A", "alice", "B", "bob", at(10)))
	require.ErrorIs(t, err, ErrAmbiguous)
}

func TestResolve_NegativeWait(t *testing.T) {
	r := New(buildLog(t,
		eventlog.Occurrence{CaseID: "c1", Activity: "A", Resource: "alice", Start: at(0), End: at(30)},
		eventlog.Occurrence{CaseID: "c1", Activity: "B", Resource: "bob", Start: at(20), End: at(40)},
	))

	_, err := r.Resolve(row("c1", "A", "alice", "B", "bob", at(30)))
	require.ErrorIs(t, err, ErrNegativeWait)
}

func TestResolve_DestinationDirectlyFollowing(t *testing.T) {
	r := New(buildLog(t,
		eventlog.Occurrence{CaseID: "c1", Activity: "B", Resource: "bob", Start: at(0), End: at(5)},
		eventlog.Occurrence{CaseID: "c1", Activity: "A", Resource: "alice", Start: at(10), End: at(20)},
		eventlog.Occurrence{CaseID: "c1", Activity: "B", Resource: "bob", Start: at(25), End: at(30)},
		eventlog.Occurrence{CaseID: "c1", Activity: "B", Resource: "bob", Start: at(40), End: at(50)},
	))

	match, err := r.Resolve(row("c1", "A", "alice", "B", "bob", at(20)))
	require.NoError(t, err)
	require.Equal(t, 2, match.Destination.Index)
	require.Equal(t, 5.0, match.WaitingTime)
}

func TestResolve_SelfLoopExcludesSourceAndPicksNearest(t *testing.T) {
	// A -> A by the same resource: the source itself is a destination candidate.
	// Offsets from the second A are -1, 0 and +2, so the nearest non-self
	// candidate is the first A, which starts before the source completes.
	log := buildLog(t,
		eventlog.Occurrence{CaseID: "c1", Activity: "A", Resource: "alice", Start: at(0), End: at(10)},
		eventlog.Occurrence{CaseID: "c1", Activity: "A", Resource: "alice", Start: at(20), End: at(30)},
		eventlog.Occurrence{CaseID: "c1", Activity: "C", Resource: "carol", Start: at(35), End: at(36)},
		eventlog.Occurrence{CaseID: "c1", Activity: "A", Resource: "alice", Start: at(40), End: at(45)},
	)
	r := New(log)

	_, err := r.Resolve(row("c1", "A", "alice", "A", "alice", at(30)))
	require.ErrorIs(t, err, ErrNegativeWait)

	match, err := r.Resolve(row("c1", "A", "alice", "A", "alice", at(10)))
	require.NoError(t, err)
	require.Equal(t, 0, match.Source.Index)
	require.Equal(t, 1, match.Destination.Index)
	require.Equal(t, 10.0, match.WaitingTime)
}

func TestNearest_TieKeepsFirstInLogOrder(t *testing.T) {
	src := eventlog.Occurrence{Index: 5}
	candidates := []eventlog.Occurrence{
		{Index: 1, Activity: "far"},
		{Index: 3, Activity: "before"},
		{Index: 5, Activity: "self"},
		{Index: 7, Activity: "after"},
	}

	got := nearest(src, candidates)
	require.Len(t, got, 1)
	require.Equal(t, "before", got[0].Activity)

	require.Empty(t, nearest(src, []eventlog.Occurrence{{Index: 5}}))
}

func TestNearest_SeveralDirectFollowersFallBackToOffset(t *testing.T) {
	src := eventlog.Occurrence{Index: 2}
	candidates := []eventlog.Occurrence{
		{Index: 3, Activity: "first"},
		{Index: 3, Activity: "second"},
	}

	got := nearest(src, candidates)
	require.Len(t, got, 1)
	require.Equal(t, "first", got[0].Activity)
}

func TestReconcile_ComputesIntoSeparateSlice(t *testing.T) {
	rows := []reasons.Row{
		row("c1", "A", "alice", "B", "bob", at(30)),
		row("c1", "A", "alice", "B", "bob", at(30)),
	}

	var calls []int
	r := New(reworkLog(t), WithWorkers(1), WithProgress(func(done, total int) {
		require.Equal(t, 2, total)
		calls = append(calls, done)
	}))

	values, err := r.Reconcile(context.Background(), rows)
	require.NoError(t, err)
	require.Equal(t, []float64{12, 12}, values)
	require.Equal(t, []int{1, 2}, calls)

	for _, rr := range rows {
		require.False(t, rr.HasSimple())
	}
}

func TestReconcile_FirstFailureAbortsWithoutPartialResult(t *testing.T) {
	rows := []reasons.Row{
		row("c1", "A", "alice", "B", "bob", at(30)),
		row("c1", "Z", "alice", "B", "bob", at(30)),
	}

	values, err := New(reworkLog(t), WithWorkers(1)).Reconcile(context.Background(), rows)
	require.ErrorIs(t, err, ErrNoCandidate)
	require.Nil(t, values)

	var contractErr *ContractError
	require.True(t, errors.As(err, &contractErr))
	require.Equal(t, 1, contractErr.Row)
	require.Contains(t, err.Error(), "reasons row 1")
}

func TestReconcile_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(reworkLog(t)).Reconcile(ctx, []reasons.Row{row("c1", "A", "alice", "B", "bob", at(30))})
	require.ErrorIs(t, err, context.Canceled)
}

func TestReconcile_ParallelMatchesSequential(t *testing.T) {
	var occs []eventlog.Occurrence
	var rows []reasons.Row
	for i := 0; i < 50; i++ {
		caseID := string(rune('a'+i%26)) + string(rune('a'+i/26))
		occs = append(occs,
			eventlog.Occurrence{CaseID: caseID, Activity: "A", Resource: "alice", Start: at(i), End: at(i + 1)},
			eventlog.Occurrence{CaseID: caseID, Activity: "B", Resource: "bob", Start: at(i + 1 + i%3), End: at(i + 10)},
		)
		rows = append(rows, row(caseID, "A", "alice", "B", "bob", at(i+1)))
	}
	log := buildLog(t, occs...)

	sequential, err := New(log, WithWorkers(1)).Reconcile(context.Background(), rows)
	require.NoError(t, err)
	parallel, err := New(log, WithWorkers(8)).Reconcile(context.Background(), rows)
	require.NoError(t, err)
	require.Equal(t, sequential, parallel)
}

func TestReconcileReport_MergesCopy(t *testing.T) {
	report := &reasons.Report{Rows: []reasons.Row{row("c1", "A", "alice", "B", "bob", at(30))}}

	merged, err := New(reworkLog(t)).ReconcileReport(context.Background(), report)
	require.NoError(t, err)
	require.Equal(t, 12.0, merged.Rows[0].Simple)
	require.False(t, report.Rows[0].HasSimple())
}

func TestReconcile_Logging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := buildLog(t,
		eventlog.Occurrence{CaseID: "c1", Activity: "A", Resource: "alice", Start: at(0), End: at(10)},
		eventlog.Occurrence{CaseID: "c1", Activity: "B", Resource: "bob", Start: at(12), End: at(15)},
		eventlog.Occurrence{CaseID: "c1", Activity: "B", Resource: "bob", Start: at(20), End: at(25)},
	)

	_, err := New(log, WithLogger(zap.New(core)), WithWorkers(1)).
		Reconcile(context.Background(), []reasons.Row{row("c1", "A", "alice", "B", "bob", at(10))})
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "reconciling reasons report", entries[0].Message)
	require.Equal(t, zap.InfoLevel, entries[0].Level)
	require.Equal(t, "disambiguating destination", entries[1].Message)
	require.Equal(t, int64(2), entries[1].ContextMap()[logFieldCandidates])
}
