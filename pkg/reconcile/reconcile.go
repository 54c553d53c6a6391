// Package reconcile matches reasons report rows against the event log and
// computes each row's simple waiting time.
package reconcile

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ccollicutt/waitlens/pkg/eventlog"
	"github.com/ccollicutt/waitlens/pkg/reasons"
)

// ZeroWait replaces a reconciled waiting time of exactly zero so the value
// stays positive on log scales.
const ZeroWait = 1e-10

const (
	logFieldRow        = "row"
	logFieldCase       = "case_id"
	logFieldTransition = "transition"
	logFieldCandidates = "candidates"
	logFieldRows       = "rows"
	logFieldWorkers    = "workers"
)

// Match is the resolved pair of occurrences for one reasons row.
type Match struct {
	Source      eventlog.Occurrence
	Destination eventlog.Occurrence

	// WaitingTime is Destination.Start - Source.End in seconds, with exact
	// zero replaced by ZeroWait.
	WaitingTime float64
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithWorkers bounds the number of rows resolved concurrently.
func WithWorkers(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithProgress registers a callback invoked after each resolved row. Calls are
// serialized.
func WithProgress(fn func(done, total int)) Option {
	return func(r *Reconciler) {
		r.progress = fn
	}
}

// Reconciler resolves reasons rows against one event log. It holds no mutable
// state and may be reused.
type Reconciler struct {
	log      *eventlog.Log
	workers  int
	logger   *zap.Logger
	progress func(done, total int)
}

// New creates a Reconciler for log.
func New(log *eventlog.Log, opts ...Option) *Reconciler {
	r := &Reconciler{
		log:     log,
		workers: runtime.GOMAXPROCS(0),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve matches a single row.
func (r *Reconciler) Resolve(row reasons.Row) (Match, error) {
	return r.resolve(-1, row)
}

func (r *Reconciler) resolve(idx int, row reasons.Row) (Match, error) {
	fail := func(side Side, candidates int, err error) (Match, error) {
		return Match{}, &ContractError{
			Row:                 idx,
			CaseID:              row.CaseID,
			SourceActivity:      row.SourceActivity,
			DestinationActivity: row.DestinationActivity,
			SourceResource:      row.SourceResource,
			DestinationResource: row.DestinationResource,
			Side:                side,
			Candidates:          candidates,
			Err:                 err,
		}
	}

	sources := r.log.Lookup(row.SourceActivity, row.CaseID, row.SourceResource)
	if len(sources) > 1 {
		sources = completedAt(sources, row)
	}
	switch {
	case len(sources) == 0:
		return fail(SideSource, 0, ErrNoCandidate)
	case len(sources) > 1:
		return fail(SideSource, len(sources), ErrAmbiguous)
	}
	src := sources[0]

	destinations := r.log.Lookup(row.DestinationActivity, row.CaseID, row.DestinationResource)
	if len(destinations) > 1 {
		r.logger.Debug("disambiguating destination",
			zap.Int(logFieldRow, idx),
			zap.String(logFieldCase, row.CaseID),
			zap.Stringer(logFieldTransition, row.Key()),
			zap.Int(logFieldCandidates, len(destinations)))
		destinations = nearest(src, destinations)
	}
	if len(destinations) == 0 {
		return fail(SideDestination, 0, ErrNoCandidate)
	}
	dst := destinations[0]

	if dst.Start.Before(src.End) {
		return fail("", 1, ErrNegativeWait)
	}

	wait := dst.Start.Sub(src.End).Seconds()
	if wait == 0 {
		wait = ZeroWait
	}
	return Match{Source: src, Destination: dst, WaitingTime: wait}, nil
}

// completedAt keeps the candidates whose completion equals the row's end.
func completedAt(candidates []eventlog.Occurrence, row reasons.Row) []eventlog.Occurrence {
	var out []eventlog.Occurrence
	for _, c := range candidates {
		if c.End.Equal(row.End) {
			out = append(out, c)
		}
	}
	return out
}

// nearest picks the destination for src among several candidates. The unique
// candidate directly following src in log order wins; otherwise the candidate
// at src's own position is dropped and the smallest absolute offset wins, the
// earliest in log order on ties. Returns at most one occurrence.
func nearest(src eventlog.Occurrence, candidates []eventlog.Occurrence) []eventlog.Occurrence {
	var next []eventlog.Occurrence
	for _, c := range candidates {
		if c.Index-src.Index == 1 {
			next = append(next, c)
		}
	}
	if len(next) == 1 {
		return next
	}

	best := -1
	bestDist := 0
	for i, c := range candidates {
		offset := c.Index - src.Index
		if offset == 0 {
			continue
		}
		dist := offset
		if dist < 0 {
			dist = -dist
		}
		if best < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return nil
	}
	return candidates[best : best+1]
}

// Reconcile resolves every row and returns the simple waiting times in row
// order. rows is not modified. The first contract violation aborts the pass
// and no partial result is returned.
func (r *Reconciler) Reconcile(ctx context.Context, rows []reasons.Row) ([]float64, error) {
	values := make([]float64, len(rows))
	if len(rows) == 0 {
		return values, nil
	}

	r.logger.Info("reconciling reasons report",
		zap.Int(logFieldRows, len(rows)),
		zap.Int(logFieldWorkers, r.workers))

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			match, err := r.resolve(i, rows[i])
			if err != nil {
				return err
			}
			values[i] = match.WaitingTime

			if r.progress != nil {
				mu.Lock()
				done++
				r.progress(done, len(rows))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		r.logger.Error("reconciliation failed", zap.Error(err))
		return nil, err
	}
	return values, nil
}

// ReconcileReport returns a copy of report with every row's simple waiting
// time filled in.
func (r *Reconciler) ReconcileReport(ctx context.Context, report *reasons.Report) (*reasons.Report, error) {
	values, err := r.Reconcile(ctx, report.Rows)
	if err != nil {
		return nil, err
	}
	return report.WithSimple(values)
}
