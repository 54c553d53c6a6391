package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCandidate means no event log occurrence matches a row's key.
	ErrNoCandidate = errors.New("no matching occurrence")

	// ErrAmbiguous means narrowing left more than one source occurrence.
	ErrAmbiguous = errors.New("ambiguous occurrence")

	// ErrNegativeWait means the resolved destination starts before the resolved
	// source completes.
	ErrNegativeWait = errors.New("destination starts before source completes")
)

// Side names the end of a transition that failed to resolve.
type Side string

const (
	SideSource      Side = "source"
	SideDestination Side = "destination"
)

// ContractError reports a reasons row that cannot be matched against the event
// log. It is fatal: the row's data or the event log must be fixed.
type ContractError struct {
	// Row is the 0-based position of the row in the report, or -1 when the
	// row was resolved on its own.
	Row int

	CaseID              string
	SourceActivity      string
	DestinationActivity string
	SourceResource      string
	DestinationResource string

	// Side is empty for ErrNegativeWait.
	Side Side

	// Candidates is the number of occurrences left after narrowing.
	Candidates int

	Err error
}

func (e *ContractError) Error() string {
	where := "reasons row"
	if e.Row >= 0 {
		where = fmt.Sprintf("reasons row %d", e.Row)
	}
	subject := e.Err.Error()
	if e.Side != "" {
		subject = fmt.Sprintf("%s: %s (%d candidates)", e.Side, e.Err, e.Candidates)
	}
	return fmt.Sprintf("%s (case %q, %q by %q -> %q by %q): %s",
		where, e.CaseID,
		e.SourceActivity, e.SourceResource,
		e.DestinationActivity, e.DestinationResource,
		subject)
}

func (e *ContractError) Unwrap() error {
	return e.Err
}
