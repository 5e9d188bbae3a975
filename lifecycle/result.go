// Copyright 2020, Square, Inc.

package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/square/jobctl/proto"
)

// FailureKind is why one handle in a batch did not converge.
type FailureKind string

const (
	FAILURE_REJECTED  FailureKind = "rejected"  // remote system refused the action
	FAILURE_TIMEOUT   FailureKind = "timeout"   // did not reach an expected status in time
	FAILURE_NOT_FOUND FailureKind = "not-found" // remote system does not know the job
	FAILURE_TRANSIENT FailureKind = "transient" // remote system unreachable until timeout
	FAILURE_TERMINAL  FailureKind = "terminal"  // finished in a status that is not expected
	FAILURE_ERROR     FailureKind = "error"     // any other error
)

// Failure is one handle that did not converge.
type Failure struct {
	JobId  string
	Kind   FailureKind
	Status proto.Status // last observed status, if any
	Err    error        // error that caused the failure, nil for timeout and terminal
}

func (f Failure) String() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s (%s)", f.JobId, f.Kind, f.Err)
	}
	return fmt.Sprintf("%s: %s (status %s)", f.JobId, f.Kind, f.Status)
}

// Result is the outcome of a wait or control action on a batch of handles.
// Every input handle is in exactly one of Converged, Skipped, or Failures, in
// input order.
type Result struct {
	Action    string    // proto.ACTION_*, or empty for a plain wait
	Converged []*Handle // reached an expected status
	Skipped   []*Handle // already terminal, nothing was done
	Failures  []Failure
	Elapsed   time.Duration
}

// OK returns true if every handle that was not skipped converged. An empty
// batch is OK.
func (r Result) OK() bool {
	return len(r.Failures) == 0
}

// Total returns the number of handles in the batch.
func (r Result) Total() int {
	return len(r.Converged) + len(r.Skipped) + len(r.Failures)
}

// FailuresOf returns the failures of the given kind.
func (r Result) FailuresOf(kind FailureKind) []Failure {
	var failures []Failure
	for _, f := range r.Failures {
		if f.Kind == kind {
			failures = append(failures, f)
		}
	}
	return failures
}

// Rejected returns the failures for handles whose action was refused.
func (r Result) Rejected() []Failure {
	return r.FailuresOf(FAILURE_REJECTED)
}

// Err returns nil if the result is OK, else a *ResultError listing the failures.
// Timeouts are not errors by themselves; callers that treat a timeout as a hard
// failure use Err.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &ResultError{
		Action:   r.Action,
		Total:    r.Total(),
		Failures: r.Failures,
	}
}

// ResultError is a Result with failures, as an error.
type ResultError struct {
	Action   string
	Total    int
	Failures []Failure
}

func (e *ResultError) Error() string {
	action := e.Action
	if action == "" {
		action = "wait"
	}
	jobs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		jobs[i] = fmt.Sprintf("%s (%s)", f.JobId, f.Kind)
	}
	return fmt.Sprintf("%s: %d of %d jobs failed: %s", action, len(e.Failures), e.Total, strings.Join(jobs, ", "))
}

// --------------------------------------------------------------------------

type outcome struct {
	state   byte // outcome* const
	failure Failure
	lastErr error // last transient error while pending
}

const (
	outcomePending byte = iota
	outcomeConverged
	outcomeSkipped
	outcomeFailed
)

// collect builds a Result from per-handle outcomes in input order. Handles still
// pending timed out, or failed transiently if the last query failed.
func collect(action string, handles []*Handle, outcomes []outcome, elapsed time.Duration) Result {
	r := Result{
		Action:    action,
		Converged: []*Handle{},
		Skipped:   []*Handle{},
		Failures:  []Failure{},
		Elapsed:   elapsed,
	}
	for i, h := range handles {
		o := outcomes[i]
		switch o.state {
		case outcomeConverged:
			r.Converged = append(r.Converged, h)
		case outcomeSkipped:
			r.Skipped = append(r.Skipped, h)
		case outcomeFailed:
			r.Failures = append(r.Failures, o.failure)
		default:
			f := Failure{JobId: h.Id(), Kind: FAILURE_TIMEOUT, Status: h.Status()}
			if o.lastErr != nil {
				f.Kind = FAILURE_TRANSIENT
				f.Err = o.lastErr
			}
			r.Failures = append(r.Failures, f)
		}
	}
	return r
}
