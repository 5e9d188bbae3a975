// Copyright 2020, Square, Inc.

// Package errors provides errors reported by the remote job manager and the
// lifecycle core. All errors must implement the error interface and return a
// helpful error message. The message can be terse because it is reported in
// context. For example, the JobNotFound error message makes sense in response
// to "jobctl status abc123" when "abc123" does not exist.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

var _ error = JobNotFound{}

// JobNotFound is returned when the remote system does not know the job id.
type JobNotFound struct {
	JobId string
}

func (e JobNotFound) Error() string {
	return fmt.Sprintf("job %s not found", e.JobId)
}

// --------------------------------------------------------------------------

var _ error = Rejected{}

// Rejected is returned when the remote system refuses a control action, either
// because the job's current state does not allow it or because the caller lacks
// permission. It is never retried.
type Rejected struct {
	JobId  string
	Action string
	Reason string
}

func NewRejected(jobId, action, reason string) Rejected {
	return Rejected{JobId: jobId, Action: action, Reason: reason}
}

func (e Rejected) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s job %s rejected", e.Action, e.JobId)
	}
	return fmt.Sprintf("%s job %s rejected: %s", e.Action, e.JobId, e.Reason)
}

// --------------------------------------------------------------------------

var _ error = Transient{}

// Transient wraps a temporary communication failure. Callers retry it within
// their remaining time budget.
type Transient struct {
	Err error
}

func NewTransient(err error) Transient {
	return Transient{Err: err}
}

func (e Transient) Error() string {
	return fmt.Sprintf("transient error: %s", e.Err)
}

func (e Transient) Unwrap() error {
	return e.Err
}

// --------------------------------------------------------------------------

var _ error = SelectionMismatch{}

// SelectionMismatch reports job ids in a selection that are unknown to the
// remote system. It is a warning: the ids are dropped from the batch.
type SelectionMismatch struct {
	JobIds []string
}

func (e SelectionMismatch) Error() string {
	return fmt.Sprintf("selected jobs not found: %s", strings.Join(e.JobIds, ", "))
}

// --------------------------------------------------------------------------

// IsTransient returns true if err is or wraps a Transient error.
func IsTransient(err error) bool {
	var t Transient
	return errors.As(err, &t)
}

// IsRejected returns true if err is or wraps a Rejected error.
func IsRejected(err error) bool {
	var r Rejected
	return errors.As(err, &r)
}

// IsNotFound returns true if err is or wraps a JobNotFound error.
func IsNotFound(err error) bool {
	var nf JobNotFound
	return errors.As(err, &nf)
}
