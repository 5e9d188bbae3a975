// Copyright 2020, Square, Inc.

// Package proto provide API message structures and constants.
package proto

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Status is the status of a job as reported by the remote job manager. The set
// is open: the known statuses below are canonical, but the remote system can
// report others and they are kept verbatim.
type Status string

const (
	STATUS_UNKNOWN Status = ""

	// Not started yet
	STATUS_WAITING Status = "Waiting"
	STATUS_PENDING Status = "Pending"
	STATUS_QUEUED  Status = "Queued"

	// Active
	STATUS_RUNNING   Status = "Running"
	STATUS_SUSPENDED Status = "Suspended"

	// Finished, no control action applies
	STATUS_COMPLETED             Status = "Completed"
	STATUS_COMPLETED_WITH_ERRORS Status = "Completed w/ one or more errors"
	STATUS_KILLED                Status = "Killed"
	STATUS_COMMITTED             Status = "Committed"
	STATUS_FAILED                Status = "Failed"
)

// StatusValue maps lowercase status strings to their canonical Status. The remote
// system is not consistent about case, so all lookups go through ParseStatus.
var StatusValue = map[string]Status{
	"waiting":                         STATUS_WAITING,
	"waiting-to-run":                  STATUS_WAITING,
	"pending":                         STATUS_PENDING,
	"queued":                          STATUS_QUEUED,
	"running":                         STATUS_RUNNING,
	"suspended":                       STATUS_SUSPENDED,
	"completed":                       STATUS_COMPLETED,
	"completed w/ one or more errors": STATUS_COMPLETED_WITH_ERRORS,
	"killed":                          STATUS_KILLED,
	"committed":                       STATUS_COMMITTED,
	"failed":                          STATUS_FAILED,
}

var terminal = map[Status]bool{
	STATUS_COMPLETED:             true,
	STATUS_COMPLETED_WITH_ERRORS: true,
	STATUS_KILLED:                true,
	STATUS_COMMITTED:             true,
	STATUS_FAILED:                true,
}

// ParseStatus returns the canonical Status for s. Unknown statuses are returned
// as given, trimmed of surrounding space.
func ParseStatus(s string) Status {
	s = strings.TrimSpace(s)
	if st, ok := StatusValue[strings.ToLower(s)]; ok {
		return st
	}
	return Status(s)
}

// Terminal returns true if no further control action applies to a job in this status.
func (s Status) Terminal() bool {
	return terminal[s]
}

// Known returns true if s is one of the canonical statuses.
func (s Status) Known() bool {
	_, ok := StatusValue[strings.ToLower(string(s))]
	return ok
}

func (s Status) String() string {
	if s == STATUS_UNKNOWN {
		return "UNKNOWN"
	}
	return string(s)
}

// Control actions
const (
	ACTION_SUSPEND = "suspend"
	ACTION_RESUME  = "resume"
	ACTION_KILL    = "kill"
)

// Actions lists all control actions, in the order they are documented.
var Actions = []string{ACTION_SUSPEND, ACTION_RESUME, ACTION_KILL}

// ValidAction returns true if action is a known control action.
func ValidAction(action string) bool {
	switch action {
	case ACTION_SUSPEND, ACTION_RESUME, ACTION_KILL:
		return true
	}
	return false
}

// Job represents one asynchronous operation tracked by the remote job manager.
// Jobs are identified by Id, which is issued by the remote system and never changes.
type Job struct {
	Id              string                 `json:"id"`              // unique id
	Kind            string                 `json:"kind"`            // backup, restore, install, etc.
	Client          string                 `json:"client"`          // client that owns the job
	Agent           string                 `json:"agent,omitempty"` // agent on the client, if any
	Status          Status                 `json:"status"`          // STATUS_* const
	Phase           string                 `json:"phase,omitempty"` // current phase, if running
	PercentComplete int                    `json:"percentComplete"` // 0-100
	DelayReason     string                 `json:"delayReason,omitempty"`
	Args            map[string]interface{} `json:"args,omitempty"` // args the job was submitted with
	SubmittedAt     time.Time              `json:"submittedAt"`    // when the job was submitted
	UpdatedAt       time.Time              `json:"updatedAt"`      // last status change
}

// JobStatus represents the real-time status of one job.
type JobStatus struct {
	JobId           string `json:"jobId"`
	Status          Status `json:"status"`
	Phase           string `json:"phase,omitempty"`
	PercentComplete int    `json:"percentComplete"`
	DelayReason     string `json:"delayReason,omitempty"`
}

// JobStatus returns the real-time status of the job.
func (j Job) JobStatus() JobStatus {
	return JobStatus{
		JobId:           j.Id,
		Status:          j.Status,
		Phase:           j.Phase,
		PercentComplete: j.PercentComplete,
		DelayReason:     j.DelayReason,
	}
}

// SubmitRequest represents the payload to submit a new job.
type SubmitRequest struct {
	Kind   string                 `json:"kind"`
	Client string                 `json:"client"`
	Agent  string                 `json:"agent,omitempty"`
	Args   map[string]interface{} `json:"args,omitempty"`
}

// ControlRequest represents the payload to apply one action to many jobs.
type ControlRequest struct {
	JobIds []string `json:"jobIds"`
}

// ControlResult is the outcome of an action on one job in a ControlRequest.
// Error is empty on success; HTTPStatus is the status the single-job endpoint
// would have returned.
type ControlResult struct {
	JobId      string `json:"jobId"`
	Error      string `json:"error,omitempty"`
	HTTPStatus int    `json:"httpStatus"`
}

// ListFilter filters jobs returned by the list endpoint. Zero values match all jobs.
type ListFilter struct {
	Client string
	Agent  string
	Kind   string
	Status []Status
}

// String returns the filter as a URL query string, including the leading "?".
// An empty filter returns an empty string.
func (f ListFilter) String() string {
	q := url.Values{}
	if f.Client != "" {
		q.Set("client", f.Client)
	}
	if f.Agent != "" {
		q.Set("agent", f.Agent)
	}
	if f.Kind != "" {
		q.Set("kind", f.Kind)
	}
	for _, s := range f.Status {
		q.Add("status", string(s))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// Match returns true if the job matches all non-zero filter fields.
func (f ListFilter) Match(j Job) bool {
	if f.Client != "" && f.Client != j.Client {
		return false
	}
	if f.Agent != "" && f.Agent != j.Agent {
		return false
	}
	if f.Kind != "" && !strings.EqualFold(f.Kind, j.Kind) {
		return false
	}
	if len(f.Status) == 0 {
		return true
	}
	for _, s := range f.Status {
		if ParseStatus(string(s)) == j.Status {
			return true
		}
	}
	return false
}

// Jobs are a list of jobs sorted by id.
type Jobs []Job

func (j Jobs) Len() int {
	return len(j)
}
func (j Jobs) Less(i, k int) bool {
	return j[i].Id < j[k].Id
}
func (j Jobs) Swap(i, k int) {
	j[i], j[k] = j[k], j[i]
}

// Error is the standard response for all handled errors. Client errors (HTTP 400
// codes) and internal errors (HTTP 500 codes) are returned as an Error, if handled.
// If not handled (API crash, panic, etc.), the job manager returns an HTTP 500 code
// and the response data is undefined; the client should print any response data
// as a string.
type Error struct {
	Message    string `json:"message"`    // human-readable and loggable error message
	JobId      string `json:"jobId"`      // entity ID that caused error, if any
	HTTPStatus int    `json:"httpStatus"` // HTTP status code
}

func NewError(msgFmt string, msgArgs ...interface{}) Error {
	e := Error{}
	if msgFmt != "" {
		e.Message = fmt.Sprintf(msgFmt, msgArgs...)
	}
	return e
}

func (e Error) String() string {
	return e.Message
}

func (e Error) Error() string {
	return e.Message
}
