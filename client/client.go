// Copyright 2020, Square, Inc.

// Package client provides the interface to the remote job manager and an HTTP
// client that implements it.
package client

import (
	"context"

	"github.com/square/jobctl/proto"
)

// A Client is the remote job manager's job-management API. Implementations return
// errors.JobNotFound for unknown job ids, errors.Rejected when a control action
// is refused, and errors.Transient for temporary communication failures.
type Client interface {
	// Submit submits a new job and returns it as created by the remote system.
	Submit(context.Context, proto.SubmitRequest) (proto.Job, error)

	// Status returns the real-time status of one job.
	Status(ctx context.Context, jobId string) (proto.JobStatus, error)

	// Control applies one of the proto.ACTION_* actions to a job. It returns
	// as soon as the remote system acknowledges the action; the job's status
	// may not reflect the action yet.
	Control(ctx context.Context, jobId, action string) error

	// List returns all jobs matching the filter.
	List(context.Context, proto.ListFilter) ([]proto.Job, error)
}

// A BatchController applies one action to many jobs in a single remote call. The
// returned map has an entry for every job id: nil on success, else the same
// error Control would have returned. A non-nil error means the call as a whole
// failed and no per-job outcome is known.
type BatchController interface {
	ControlJobs(ctx context.Context, action string, jobIds []string) (map[string]error, error)
}
