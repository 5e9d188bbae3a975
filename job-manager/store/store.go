// Copyright 2020, Square, Inc.

// Package store stores the jobs of the job manager.
package store

import (
	"context"
	"errors"

	"github.com/square/jobctl/proto"
)

var (
	ErrConflict = errors.New("job already exists")
	ErrNoJobId  = errors.New("job id not set")
)

// UpdateFunc returns the new job given the current one. If it returns an error,
// the job is not changed and Update returns the error.
type UpdateFunc func(proto.Job) (proto.Job, error)

// A Store stores jobs by id. Jobs are never deleted. All methods are safe to call
// concurrently.
type Store interface {
	// Add adds a new job. It returns ErrConflict if the id exists.
	Add(context.Context, proto.Job) error

	// Get returns one job, or errors.JobNotFound.
	Get(ctx context.Context, jobId string) (proto.Job, error)

	// List returns all jobs matching the filter, sorted by id. Job ids are
	// xids, so this is the order jobs were submitted.
	List(context.Context, proto.ListFilter) ([]proto.Job, error)

	// Update atomically replaces a job with the one returned by fn and returns
	// it, or errors.JobNotFound. The job id cannot be changed.
	Update(ctx context.Context, jobId string, fn UpdateFunc) (proto.Job, error)
}
