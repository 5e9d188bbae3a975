// Copyright 2020, Square, Inc.

// Package lifecycle controls the lifecycle of remote jobs: it selects batches of
// jobs, applies control actions to them, and waits for them to reach expected
// statuses. All remote calls go through a client.Client.
package lifecycle

import (
	"context"
	"sync"

	"github.com/square/jobctl/client"
	"github.com/square/jobctl/proto"
)

// Submit submits one job and returns its handle.
func Submit(ctx context.Context, c client.Client, req proto.SubmitRequest) (*Handle, error) {
	job, err := c.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return NewHandle(job), nil
}

// SubmitAll submits all requests in parallel. The returned slices are the same
// length as reqs and in the same order: for each request, either the handle or
// the error is non-nil. Submissions are independent; one failing does not stop
// the others.
func SubmitAll(ctx context.Context, c client.Client, reqs []proto.SubmitRequest) ([]*Handle, []error) {
	handles := make([]*Handle, len(reqs))
	errs := make([]error, len(reqs))
	var wg sync.WaitGroup
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = Submit(ctx, c, reqs[i])
		}(i)
	}
	wg.Wait()
	return handles, errs
}
