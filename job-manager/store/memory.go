// Copyright 2020, Square, Inc.

package store

import (
	"context"
	"sort"

	cmap "github.com/orcaman/concurrent-map"

	serr "github.com/square/jobctl/errors"
	"github.com/square/jobctl/proto"
)

// Memory is a Store in local memory.
type Memory struct {
	jobs cmap.ConcurrentMap // jobId => proto.Job
}

func NewMemory() *Memory {
	return &Memory{
		jobs: cmap.New(),
	}
}

func (m *Memory) Add(ctx context.Context, job proto.Job) error {
	if job.Id == "" {
		return ErrNoJobId
	}
	if !m.jobs.SetIfAbsent(job.Id, job) {
		return ErrConflict
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, jobId string) (proto.Job, error) {
	v, ok := m.jobs.Get(jobId)
	if !ok {
		return proto.Job{}, serr.JobNotFound{JobId: jobId}
	}
	return v.(proto.Job), nil
}

func (m *Memory) List(ctx context.Context, f proto.ListFilter) ([]proto.Job, error) {
	jobs := proto.Jobs{}
	m.jobs.IterCb(func(key string, v interface{}) {
		job := v.(proto.Job)
		if f.Match(job) {
			jobs = append(jobs, job)
		}
	})
	sort.Sort(jobs)
	return jobs, nil
}

func (m *Memory) Update(ctx context.Context, jobId string, fn UpdateFunc) (proto.Job, error) {
	// Jobs are never removed, so a job that exists now exists in Upsert
	if !m.jobs.Has(jobId) {
		return proto.Job{}, serr.JobNotFound{JobId: jobId}
	}
	var err error
	v := m.jobs.Upsert(jobId, nil, func(exists bool, inMap interface{}, _ interface{}) interface{} {
		cur := inMap.(proto.Job)
		next, fnErr := fn(cur)
		if fnErr != nil {
			err = fnErr
			return cur
		}
		next.Id = cur.Id
		return next
	})
	if err != nil {
		return v.(proto.Job), err
	}
	return v.(proto.Job), nil
}
