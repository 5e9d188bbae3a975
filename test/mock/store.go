// Copyright 2020, Square, Inc.

package mock

import (
	"context"
	"errors"

	"github.com/square/jobctl/job-manager/store"
	"github.com/square/jobctl/proto"
)

var (
	ErrStore = errors.New("forced error in store")
)

// Store is a job manager store.Store.
type Store struct {
	AddFunc    func(proto.Job) error
	GetFunc    func(jobId string) (proto.Job, error)
	ListFunc   func(proto.ListFilter) ([]proto.Job, error)
	UpdateFunc func(jobId string, fn store.UpdateFunc) (proto.Job, error)
}

var _ store.Store = &Store{}

func (s *Store) Add(ctx context.Context, job proto.Job) error {
	if s.AddFunc != nil {
		return s.AddFunc(job)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, jobId string) (proto.Job, error) {
	if s.GetFunc != nil {
		return s.GetFunc(jobId)
	}
	return proto.Job{}, nil
}

func (s *Store) List(ctx context.Context, f proto.ListFilter) ([]proto.Job, error) {
	if s.ListFunc != nil {
		return s.ListFunc(f)
	}
	return nil, nil
}

func (s *Store) Update(ctx context.Context, jobId string, fn store.UpdateFunc) (proto.Job, error) {
	if s.UpdateFunc != nil {
		return s.UpdateFunc(jobId, fn)
	}
	return proto.Job{}, nil
}
