// Copyright 2020, Square, Inc.

// Package mock provides mocks for testing.
package mock

import (
	"context"
	"errors"

	"github.com/square/jobctl/proto"
)

var (
	ErrClient = errors.New("forced error in client")
)

type Client struct {
	SubmitFunc  func(proto.SubmitRequest) (proto.Job, error)
	StatusFunc  func(jobId string) (proto.JobStatus, error)
	ControlFunc func(jobId, action string) error
	ListFunc    func(proto.ListFilter) ([]proto.Job, error)
}

func (c *Client) Submit(ctx context.Context, req proto.SubmitRequest) (proto.Job, error) {
	if c.SubmitFunc != nil {
		return c.SubmitFunc(req)
	}
	return proto.Job{}, nil
}

func (c *Client) Status(ctx context.Context, jobId string) (proto.JobStatus, error) {
	if c.StatusFunc != nil {
		return c.StatusFunc(jobId)
	}
	return proto.JobStatus{}, nil
}

func (c *Client) Control(ctx context.Context, jobId, action string) error {
	if c.ControlFunc != nil {
		return c.ControlFunc(jobId, action)
	}
	return nil
}

func (c *Client) List(ctx context.Context, f proto.ListFilter) ([]proto.Job, error) {
	if c.ListFunc != nil {
		return c.ListFunc(f)
	}
	return nil, nil
}

// BatchClient is a Client that also implements client.BatchController.
type BatchClient struct {
	Client
	ControlJobsFunc func(action string, jobIds []string) (map[string]error, error)
}

func (c *BatchClient) ControlJobs(ctx context.Context, action string, jobIds []string) (map[string]error, error) {
	if c.ControlJobsFunc != nil {
		return c.ControlJobsFunc(action, jobIds)
	}
	errs := map[string]error{}
	for _, id := range jobIds {
		errs[id] = nil
	}
	return errs, nil
}
