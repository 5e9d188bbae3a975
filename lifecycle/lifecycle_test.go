// Copyright 2020, Square, Inc.

package lifecycle_test

import (
	"sort"
	"time"

	"github.com/square/jobctl/client"
	"github.com/square/jobctl/job-manager/sim"
	"github.com/square/jobctl/lifecycle"
	"github.com/square/jobctl/proto"
	"github.com/square/jobctl/test/mock"
)

// Test policies are the production 60s/5s policy scaled down
const (
	testTimeout  = 600 * time.Millisecond
	testInterval = 10 * time.Millisecond
)

func testPolicy(expected ...proto.Status) lifecycle.WaitPolicy {
	return lifecycle.NewWaitPolicy(testTimeout, testInterval, expected...)
}

func shortPolicy(expected ...proto.Status) lifecycle.WaitPolicy {
	return lifecycle.NewWaitPolicy(50*time.Millisecond, testInterval, expected...)
}

func job(id, client string, status proto.Status) proto.Job {
	return proto.Job{Id: id, Kind: "backup", Client: client, Status: status}
}

func newRemote(jobs ...proto.Job) *mock.Remote {
	r := mock.NewRemote(sim.Config{})
	r.Put(jobs...)
	return r
}

func newController(c client.Client) *lifecycle.Controller {
	return lifecycle.NewController(lifecycle.ControllerConfig{
		Client:    c,
		RetryWait: 5 * time.Millisecond,
	})
}

func ids(handles []*lifecycle.Handle) []string {
	return lifecycle.Ids(handles)
}

func failures(r lifecycle.Result) map[string]lifecycle.FailureKind {
	m := map[string]lifecycle.FailureKind{}
	for _, f := range r.Failures {
		m[f.JobId] = f.Kind
	}
	return m
}

func sortedCopy(s []string) []string {
	c := append([]string{}, s...)
	sort.Strings(c)
	return c
}
