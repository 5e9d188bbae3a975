// Copyright 2020, Square, Inc.

package sim_test

import (
	"context"
	"testing"

	serr "github.com/square/jobctl/errors"
	"github.com/square/jobctl/job-manager/sim"
	"github.com/square/jobctl/job-manager/store"
	"github.com/square/jobctl/proto"
)

func TestApply(t *testing.T) {
	m := sim.NewMachine(sim.Config{CommitAt: 80})
	tests := []struct {
		status   proto.Status
		percent  int
		action   string
		expect   proto.Status
		rejected bool
	}{
		{proto.STATUS_RUNNING, 10, proto.ACTION_SUSPEND, proto.STATUS_SUSPENDED, false},
		{proto.STATUS_SUSPENDED, 10, proto.ACTION_SUSPEND, proto.STATUS_SUSPENDED, false},
		{proto.STATUS_WAITING, 0, proto.ACTION_SUSPEND, proto.STATUS_SUSPENDED, false},
		{proto.STATUS_RUNNING, 90, proto.ACTION_SUSPEND, proto.STATUS_COMMITTED, false},
		{proto.STATUS_SUSPENDED, 10, proto.ACTION_RESUME, proto.STATUS_RUNNING, false},
		{proto.STATUS_RUNNING, 10, proto.ACTION_RESUME, proto.STATUS_RUNNING, false},
		{proto.STATUS_RUNNING, 10, proto.ACTION_KILL, proto.STATUS_KILLED, false},
		{proto.STATUS_SUSPENDED, 10, proto.ACTION_KILL, proto.STATUS_KILLED, false},
		{proto.STATUS_RUNNING, 80, proto.ACTION_KILL, proto.STATUS_COMMITTED, false},
		{"completed", 100, proto.ACTION_SUSPEND, "completed", true},
		{proto.STATUS_KILLED, 10, proto.ACTION_RESUME, proto.STATUS_KILLED, true},
		{proto.STATUS_COMMITTED, 90, proto.ACTION_KILL, proto.STATUS_COMMITTED, true},
		{"Some New Status", 0, proto.ACTION_RESUME, "Some New Status", true},
	}
	for _, tt := range tests {
		job := proto.Job{Id: "j1", Status: tt.status, PercentComplete: tt.percent}
		got, err := m.Apply(job, tt.action)
		if tt.rejected {
			if !serr.IsRejected(err) {
				t.Errorf("%s %s: got err %v, expected Rejected", tt.action, tt.status, err)
			}
		} else if err != nil {
			t.Errorf("%s %s: %s", tt.action, tt.status, err)
		}
		if got.Status != tt.expect {
			t.Errorf("%s %s: status %s, expected %s", tt.action, tt.status, got.Status, tt.expect)
		}
	}

	if _, err := m.Apply(proto.Job{Id: "j1", Status: proto.STATUS_RUNNING}, "pause"); err == nil || serr.IsRejected(err) {
		t.Errorf("got err %v, expected invalid action error", err)
	}
}

func TestAdvance(t *testing.T) {
	m := sim.NewMachine(sim.Config{Step: 40})
	job := m.NewJob(proto.SubmitRequest{Kind: "backup", Client: "c1"})
	if job.Id == "" || job.Status != proto.STATUS_WAITING {
		t.Fatalf("got %+v, expected new Waiting job with id", job)
	}

	expect := []struct {
		status  proto.Status
		phase   string
		percent int
	}{
		{proto.STATUS_RUNNING, "Scan", 0},
		{proto.STATUS_RUNNING, "Backup", 40},
		{proto.STATUS_RUNNING, "Archive Index", 80},
		{proto.STATUS_COMPLETED, "", 100},
		{proto.STATUS_COMPLETED, "", 100},
	}
	for i, e := range expect {
		job = m.Advance(job)
		if job.Status != e.status || job.Phase != e.phase || job.PercentComplete != e.percent {
			t.Errorf("tick %d: got %s %q %d, expected %s %q %d", i+1,
				job.Status, job.Phase, job.PercentComplete, e.status, e.phase, e.percent)
		}
	}

	// Suspended jobs do not progress
	job = proto.Job{Id: "j2", Status: proto.STATUS_SUSPENDED, PercentComplete: 30}
	if got := m.Advance(job); got.PercentComplete != 30 || got.Status != proto.STATUS_SUSPENDED {
		t.Errorf("got %+v, expected no change", got)
	}
}

func TestStartRunning(t *testing.T) {
	m := sim.NewMachine(sim.Config{StartRunning: true})
	job := m.NewJob(proto.SubmitRequest{Kind: "backup", Client: "c1"})
	if job.Status != proto.STATUS_RUNNING || job.Phase != "Scan" {
		t.Errorf("got %s %q, expected Running Scan", job.Status, job.Phase)
	}
}

func TestAdvancerTick(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	m := sim.NewMachine(sim.Config{Step: 50, StartRunning: true})
	running := m.NewJob(proto.SubmitRequest{Kind: "backup", Client: "c1"})
	suspended := m.NewJob(proto.SubmitRequest{Kind: "backup", Client: "c1"})
	suspended.Status = proto.STATUS_SUSPENDED
	for _, job := range []proto.Job{running, suspended} {
		if err := s.Add(ctx, job); err != nil {
			t.Fatal(err)
		}
	}

	a := sim.NewAdvancer(s, m, 0)
	for i, expect := range []int{1, 1, 0} {
		n, err := a.Tick(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n != expect {
			t.Errorf("tick %d: advanced %d jobs, expected %d", i+1, n, expect)
		}
	}
	got, _ := s.Get(ctx, running.Id)
	if got.Status != proto.STATUS_COMPLETED {
		t.Errorf("status %s, expected Completed", got.Status)
	}
	got, _ = s.Get(ctx, suspended.Id)
	if got.Status != proto.STATUS_SUSPENDED || got.PercentComplete != 0 {
		t.Errorf("got %s %d%%, expected Suspended 0%%", got.Status, got.PercentComplete)
	}
}
