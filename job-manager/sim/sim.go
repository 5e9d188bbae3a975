// Copyright 2020, Square, Inc.

// Package sim simulates remote jobs: how they respond to control actions and
// how they progress over time.
package sim

import (
	"fmt"
	"time"

	serr "github.com/square/jobctl/errors"
	"github.com/square/jobctl/proto"
	"github.com/square/jobctl/util"
)

// DefaultPhases are the phases of a running job, in order. Each covers an equal
// share of progress.
var DefaultPhases = []string{"Scan", "Backup", "Archive Index"}

type Config struct {
	// Percent complete added to every running job each tick.
	Step int

	// Once a job is at least this percent complete, suspend and kill commit the
	// job (keep the work done) instead. Zero disables commit.
	CommitAt int

	Phases []string

	// New jobs start Running instead of Waiting.
	StartRunning bool
}

// A Machine applies control actions and advances jobs. It is stateless: callers
// pass the current job and store the returned one.
type Machine struct {
	cfg Config
	now func() time.Time
}

func NewMachine(cfg Config) *Machine {
	if cfg.Step <= 0 {
		cfg.Step = 10
	}
	if len(cfg.Phases) == 0 {
		cfg.Phases = DefaultPhases
	}
	return &Machine{
		cfg: cfg,
		now: time.Now,
	}
}

// NewJob returns a new job for the request with a new id.
func (m *Machine) NewJob(req proto.SubmitRequest) proto.Job {
	now := m.now()
	job := proto.Job{
		Id:          util.XID(),
		Kind:        req.Kind,
		Client:      req.Client,
		Agent:       req.Agent,
		Status:      proto.STATUS_WAITING,
		DelayReason: "waiting for resources",
		Args:        req.Args,
		SubmittedAt: now,
		UpdatedAt:   now,
	}
	if m.cfg.StartRunning {
		job.Status = proto.STATUS_RUNNING
		job.Phase = m.cfg.Phases[0]
		job.DelayReason = ""
	}
	return job
}

// Apply returns the job after the action, or errors.Rejected if the job's status
// does not allow the action. Actions on finished jobs are always rejected.
// Suspending a suspended job and resuming a running job are accepted no-ops.
func (m *Machine) Apply(job proto.Job, action string) (proto.Job, error) {
	status := proto.ParseStatus(string(job.Status))
	if status.Terminal() {
		return job, serr.NewRejected(job.Id, action, fmt.Sprintf("job is %s", status))
	}

	switch action {
	case proto.ACTION_SUSPEND:
		switch status {
		case proto.STATUS_SUSPENDED:
			return job, nil
		case proto.STATUS_RUNNING, proto.STATUS_WAITING, proto.STATUS_PENDING, proto.STATUS_QUEUED:
			if m.committable(job) {
				return m.set(job, proto.STATUS_COMMITTED), nil
			}
			return m.set(job, proto.STATUS_SUSPENDED), nil
		}
	case proto.ACTION_RESUME:
		switch status {
		case proto.STATUS_RUNNING, proto.STATUS_WAITING, proto.STATUS_PENDING, proto.STATUS_QUEUED:
			return job, nil
		case proto.STATUS_SUSPENDED:
			return m.set(job, proto.STATUS_RUNNING), nil
		}
	case proto.ACTION_KILL:
		if m.committable(job) {
			return m.set(job, proto.STATUS_COMMITTED), nil
		}
		return m.set(job, proto.STATUS_KILLED), nil
	default:
		return job, fmt.Errorf("invalid action: %s", action)
	}
	return job, serr.NewRejected(job.Id, action, fmt.Sprintf("job is %s", status))
}

// Advance returns the job after one tick. Jobs not started yet start running;
// running jobs progress and complete at 100 percent. Other jobs do not change.
func (m *Machine) Advance(job proto.Job) proto.Job {
	switch proto.ParseStatus(string(job.Status)) {
	case proto.STATUS_WAITING, proto.STATUS_PENDING, proto.STATUS_QUEUED:
		job = m.set(job, proto.STATUS_RUNNING)
		job.DelayReason = ""
	case proto.STATUS_RUNNING:
		job.PercentComplete += m.cfg.Step
		if job.PercentComplete >= 100 {
			job.PercentComplete = 100
			job.Phase = ""
			return m.set(job, proto.STATUS_COMPLETED)
		}
		job.Phase = m.phase(job.PercentComplete)
		job.UpdatedAt = m.now()
	}
	return job
}

func (m *Machine) phase(percent int) string {
	n := len(m.cfg.Phases)
	i := percent * n / 100
	if i >= n {
		i = n - 1
	}
	return m.cfg.Phases[i]
}

func (m *Machine) committable(job proto.Job) bool {
	return m.cfg.CommitAt > 0 && job.PercentComplete >= m.cfg.CommitAt
}

func (m *Machine) set(job proto.Job, status proto.Status) proto.Job {
	job.Status = status
	job.UpdatedAt = m.now()
	if status != proto.STATUS_RUNNING {
		job.Phase = ""
	}
	if status == proto.STATUS_RUNNING && job.Phase == "" {
		job.Phase = m.phase(job.PercentComplete)
	}
	return job
}
