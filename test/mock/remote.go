// Copyright 2020, Square, Inc.

package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	serr "github.com/square/jobctl/errors"
	"github.com/square/jobctl/job-manager/sim"
	"github.com/square/jobctl/proto"
)

// Remote is an in-memory remote job manager that implements client.Client. Control
// actions change jobs like the job manager does (sim.Machine), but the new status
// is reported only after Lag more status queries of the job, like a real remote
// system that acknowledges actions before they take effect. Jobs never progress
// on their own.
type Remote struct {
	Lag int // status queries after an action before the new status is reported

	// Optional errors, consumed in order, returned instead of calling the remote
	// system: per job id for Status and Control, one list for List.
	StatusErrs  map[string][]error
	ControlErrs map[string][]error
	ListErrs    []error

	// --
	machine *sim.Machine
	mux     *sync.Mutex
	jobs    map[string]proto.Job
	pending map[string]pendingStatus
	calls   []string
	nextId  int
}

type pendingStatus struct {
	job   proto.Job
	after int
}

func NewRemote(cfg sim.Config) *Remote {
	cfg.StartRunning = true
	return &Remote{
		StatusErrs:  map[string][]error{},
		ControlErrs: map[string][]error{},
		machine:     sim.NewMachine(cfg),
		mux:         &sync.Mutex{},
		jobs:        map[string]proto.Job{},
		pending:     map[string]pendingStatus{},
	}
}

// Put adds or replaces a job.
func (r *Remote) Put(jobs ...proto.Job) {
	r.mux.Lock()
	defer r.mux.Unlock()
	for _, job := range jobs {
		r.jobs[job.Id] = job
		delete(r.pending, job.Id)
	}
}

// Job returns the job as the remote system has it, including pending changes.
func (r *Remote) Job(jobId string) proto.Job {
	r.mux.Lock()
	defer r.mux.Unlock()
	if p, ok := r.pending[jobId]; ok {
		return p.job
	}
	return r.jobs[jobId]
}

// Calls returns all calls, like "status j1" and "control j1 suspend", in order.
func (r *Remote) Calls() []string {
	r.mux.Lock()
	defer r.mux.Unlock()
	return append([]string{}, r.calls...)
}

// Count returns the number of calls with the given prefix, like "control".
func (r *Remote) Count(prefix string) int {
	n := 0
	for _, c := range r.Calls() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (r *Remote) Submit(ctx context.Context, req proto.SubmitRequest) (proto.Job, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.calls = append(r.calls, "submit "+req.Client)
	r.nextId++
	job := r.machine.NewJob(req)
	job.Id = fmt.Sprintf("job%03d", r.nextId)
	r.jobs[job.Id] = job
	return job, nil
}

func (r *Remote) Status(ctx context.Context, jobId string) (proto.JobStatus, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.calls = append(r.calls, "status "+jobId)
	if err := pop(r.StatusErrs, jobId); err != nil {
		return proto.JobStatus{}, err
	}
	job, ok := r.jobs[jobId]
	if !ok {
		return proto.JobStatus{}, serr.JobNotFound{JobId: jobId}
	}
	if p, ok := r.pending[jobId]; ok {
		if p.after <= 0 {
			job = p.job
			r.jobs[jobId] = job
			delete(r.pending, jobId)
		} else {
			p.after--
			r.pending[jobId] = p
		}
	}
	return job.JobStatus(), nil
}

func (r *Remote) Control(ctx context.Context, jobId, action string) error {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.calls = append(r.calls, "control "+jobId+" "+action)
	if err := pop(r.ControlErrs, jobId); err != nil {
		return err
	}
	job, ok := r.jobs[jobId]
	if !ok {
		return serr.JobNotFound{JobId: jobId}
	}
	if p, ok := r.pending[jobId]; ok {
		job = p.job
	}
	next, err := r.machine.Apply(job, action)
	if err != nil {
		return err
	}
	if r.Lag <= 0 {
		r.jobs[jobId] = next
		delete(r.pending, jobId)
	} else {
		r.pending[jobId] = pendingStatus{job: next, after: r.Lag}
	}
	return nil
}

func (r *Remote) List(ctx context.Context, f proto.ListFilter) ([]proto.Job, error) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.calls = append(r.calls, "list "+f.String())
	if len(r.ListErrs) > 0 {
		err := r.ListErrs[0]
		r.ListErrs = r.ListErrs[1:]
		return nil, err
	}
	jobs := proto.Jobs{}
	for _, job := range r.jobs {
		if f.Match(job) {
			jobs = append(jobs, job)
		}
	}
	sort.Sort(jobs)
	return jobs, nil
}

func pop(errs map[string][]error, jobId string) error {
	if len(errs[jobId]) == 0 {
		return nil
	}
	err := errs[jobId][0]
	errs[jobId] = errs[jobId][1:]
	return err
}
