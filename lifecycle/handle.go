// Copyright 2020, Square, Inc.

package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"github.com/square/jobctl/proto"
)

// Owner is the entity a job belongs to, used for batch selection.
type Owner struct {
	Client string
	Agent  string // empty if the job is not tied to one agent
}

func (o Owner) String() string {
	if o.Agent == "" {
		return o.Client
	}
	return o.Client + "/" + o.Agent
}

// A Handle is the local representation of one remote job: its identity and its
// last observed status. The id, kind, and owner never change. Status, phase, and
// progress change only when the Poller or Controller observes the job remotely.
// A Handle is safe to read while it is being polled.
type Handle struct {
	id    string
	kind  string
	owner Owner
	// --
	mux          *sync.Mutex
	status       proto.Status
	phase        string
	progress     int
	lastPolledAt time.Time
}

// NewHandle makes a Handle for a job returned by the remote system (from Submit
// or List). The job's status is taken as the first observation.
func NewHandle(job proto.Job) *Handle {
	h := &Handle{
		id:    job.Id,
		kind:  job.Kind,
		owner: Owner{Client: job.Client, Agent: job.Agent},
		mux:   &sync.Mutex{},
	}
	if job.Status != proto.STATUS_UNKNOWN {
		h.observe(job.JobStatus(), time.Now())
	}
	return h
}

// NewHandles makes a Handle for each job, in order.
func NewHandles(jobs []proto.Job) []*Handle {
	handles := make([]*Handle, len(jobs))
	for i, job := range jobs {
		handles[i] = NewHandle(job)
	}
	return handles
}

func (h *Handle) Id() string   { return h.id }
func (h *Handle) Kind() string { return h.kind }
func (h *Handle) Owner() Owner { return h.owner }

func (h *Handle) Status() proto.Status {
	h.mux.Lock()
	defer h.mux.Unlock()
	return h.status
}

func (h *Handle) Phase() string {
	h.mux.Lock()
	defer h.mux.Unlock()
	return h.phase
}

// Progress returns the last observed percent complete.
func (h *Handle) Progress() int {
	h.mux.Lock()
	defer h.mux.Unlock()
	return h.progress
}

// LastPolledAt returns when the status was last observed, or the zero time if never.
func (h *Handle) LastPolledAt() time.Time {
	h.mux.Lock()
	defer h.mux.Unlock()
	return h.lastPolledAt
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s (%s %s, %s)", h.id, h.kind, h.owner, h.Status())
}

func (h *Handle) observe(s proto.JobStatus, at time.Time) {
	h.mux.Lock()
	h.status = proto.ParseStatus(string(s.Status))
	h.phase = s.Phase
	h.progress = s.PercentComplete
	h.lastPolledAt = at
	h.mux.Unlock()
}

// Ids returns the id of each handle, in order.
func Ids(handles []*Handle) []string {
	ids := make([]string, len(handles))
	for i, h := range handles {
		ids[i] = h.id
	}
	return ids
}
