// Copyright 2020, Square, Inc.

package sim

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/square/jobctl/job-manager/store"
	"github.com/square/jobctl/proto"
)

// An Advancer advances all unfinished jobs in a store every tick until stopped.
type Advancer struct {
	store    store.Store
	machine  *Machine
	interval time.Duration
	// --
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewAdvancer(s store.Store, m *Machine, interval time.Duration) *Advancer {
	return &Advancer{
		store:    s,
		machine:  m,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Run advances jobs every interval until Stop is called. It blocks.
func (a *Advancer) Run() {
	defer close(a.doneChan)
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopChan:
			return
		case <-ticker.C:
			if _, err := a.Tick(context.Background()); err != nil {
				log.Errorf("advancing jobs: %s", err)
			}
		}
	}
}

// Stop stops Run and waits for it to return. Only call Stop if Run was called.
func (a *Advancer) Stop() {
	close(a.stopChan)
	<-a.doneChan
}

// Tick advances every job not finished or suspended once and returns how many changed.
func (a *Advancer) Tick(ctx context.Context) (int, error) {
	jobs, err := a.store.List(ctx, proto.ListFilter{Status: []proto.Status{
		proto.STATUS_WAITING,
		proto.STATUS_PENDING,
		proto.STATUS_QUEUED,
		proto.STATUS_RUNNING,
	}})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, job := range jobs {
		before := job.Status
		// Advance the current job, not the listed one: a control action
		// may have changed it since
		after, err := a.store.Update(ctx, job.Id, func(cur proto.Job) (proto.Job, error) {
			return a.machine.Advance(cur), nil
		})
		if err != nil {
			log.Errorf("advancing job %s: %s", job.Id, err)
			continue
		}
		if after.Status != before {
			log.WithFields(log.Fields{"job": job.Id, "status": after.Status}).Infof("job %s -> %s", before, after.Status)
		}
		n++
	}
	return n, nil
}
