// Copyright 2020, Square, Inc.

package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/square/jobctl/client"
	serr "github.com/square/jobctl/errors"
	"github.com/square/jobctl/proto"
)

type PollerConfig struct {
	Client   client.Client
	Logger   *log.Entry // default: component=poller
	Recorder Recorder   // default: no metrics
}

// A Poller waits for handles to reach expected statuses by querying the remote
// system at a fixed interval. A wait is bounded by its WaitPolicy timeout and
// by the caller's context. Abandoning a wait never changes remote job state.
type Poller struct {
	client client.Client
	logger *log.Entry
	rec    Recorder
}

func NewPoller(cfg PollerConfig) *Poller {
	p := &Poller{
		client: cfg.Client,
		logger: cfg.Logger,
		rec:    cfg.Recorder,
	}
	if p.logger == nil {
		p.logger = log.WithField("component", "poller")
	}
	if p.rec == nil {
		p.rec = nopRecorder{}
	}
	return p
}

// acceptFunc returns true when a handle is done waiting.
type acceptFunc func(proto.JobStatus) bool

// Wait waits for every handle to reach one of policy.Expected. It returns when
// all handles converge or policy.Timeout elapses, whichever is first. Timeout
// is not an error: handles that did not converge are in Result.Failures with
// kind FAILURE_TIMEOUT (or FAILURE_TRANSIENT if the remote system was not
// reachable). An error is returned only if the policy is invalid or ctx is
// cancelled, in which case the partial result is returned too.
func (p *Poller) Wait(ctx context.Context, handles []*Handle, policy WaitPolicy) (Result, error) {
	if err := policy.Validate(); err != nil {
		return Result{}, err
	}
	accept := func(s proto.JobStatus) bool {
		return policy.Accepts(s.Status)
	}
	start := time.Now()
	r, err := p.wait(ctx, handles, policy, start, accept, policy.FailFast)
	p.rec.Finished(r)
	return r, err
}

// WaitPhase waits for the handle to report the phase (case-insensitive). A job
// that finishes before reaching the phase fails with FAILURE_TERMINAL.
func (p *Poller) WaitPhase(ctx context.Context, h *Handle, phase string, policy WaitPolicy) (Result, error) {
	if err := policy.Validate(); err != nil {
		return Result{}, err
	}
	accept := func(s proto.JobStatus) bool {
		return strings.EqualFold(strings.TrimSpace(s.Phase), strings.TrimSpace(phase))
	}
	r, err := p.wait(ctx, []*Handle{h}, policy, time.Now(), accept, true)
	p.rec.Finished(r)
	return r, err
}

// WaitProgress waits for the handle to report at least percent complete. A job
// that finishes first fails with FAILURE_TERMINAL unless it also reports the
// percent.
func (p *Poller) WaitProgress(ctx context.Context, h *Handle, percent int, policy WaitPolicy) (Result, error) {
	if err := policy.Validate(); err != nil {
		return Result{}, err
	}
	if percent < 0 || percent > 100 {
		return Result{}, fmt.Errorf("invalid percent %d: must be 0-100", percent)
	}
	accept := func(s proto.JobStatus) bool {
		return s.PercentComplete >= percent
	}
	r, err := p.wait(ctx, []*Handle{h}, policy, time.Now(), accept, true)
	p.rec.Finished(r)
	return r, err
}

// wait is the bounded polling loop. The deadline is start + policy.Timeout so
// the Controller can count time spent sending actions against the same budget.
// Handles are queried one at a time, in order, once per sweep.
func (p *Poller) wait(ctx context.Context, handles []*Handle, policy WaitPolicy, start time.Time, accept acceptFunc, stopOnTerminal bool) (Result, error) {
	wctx, cancel := context.WithDeadline(ctx, start.Add(policy.Timeout))
	defer cancel()

	outcomes := make([]outcome, len(handles))
	pending := len(handles)
	sweep := 0

POLL:
	for pending > 0 {
		sweep++
		for i, h := range handles {
			if outcomes[i].state != outcomePending {
				continue
			}
			if wctx.Err() != nil {
				break POLL
			}

			status, err := p.client.Status(wctx, h.Id())
			p.rec.StatusQueried(err)
			if err != nil {
				if wctx.Err() != nil {
					break POLL // timeout or cancel during the query
				}
				if serr.IsTransient(err) {
					p.logger.WithField("job", h.Id()).Warnf("status query failed: %s (retrying on next poll)", err)
					outcomes[i].lastErr = err
					continue
				}
				kind := FAILURE_ERROR
				if serr.IsNotFound(err) {
					kind = FAILURE_NOT_FOUND
				}
				p.logger.WithField("job", h.Id()).Errorf("status query failed: %s", err)
				outcomes[i] = outcome{
					state:   outcomeFailed,
					failure: Failure{JobId: h.Id(), Kind: kind, Status: h.Status(), Err: err},
				}
				pending--
				continue
			}

			h.observe(status, time.Now())
			outcomes[i].lastErr = nil
			jobLog := p.logger.WithFields(log.Fields{"job": h.Id(), "status": h.Status()})
			switch {
			case accept(status):
				jobLog.Infof("job converged after %s", time.Since(start).Round(time.Millisecond))
				outcomes[i].state = outcomeConverged
				pending--
			case stopOnTerminal && h.Status().Terminal():
				jobLog.Warn("job finished without converging")
				outcomes[i] = outcome{
					state:   outcomeFailed,
					failure: Failure{JobId: h.Id(), Kind: FAILURE_TERMINAL, Status: h.Status()},
				}
				pending--
			default:
				jobLog.Debugf("waiting (phase %q, %d%% complete)", status.Phase, status.PercentComplete)
			}
		}

		if pending == 0 {
			break
		}
		p.logger.Debugf("poll %d: %d of %d jobs pending, sleeping %s", sweep, pending, len(handles), policy.PollInterval)
		select {
		case <-wctx.Done():
			break POLL
		case <-time.After(policy.PollInterval):
		}
	}

	r := collect("", handles, outcomes, time.Since(start))
	if err := ctx.Err(); err != nil {
		p.logger.Warnf("wait cancelled with %d of %d jobs pending: %s", pending, len(handles), err)
		return r, err
	}
	if pending > 0 {
		p.logger.Warnf("timeout after %s: %d of %d jobs did not converge", policy.Timeout, pending, len(handles))
	}
	return r, nil
}
