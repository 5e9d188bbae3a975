// Copyright 2020, Square, Inc.

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/square/jobctl/client"
	serr "github.com/square/jobctl/errors"
	"github.com/square/jobctl/proto"
	"github.com/square/jobctl/retry"
)

type ControllerConfig struct {
	Client    client.Client
	Poller    *Poller       // default: NewPoller with the same client, logger, and recorder
	Selector  *Selector     // default: NewSelector with the same client and logger
	RetryWait time.Duration // between retries of transient errors, default 1s
	Logger    *log.Entry    // default: component=controller
	Recorder  Recorder      // default: no metrics
}

// A Controller suspends, resumes, and kills batches of jobs and waits for each
// job to reach the action's accepted states. The outcome for one job never
// affects the others.
type Controller struct {
	client    client.Client
	poller    *Poller
	selector  *Selector
	retryWait time.Duration
	logger    *log.Entry
	rec       Recorder
}

func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		client:    cfg.Client,
		poller:    cfg.Poller,
		selector:  cfg.Selector,
		retryWait: cfg.RetryWait,
		logger:    cfg.Logger,
		rec:       cfg.Recorder,
	}
	if c.retryWait <= 0 {
		c.retryWait = time.Second
	}
	if c.logger == nil {
		c.logger = log.WithField("component", "controller")
	}
	if c.rec == nil {
		c.rec = nopRecorder{}
	}
	if c.poller == nil {
		c.poller = NewPoller(PollerConfig{
			Client:   c.client,
			Logger:   c.logger,
			Recorder: c.rec,
		})
	}
	if c.selector == nil {
		c.selector = NewSelector(SelectorConfig{
			Client:    c.client,
			RetryWait: c.retryWait,
			Logger:    c.logger,
		})
	}
	return c
}

func (c *Controller) Suspend(ctx context.Context, handles []*Handle, policy WaitPolicy) (Result, error) {
	return c.Apply(ctx, proto.ACTION_SUSPEND, handles, policy)
}

func (c *Controller) Resume(ctx context.Context, handles []*Handle, policy WaitPolicy) (Result, error) {
	return c.Apply(ctx, proto.ACTION_RESUME, handles, policy)
}

func (c *Controller) Kill(ctx context.Context, handles []*Handle, policy WaitPolicy) (Result, error) {
	return c.Apply(ctx, proto.ACTION_KILL, handles, policy)
}

// ApplySelection selects handles with the criterion, then applies the action to
// them. Selected ids unknown to the remote system are dropped (logged as a
// warning). Selecting nothing is a successful, empty result. Listing counts
// against the same policy.Timeout as the action and the wait.
func (c *Controller) ApplySelection(ctx context.Context, action string, criterion Criterion, policy WaitPolicy) (Result, Selection, error) {
	policy, err := c.checkArgs(action, policy)
	if err != nil {
		return Result{Action: action}, Selection{}, err
	}
	start := time.Now()
	lctx, cancel := context.WithDeadline(ctx, start.Add(policy.Timeout))
	sel, err := c.selector.Select(lctx, criterion)
	cancel()
	if err != nil {
		return Result{Action: action}, sel, err
	}
	r, err := c.apply(ctx, action, sel.Handles, policy, start)
	return r, sel, err
}

// Apply applies the action to every handle and waits for each to reach the
// accepted states of the action (AcceptedStates), within policy.Timeout. The
// policy's Expected statuses are ignored.
//
// Each handle's status is queried first. Handles already terminal are skipped,
// and handles already in an accepted state (like suspending a suspended job)
// are converged without sending the action. Transient errors are retried until
// the timeout, but a handle that keeps failing transiently is retried on its
// own so it does not hold up the others. Rejections are not retried: they are
// logged and reported in Result.Failures with kind FAILURE_REJECTED.
//
// An error is returned only for an invalid action or policy, or if ctx is
// cancelled. Use Result.OK or Result.Err to check the outcome.
func (c *Controller) Apply(ctx context.Context, action string, handles []*Handle, policy WaitPolicy) (Result, error) {
	policy, err := c.checkArgs(action, policy)
	if err != nil {
		return Result{Action: action}, err
	}
	return c.apply(ctx, action, handles, policy, time.Now())
}

func (c *Controller) apply(ctx context.Context, action string, handles []*Handle, policy WaitPolicy, start time.Time) (Result, error) {
	handles = unique(handles)
	outcomes := make([]outcome, len(handles))

	// The budget covers the status queries and actions as well as the wait
	bctx, cancel := context.WithDeadline(ctx, start.Add(policy.Timeout))
	defer cancel()

	c.logger.Infof("%s %d jobs (%s)", action, len(handles), policy)

	// Query fresh status once and decide what needs the action. Handles that
	// fail transiently are retried separately, below.
	retryStatus := []int{}
	for i, h := range handles {
		if c.prepare(bctx, action, h, &outcomes[i], policy, false) {
			retryStatus = append(retryStatus, i)
		}
	}
	if err := ctx.Err(); err != nil {
		return c.finish(action, handles, outcomes, start), err
	}

	// Send the action once to every handle that needs it
	todo := []int{}
	for i := range handles {
		if outcomes[i].state == outcomePending && !contains(retryStatus, i) {
			todo = append(todo, i)
		}
	}
	var retryControl []int
	if bc, ok := c.client.(client.BatchController); ok && len(todo) > 1 {
		retryControl = c.controlBatch(bctx, bc, action, handles, todo, outcomes)
	} else {
		for _, i := range todo {
			if c.control(bctx, action, handles[i], &outcomes[i], false) {
				retryControl = append(retryControl, i)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return c.finish(action, handles, outcomes, start), err
	}

	acked := []*Handle{}
	ackedIdx := []int{}
	for _, i := range todo {
		if outcomes[i].state == outcomePending && !contains(retryControl, i) {
			acked = append(acked, handles[i])
			ackedIdx = append(ackedIdx, i)
		}
	}

	// Retry the stragglers concurrently with the wait for the others
	var wg sync.WaitGroup
	for _, i := range retryStatus {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.settle(ctx, bctx, action, handles[i], &outcomes[i], policy, start, false)
		}(i)
	}
	for _, i := range retryControl {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.settle(ctx, bctx, action, handles[i], &outcomes[i], policy, start, true)
		}(i)
	}

	// Wait for acknowledged handles to converge
	if len(acked) > 0 {
		wr, _ := c.poller.wait(ctx, acked, policy, start, c.accepts(policy), policy.FailFast)
		merge(wr, acked, ackedIdx, outcomes)
	}
	wg.Wait()

	r := c.finish(action, handles, outcomes, start)
	return r, ctx.Err()
}

func (c *Controller) checkArgs(action string, policy WaitPolicy) (WaitPolicy, error) {
	if !proto.ValidAction(action) {
		return policy, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if err := policy.Validate(); err != nil {
		return policy, err
	}
	return policy.ForAction(action)
}

func (c *Controller) accepts(policy WaitPolicy) acceptFunc {
	return func(s proto.JobStatus) bool {
		return policy.Accepts(s.Status)
	}
}

// attempt calls try once, or until it succeeds or fails with a non-transient
// error if persist is true.
func (c *Controller) attempt(ctx context.Context, persist bool, try retry.TryFunc, logRetry retry.LogFunc) error {
	if !persist {
		return try()
	}
	return retry.Do(ctx, c.retryWait, serr.IsTransient, try, logRetry)
}

// prepare queries the handle's status and marks it skipped, converged, or failed
// if the action should not be sent. It leaves the outcome pending otherwise.
// Unless persist is true, a transient error leaves the outcome pending and
// prepare returns true so the caller can retry the handle later.
func (c *Controller) prepare(ctx context.Context, action string, h *Handle, o *outcome, policy WaitPolicy, persist bool) bool {
	jobLog := c.logger.WithField("job", h.Id())

	var status proto.JobStatus
	tryStatus := func() error {
		var err error
		status, err = c.client.Status(ctx, h.Id())
		c.rec.StatusQueried(err)
		return err
	}
	logRetry := func(err error) {
		jobLog.Warnf("status query failed: %s (retrying)", err)
	}
	if err := c.attempt(ctx, persist, tryStatus, logRetry); err != nil {
		if !persist && serr.IsTransient(err) && ctx.Err() == nil {
			logRetry(err)
			return true
		}
		c.fail(h, o, err)
		return false
	}
	h.observe(status, time.Now())

	jobLog = jobLog.WithField("status", h.Status())
	switch {
	case h.Status().Terminal():
		jobLog.Infof("job already finished, %s is a no-op", action)
		o.state = outcomeSkipped
	case policy.Accepts(h.Status()):
		jobLog.Infof("job already %s, not sending %s", h.Status(), action)
		o.state = outcomeConverged
	}
	return false
}

// control sends the action to the handle. Like prepare, it returns true if the
// action failed transiently and persist is false.
func (c *Controller) control(ctx context.Context, action string, h *Handle, o *outcome, persist bool) bool {
	jobLog := c.logger.WithField("job", h.Id())
	tryControl := func() error {
		err := c.client.Control(ctx, h.Id(), action)
		c.rec.ActionSent(action, err)
		return err
	}
	logRetry := func(err error) {
		jobLog.Warnf("%s failed: %s (retrying)", action, err)
	}
	if err := c.attempt(ctx, persist, tryControl, logRetry); err != nil {
		if !persist && serr.IsTransient(err) && ctx.Err() == nil {
			logRetry(err)
			return true
		}
		c.fail(h, o, err)
		return false
	}
	jobLog.Infof("%s sent", action)
	return false
}

// settle retries one handle whose first status query (or action, if queried)
// failed transiently, then waits for it alone. Retries and the wait share the
// batch deadline in bctx; ctx is the caller's context.
func (c *Controller) settle(ctx, bctx context.Context, action string, h *Handle, o *outcome, policy WaitPolicy, start time.Time, queried bool) {
	if !queried {
		c.prepare(bctx, action, h, o, policy, true)
		if o.state != outcomePending {
			return
		}
	}
	c.control(bctx, action, h, o, true)
	if o.state != outcomePending || ctx.Err() != nil {
		return
	}
	wr, _ := c.poller.wait(ctx, []*Handle{h}, policy, start, c.accepts(policy), policy.FailFast)
	outcomes := []outcome{*o}
	merge(wr, []*Handle{h}, []int{0}, outcomes)
	*o = outcomes[0]
}

// controlBatch sends the action to the handles at todo in one call. It returns
// the handles to retry one by one: those with transient errors, or all of them
// if the call itself fails.
func (c *Controller) controlBatch(ctx context.Context, bc client.BatchController, action string, handles []*Handle, todo []int, outcomes []outcome) []int {
	ids := make([]string, len(todo))
	for n, i := range todo {
		ids[n] = handles[i].Id()
	}
	errs, err := bc.ControlJobs(ctx, action, ids)
	if err != nil {
		c.logger.Warnf("batch %s failed: %s (sending to each job)", action, err)
		return todo
	}
	again := []int{}
	for _, i := range todo {
		h := handles[i]
		jobErr, ok := errs[h.Id()]
		if !ok {
			jobErr = fmt.Errorf("no result for job %s in batch %s", h.Id(), action)
		}
		c.rec.ActionSent(action, jobErr)
		switch {
		case jobErr == nil:
			c.logger.WithField("job", h.Id()).Infof("%s sent", action)
		case serr.IsTransient(jobErr):
			c.logger.WithField("job", h.Id()).Warnf("%s failed: %s (retrying)", action, jobErr)
			again = append(again, i)
		default:
			c.fail(h, &outcomes[i], jobErr)
		}
	}
	return again
}

func (c *Controller) fail(h *Handle, o *outcome, err error) {
	f := Failure{JobId: h.Id(), Kind: FAILURE_ERROR, Status: h.Status(), Err: err}
	jobLog := c.logger.WithField("job", h.Id())
	switch {
	case serr.IsRejected(err):
		f.Kind = FAILURE_REJECTED
		jobLog.Error(err)
	case serr.IsNotFound(err):
		f.Kind = FAILURE_NOT_FOUND
		jobLog.Error(err)
	case serr.IsTransient(err):
		f.Kind = FAILURE_TRANSIENT
		jobLog.Warnf("giving up: %s", err)
	case errors.Is(err, context.DeadlineExceeded):
		f.Kind = FAILURE_TIMEOUT
		f.Err = nil
		jobLog.Warn("timeout")
	case errors.Is(err, context.Canceled):
		// Caller cancelled; stays pending so the result reports it as not converged
		o.state = outcomePending
		return
	default:
		jobLog.Error(err)
	}
	o.state = outcomeFailed
	o.failure = f
}

func (c *Controller) finish(action string, handles []*Handle, outcomes []outcome, start time.Time) Result {
	r := collect(action, handles, outcomes, time.Since(start))
	c.rec.Finished(r)
	if r.OK() {
		c.logger.Infof("%s: %d converged, %d skipped in %s", action, len(r.Converged), len(r.Skipped), r.Elapsed.Round(time.Millisecond))
	} else {
		c.logger.Warnf("%s: %d converged, %d skipped, %d failed in %s", action, len(r.Converged), len(r.Skipped), len(r.Failures), r.Elapsed.Round(time.Millisecond))
	}
	return r
}

// merge copies the outcomes of a wait on a subset of handles back into the
// outcomes of the full batch.
func merge(wr Result, subset []*Handle, idx []int, outcomes []outcome) {
	pos := make(map[*Handle]int, len(subset))
	for n, h := range subset {
		pos[h] = idx[n]
	}
	for _, h := range wr.Converged {
		outcomes[pos[h]].state = outcomeConverged
	}
	for _, f := range wr.Failures {
		for n, h := range subset {
			if h.Id() == f.JobId {
				outcomes[idx[n]] = outcome{state: outcomeFailed, failure: f}
				break
			}
		}
	}
}

func contains(idx []int, i int) bool {
	for _, n := range idx {
		if n == i {
			return true
		}
	}
	return false
}

// unique returns handles without repeats, by id, keeping the first.
func unique(handles []*Handle) []*Handle {
	seen := make(map[string]bool, len(handles))
	u := make([]*Handle, 0, len(handles))
	for _, h := range handles {
		if h == nil || seen[h.Id()] {
			continue
		}
		seen[h.Id()] = true
		u = append(u, h)
	}
	return u
}
