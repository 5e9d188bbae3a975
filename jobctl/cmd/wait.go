// Copyright 2020, Square, Inc.

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/square/jobctl/jobctl/app"
	"github.com/square/jobctl/lifecycle"
	"github.com/square/jobctl/proto"
	"github.com/square/jobctl/util"
)

// Wait waits for jobs to reach a status, or one job to reach a phase or
// percent complete.
type Wait struct {
	ctx      app.Context
	jobIds   []string
	expected []proto.Status
	phase    string
	progress int // -1 = not waiting for progress
}

func NewWait(ctx app.Context) *Wait {
	return &Wait{
		ctx:      ctx,
		expected: terminalStatuses,
		progress: -1,
	}
}

func (c *Wait) Prepare() error {
	kv, ids := util.ParseKV(c.ctx.Command.Args)
	if len(ids) == 0 {
		return fmt.Errorf("Usage: jobctl wait <id>... [status=S[,S...] | phase=P | progress=N]\n")
	}
	c.jobIds = ids
	if len(kv) > 1 {
		return fmt.Errorf("only one of status, phase, or progress can be given")
	}
	for k, val := range kv {
		switch k {
		case "status":
			c.expected = nil
			for _, s := range strings.Split(val, ",") {
				c.expected = append(c.expected, proto.ParseStatus(s))
			}
		case "phase":
			c.phase = val
		case "progress":
			n, err := strconv.Atoi(strings.TrimSuffix(val, "%"))
			if err != nil || n < 0 || n > 100 {
				return fmt.Errorf("invalid progress: %s (must be 0-100)", val)
			}
			c.progress = n
		default:
			return fmt.Errorf("invalid arg: %s (valid: status, phase, progress)", k)
		}
	}
	if (c.phase != "" || c.progress >= 0) && len(c.jobIds) > 1 {
		return fmt.Errorf("phase and progress can only be waited for on one job")
	}
	if err := Policy(c.ctx.Options).Validate(); err != nil {
		return fmt.Errorf("--wait and --interval: %s", err)
	}
	return nil
}

func (c *Wait) Run() error {
	ctx := context.Background()
	s := lifecycle.NewSelector(lifecycle.SelectorConfig{Client: c.ctx.Client})
	sel, err := s.Select(ctx, lifecycle.Selected(c.jobIds...))
	if err != nil {
		return err
	}

	p := lifecycle.NewPoller(lifecycle.PollerConfig{Client: c.ctx.Client})
	policy := Policy(c.ctx.Options).WithExpected(c.expected...)
	var r lifecycle.Result
	switch {
	case len(sel.Handles) == 0:
		r = lifecycle.Result{}
	case c.phase != "":
		r, err = p.WaitPhase(ctx, sel.Handles[0], c.phase, policy)
	case c.progress >= 0:
		r, err = p.WaitProgress(ctx, sel.Handles[0], c.progress, policy)
	default:
		r, err = p.Wait(ctx, sel.Handles, policy)
	}
	if c.ctx.Options.Debug {
		app.Debug("wait %s: %+v", policy, r)
	}
	if err != nil {
		return err
	}

	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(r, exitErr(r, c.ctx.Options.Strict))
		return nil
	}

	printMissing(c.ctx.Out, sel.Missing)
	printResult(c.ctx.Out, r)
	return exitErr(r, c.ctx.Options.Strict)
}

func (c *Wait) Cmd() string {
	return "wait " + strings.Join(c.ctx.Command.Args, " ")
}

func (c *Wait) Help() string {
	return "'jobctl wait <id>... [status=S[,S...] | phase=P | progress=N]' waits for the jobs to finish,\n" +
		"or reach one of the statuses. Phase and progress wait for one job. Waits up to --wait seconds.\n"
}
