// Copyright 2020, Square, Inc.

package cmd

import (
	"context"
	"fmt"

	"github.com/square/jobctl/jobctl/app"
)

type Status struct {
	ctx   app.Context
	jobId string
}

func NewStatus(ctx app.Context) *Status {
	return &Status{
		ctx: ctx,
	}
}

func (c *Status) Prepare() error {
	if len(c.ctx.Command.Args) == 0 {
		return fmt.Errorf("Usage: jobctl status <id>\n")
	}
	c.jobId = c.ctx.Command.Args[0]
	return nil
}

func (c *Status) Run() error {
	status, err := c.ctx.Client.Status(context.Background(), c.jobId)
	if c.ctx.Options.Debug {
		app.Debug("status: %#v", status)
	}

	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(status, err)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.ctx.Out, "id:       %s\n", c.jobId)
	fmt.Fprintf(c.ctx.Out, "status:   %s\n", status.Status)
	if status.Phase != "" {
		fmt.Fprintf(c.ctx.Out, "phase:    %s\n", status.Phase)
	}
	fmt.Fprintf(c.ctx.Out, "progress: %d%%\n", status.PercentComplete)
	if status.DelayReason != "" {
		fmt.Fprintf(c.ctx.Out, "delay:    %s\n", status.DelayReason)
	}
	return nil
}

func (c *Status) Cmd() string {
	return "status " + c.jobId
}

func (c *Status) Help() string {
	return "'jobctl status <id>' prints the real-time status of the job.\n"
}
