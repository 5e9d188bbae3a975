// Copyright 2020, Square, Inc.

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/square/jobctl/jobctl/app"
	"github.com/square/jobctl/lifecycle"
	"github.com/square/jobctl/proto"
	"github.com/square/jobctl/util"
)

type Submit struct {
	ctx app.Context
	req proto.SubmitRequest
}

func NewSubmit(ctx app.Context) *Submit {
	return &Submit{
		ctx: ctx,
	}
}

func (c *Submit) Prepare() error {
	args := c.ctx.Command.Args
	if len(args) == 0 {
		return fmt.Errorf("Usage: jobctl submit <kind> client=X [agent=Y] [key=value...]\n")
	}
	kv, rest := util.ParseKV(args[1:])
	if len(rest) > 0 {
		return fmt.Errorf("invalid args: %s (expected key=value)", strings.Join(rest, " "))
	}
	c.req = proto.SubmitRequest{
		Kind:   args[0],
		Client: kv["client"],
		Agent:  kv["agent"],
	}
	if c.req.Client == "" {
		return fmt.Errorf("client=X is required")
	}
	delete(kv, "client")
	delete(kv, "agent")
	if len(kv) > 0 {
		c.req.Args = map[string]interface{}{}
		for k, v := range kv {
			c.req.Args[k] = v
		}
	}
	return nil
}

func (c *Submit) Run() error {
	h, err := lifecycle.Submit(context.Background(), c.ctx.Client, c.req)
	if c.ctx.Options.Debug {
		app.Debug("submit %#v: %v", c.req, err)
	}

	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(h, err)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.ctx.Out, "OK, submitted %s (%s)\n", h.Id(), h.Status())
	return nil
}

func (c *Submit) Cmd() string {
	return "submit " + strings.Join(c.ctx.Command.Args, " ")
}

func (c *Submit) Help() string {
	return "'jobctl submit <kind> client=X [agent=Y] [key=value...]' submits a new job and prints its id.\n" +
		"Other key=value args are passed to the job.\n"
}
