// Copyright 2020, Square, Inc.

package cmd

import (
	"context"
	"fmt"

	"github.com/square/jobctl/jobctl/app"
	"github.com/square/jobctl/lifecycle"
)

const (
	PHASE_COL_LEN = 20
)

type Ls struct {
	ctx       app.Context
	criterion lifecycle.Criterion
}

func NewLs(ctx app.Context) *Ls {
	return &Ls{
		ctx:       ctx,
		criterion: lifecycle.All(),
	}
}

func (c *Ls) Prepare() error {
	if len(c.ctx.Command.Args) == 0 {
		return nil
	}
	crit, _, err := ParseCriterion(c.ctx.Command.Args)
	if err != nil {
		return err
	}
	c.criterion = crit
	return nil
}

func (c *Ls) Run() error {
	s := lifecycle.NewSelector(lifecycle.SelectorConfig{Client: c.ctx.Client})
	sel, err := s.Select(context.Background(), c.criterion)
	if c.ctx.Options.Debug {
		app.Debug("selection: %#v", sel)
	}

	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(sel, err)
		return nil
	}
	if err != nil {
		return err
	}

	printMissing(c.ctx.Out, sel.Missing)
	if len(sel.Handles) == 0 {
		return nil
	}

	hdr := "%-20s  %-10s  %-20s  %-10s  %-20s  %4s\n"
	line := "%-20s  %-10s  %-20s  %-10s  %-20s  %3d%%\n"
	fmt.Fprintf(c.ctx.Out, hdr, "ID", "KIND", "OWNER", "STATUS", "PHASE", "PRG")
	for _, h := range sel.Handles {
		phase := h.Phase()
		if len(phase) > PHASE_COL_LEN {
			phase = phase[:PHASE_COL_LEN-3] + "..."
		}
		fmt.Fprintf(c.ctx.Out, line, h.Id(), h.Kind(), h.Owner(), h.Status(), phase, h.Progress())
	}
	return nil
}

func (c *Ls) Cmd() string {
	return "ls " + c.criterion.String()
}

func (c *Ls) Help() string {
	return "'jobctl ls [all | client=X [agent=Y] | type=T | id...]' lists jobs, all jobs by default.\n"
}
