// Copyright 2020, Square, Inc.

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/square/jobctl/jobctl/app"
	"github.com/square/jobctl/jobctl/prompt"
	"github.com/square/jobctl/lifecycle"
	"github.com/square/jobctl/proto"
)

// Control is the suspend, resume, and kill commands.
type Control struct {
	ctx       app.Context
	action    string
	criterion lifecycle.Criterion
	byIds     bool
}

func NewControl(ctx app.Context, action string) *Control {
	return &Control{
		ctx:    ctx,
		action: action,
	}
}

func (c *Control) Prepare() error {
	if !proto.ValidAction(c.action) {
		return fmt.Errorf("invalid action: %s", c.action)
	}
	crit, byIds, err := ParseCriterion(c.ctx.Command.Args)
	if err != nil {
		if err == ErrNoCriterion {
			return fmt.Errorf("Usage: jobctl %s <all | client=X [agent=Y] | type=T | id...>\n", c.action)
		}
		return err
	}
	c.criterion = crit
	c.byIds = byIds
	if err := Policy(c.ctx.Options).Validate(); err != nil {
		return fmt.Errorf("--wait and --interval: %s", err)
	}
	return nil
}

func (c *Control) Run() error {
	// Killing by criterion can hit jobs the user did not expect, so confirm
	if c.action == proto.ACTION_KILL && !c.byIds && !c.ctx.Options.Yes {
		p := prompt.NewConfirmationPrompt(
			fmt.Sprintf("Kill all jobs matching %s? Enter 'yes' to confirm: ", c.criterion),
			"yes", c.ctx.In, c.ctx.Out)
		if err := p.Prompt(); err != nil {
			return fmt.Errorf("not confirmed, no jobs killed")
		}
	}

	ctrl := lifecycle.NewController(lifecycle.ControllerConfig{Client: c.ctx.Client})
	r, sel, err := ctrl.ApplySelection(context.Background(), c.action, c.criterion, Policy(c.ctx.Options))
	if c.ctx.Options.Debug {
		app.Debug("%s %s: %+v, %+v", c.action, c.criterion, sel, r)
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

func (c *Control) Cmd() string {
	return c.action + " " + strings.Join(c.ctx.Command.Args, " ")
}

func (c *Control) Help() string {
	return fmt.Sprintf("'jobctl %s <all | client=X [agent=Y] | type=T | id...>' %ss the jobs and waits for them.\n"+
		"Jobs already finished are skipped. Waits up to --wait seconds, checking every --interval seconds.\n"+
		"Jobs that do not converge in time are failures only with --strict.\n", c.action, c.action)
}
