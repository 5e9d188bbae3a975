// Copyright 2020, Square, Inc.

package cmd

import (
	"fmt"

	"github.com/square/jobctl/jobctl/app"
	v "github.com/square/jobctl/version"
)

type Version struct {
	ctx app.Context
}

func NewVersion(ctx app.Context) *Version {
	return &Version{
		ctx: ctx,
	}
}

func (c *Version) Prepare() error {
	return nil
}

func (c *Version) Run() error {
	fmt.Fprintf(c.ctx.Out, "jobctl %s\n", v.Version())
	return nil
}

func (c *Version) Cmd() string {
	return "version"
}

func (c *Version) Help() string {
	return "'jobctl version' prints the jobctl version.\n"
}
