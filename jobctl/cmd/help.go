// Copyright 2020, Square, Inc.

package cmd

import (
	"fmt"

	"github.com/square/jobctl/jobctl/app"
	"github.com/square/jobctl/jobctl/config"
)

type Help struct {
	ctx app.Context
}

func NewHelp(ctx app.Context) *Help {
	return &Help{
		ctx: ctx,
	}
}

func (c *Help) Prepare() error {
	return nil
}

func (c *Help) Run() error {
	// Return app.ErrHelp on success so jobctl.Run returns it.
	if c.ctx.Options.Help || len(c.ctx.Command.Args) == 0 { // jobctl, jobctl --help, jobctl help
		c.Usage()
		return app.ErrHelp
	}

	// jobctl help <cmd>
	arg := c.ctx.Command.Args[0]
	factory := c.ctx.Factories.Command
	if factory == nil {
		factory = &DefaultFactory{}
	}
	cmd, err := factory.Make(arg, c.ctx)
	if err != nil {
		return fmt.Errorf("'%s' is not a valid command. Run 'jobctl help' to list commands.", arg)
	}
	fmt.Fprint(c.ctx.Out, cmd.Help())
	return app.ErrHelp
}

func (c *Help) Cmd() string {
	return "help"
}

func (c *Help) Help() string {
	return "Run 'jobctl help' for usage, or 'jobctl help <command>' for command help.\n"
}

// --------------------------------------------------------------------------

func (c *Help) Usage() {
	fmt.Fprintf(c.ctx.Out, "Usage: jobctl [flags] command [args]\n\n"+
		"Flags:\n"+
		"  --addr      Job manager API address (default: %s)\n"+
		"  --config    Config files (default: %s)\n"+
		"  --debug     Print debug to stderr\n"+
		"  --help      Print help\n"+
		"  --interval  Seconds between status queries (default: %d)\n"+
		"  --ping      Ping the job manager API\n"+
		"  --strict    Jobs that do not converge in time are failures\n"+
		"  --timeout   API request timeout in milliseconds (default: %d)\n"+
		"  --version   Print version\n"+
		"  --wait      Seconds to wait for jobs (default: %d)\n"+
		"  -y, --yes   Do not ask for confirmation\n\n"+
		"Commands:\n"+
		"  help    <command>\n"+
		"  kill    <criterion>\n"+
		"  ls      [criterion]\n"+
		"  resume  <criterion>\n"+
		"  status  <id>\n"+
		"  submit  <kind> client=X [agent=Y] [key=value...]\n"+
		"  suspend <criterion>\n"+
		"  version\n"+
		"  wait    <id>... [status=S | phase=P | progress=N]\n\n"+
		"Criterion is one of: all, client=X, client=X agent=Y, type=T, or job ids.\n",
		config.DEFAULT_ADDR, config.DEFAULT_CONFIG_FILES, c.ctx.Options.Interval, config.DEFAULT_TIMEOUT, c.ctx.Options.Wait)
}
