// Copyright 2020, Square, Inc.

// Package jobctl provides a framework for integration with other programs.
package jobctl

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/square/jobctl/jobctl/app"
	"github.com/square/jobctl/jobctl/cmd"
	"github.com/square/jobctl/jobctl/config"
	"github.com/square/jobctl/proto"
)

// Run runs jobctl and returns when done. When using a standard jobctl bin, Run is
// called by jobctl/bin/main.go. When jobctl is wrapped by custom code, that code
// imports this pkg then call jobctl.Run() with its custom factories. If a factory
// is not set (nil), then the default/standard factory is used. Run returns
// app.ErrHelp after printing help.
func Run(ctx app.Context) error {
	// //////////////////////////////////////////////////////////////////////
	// Config and command line
	// //////////////////////////////////////////////////////////////////////

	// Options are set in this order: defaults -> config -> env var -> cmd line
	// option. So first we must apply config files, then do cmd line parsing
	// which will apply env vars and cmd line options.
	args := os.Args[1:]

	// Parse cmd line to get --config files
	cmdLine, err := config.ParseCommandLine(config.Options{}, args)
	if err != nil {
		return fmt.Errorf("Error parsing command line: %s", err)
	}

	// --config files override defaults if given
	configFiles := config.DEFAULT_CONFIG_FILES
	if cmdLine.Config != "" {
		configFiles = cmdLine.Config
	}
	if cmdLine.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	// Parse default options from config files
	def := config.ParseConfigFiles(config.Defaults(), configFiles, cmdLine.Debug)

	// Parse env vars and cmd line options, override default config
	cmdLine, err = config.ParseCommandLine(def, args)
	if err != nil {
		return fmt.Errorf("Error parsing command line: %s", err)
	}

	// Final options and commands
	var o config.Options = cmdLine.Options
	var c config.Command = cmdLine.Command
	if o.Debug {
		app.Debug("command: %#v", c)
		app.Debug("options: %#v", o)
	}

	if ctx.Hooks.AfterParseOptions != nil {
		if o.Debug {
			app.Debug("calling hook AfterParseOptions")
		}
		ctx.Hooks.AfterParseOptions(&o)

		// Dump options again to see if hook changed them
		if o.Debug {
			app.Debug("options: %#v", o)
		}
	}
	ctx.Options = o
	ctx.Command = c
	if c.Cmd != "" {
		ctx.Nargs = 1 + len(c.Args)
	}

	defaultFactory := &cmd.DefaultFactory{}
	if ctx.Factories.Command == nil {
		ctx.Factories.Command = defaultFactory
	}

	// //////////////////////////////////////////////////////////////////////
	// Help and version
	// //////////////////////////////////////////////////////////////////////
	if o.Help || c.Cmd == "" || c.Cmd == "help" {
		return cmd.NewHelp(ctx).Run()
	}
	if o.Version || c.Cmd == "version" {
		return cmd.NewVersion(ctx).Run()
	}

	// //////////////////////////////////////////////////////////////////////
	// Job manager client
	// //////////////////////////////////////////////////////////////////////
	if ctx.Client == nil {
		if o.Addr == "" {
			return fmt.Errorf("Job manager API address is not set."+
				" It is best to specify addr in a config file (%s). Or, specify"+
				" --addr on the command line option or set the ADDR environment"+
				" variable. Use --ping to test addr when set.", config.DEFAULT_CONFIG_FILES)
		}
		if o.Debug {
			app.Debug("addr: %s", o.Addr)
		}
		ctx.Client, err = app.MakeClient(ctx)
		if err != nil {
			return fmt.Errorf("Error making job manager client: %s", err)
		}
	}

	// //////////////////////////////////////////////////////////////////////
	// Ping
	// //////////////////////////////////////////////////////////////////////
	if o.Ping {
		if _, err := ctx.Client.List(context.Background(), proto.ListFilter{}); err != nil {
			return fmt.Errorf("Ping failed: %s", err)
		}
		fmt.Fprintf(ctx.Out, "%s OK\n", o.Addr)
		return nil
	}

	// //////////////////////////////////////////////////////////////////////
	// Commands
	// //////////////////////////////////////////////////////////////////////
	run, err := ctx.Factories.Command.Make(c.Cmd, ctx)
	if err == cmd.ErrNotExist && ctx.Factories.Command != app.CommandFactory(defaultFactory) {
		if o.Debug {
			app.Debug("user cmd factory cannot make a %s cmd, trying default factory", c.Cmd)
		}
		run, err = defaultFactory.Make(c.Cmd, ctx)
	}
	if err != nil {
		switch err {
		case cmd.ErrNotExist:
			return fmt.Errorf("Unknown command: %s. Run 'jobctl help' to list commands.", c.Cmd)
		default:
			return fmt.Errorf("Command factory error: %s", err)
		}
	}

	if err := run.Prepare(); err != nil {
		if o.Debug {
			app.Debug("%s Prepare error: %s", c.Cmd, err)
		}
		return err
	}

	if err := run.Run(); err != nil {
		if o.Debug {
			app.Debug("%s Run error: %s", c.Cmd, err)
		}
		return err
	}
	return nil
}
