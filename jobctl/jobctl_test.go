// Copyright 2020, Square, Inc.

package jobctl_test

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/square/jobctl/job-manager/sim"
	"github.com/square/jobctl/jobctl"
	"github.com/square/jobctl/jobctl/app"
	"github.com/square/jobctl/jobctl/config"
	"github.com/square/jobctl/proto"
	"github.com/square/jobctl/test/mock"
	v "github.com/square/jobctl/version"
)

const noConfig = "/nonexistent/jobctl.yaml"

func newContext() (app.Context, *bytes.Buffer) {
	output := &bytes.Buffer{}
	return app.Context{
		In:        os.Stdin,
		Out:       output,
		Hooks:     app.Hooks{},
		Factories: app.Factories{},
	}, output
}

func TestArgsNoCommand(t *testing.T) {
	ctx, output := newContext()
	os.Args = []string{"jobctl", "--config", noConfig, "--addr", "http://localhost"}
	err := jobctl.Run(ctx)
	if err != app.ErrHelp {
		t.Errorf("got error '%v', expected ErrHelp", err)
	}
	if !strings.HasPrefix(output.String(), "Usage: jobctl") {
		t.Errorf("usage not printed:\n%s", output)
	}
}

func TestArgsHelpCommand(t *testing.T) {
	ctx, output := newContext()
	os.Args = []string{"jobctl", "--config", noConfig, "help", "suspend"}
	err := jobctl.Run(ctx)
	if err != app.ErrHelp {
		t.Errorf("got error '%v', expected ErrHelp", err)
	}
	if !strings.HasPrefix(output.String(), "'jobctl suspend") {
		t.Errorf("command help not printed:\n%s", output)
	}

	os.Args = []string{"jobctl", "--help"}
	if err := jobctl.Run(ctx); err != app.ErrHelp {
		t.Errorf("got error '%v', expected ErrHelp", err)
	}
}

func TestVersion(t *testing.T) {
	ctx, output := newContext()
	os.Args = []string{"jobctl", "--config", noConfig, "version"}
	if err := jobctl.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if output.String() != "jobctl "+v.Version()+"\n" {
		t.Errorf("got output %q", output)
	}
}

func TestUnknownCommand(t *testing.T) {
	ctx, _ := newContext()
	ctx.Client = &mock.Client{}
	os.Args = []string{"jobctl", "--config", noConfig, "pause", "all"}
	err := jobctl.Run(ctx)
	if err == nil || !strings.Contains(err.Error(), "Unknown command: pause") {
		t.Errorf("got error '%v', expected unknown command", err)
	}
}

func TestPing(t *testing.T) {
	ctx, output := newContext()
	ctx.Client = &mock.Client{
		ListFunc: func(proto.ListFilter) ([]proto.Job, error) {
			return nil, mock.ErrClient
		},
	}
	os.Args = []string{"jobctl", "--config", noConfig, "--addr", "http://jm", "--ping"}
	if err := jobctl.Run(ctx); err == nil {
		t.Error("no error when ping fails")
	}

	ctx.Client = &mock.Client{}
	if err := jobctl.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if output.String() != "http://jm OK\n" {
		t.Errorf("got output %q", output)
	}
}

func TestSuspend(t *testing.T) {
	remote := mock.NewRemote(sim.Config{})
	remote.Put(
		proto.Job{Id: "j1", Kind: "backup", Client: "c1", Status: proto.STATUS_RUNNING},
		proto.Job{Id: "j2", Kind: "backup", Client: "c2", Status: proto.STATUS_RUNNING},
	)
	ctx, output := newContext()
	ctx.Client = remote
	var parsed config.Options
	ctx.Hooks.AfterParseOptions = func(o *config.Options) {
		parsed = *o
	}
	os.Args = []string{"jobctl", "--config", noConfig, "--wait", "2", "--interval", "1", "suspend", "client=c1"}
	if err := jobctl.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if parsed.Wait != 2 || parsed.Interval != 1 || parsed.Addr != config.DEFAULT_ADDR {
		t.Errorf("wrong options: %+v", parsed)
	}
	if !strings.Contains(output.String(), "suspend: 1 of 1 jobs OK") {
		t.Errorf("wrong output:\n%s", output)
	}
	if s := remote.Job("j1").Status; s != proto.STATUS_SUSPENDED {
		t.Errorf("j1 status = %s, expected %s", s, proto.STATUS_SUSPENDED)
	}
}
