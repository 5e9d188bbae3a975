// Copyright 2020, Square, Inc.

package cmd_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-test/deep"

	"github.com/square/jobctl/job-manager/sim"
	"github.com/square/jobctl/jobctl/app"
	"github.com/square/jobctl/jobctl/cmd"
	"github.com/square/jobctl/jobctl/config"
	"github.com/square/jobctl/lifecycle"
	"github.com/square/jobctl/proto"
	"github.com/square/jobctl/test/mock"
)

func job(id, client, agent string, status proto.Status) proto.Job {
	return proto.Job{Id: id, Kind: "backup", Client: client, Agent: agent, Status: status}
}

func newContext(c interface{}, command string, args ...string) (app.Context, *bytes.Buffer) {
	output := &bytes.Buffer{}
	ctx := app.Context{
		In:  strings.NewReader(""),
		Out: output,
		Options: config.Options{
			Wait:     1,
			Interval: 1,
		},
		Command: config.Command{
			Cmd:  command,
			Args: args,
		},
	}
	switch c := c.(type) {
	case *mock.Remote:
		ctx.Client = c
	case *mock.Client:
		ctx.Client = c
	}
	return ctx, output
}

func TestParseCriterion(t *testing.T) {
	tests := []struct {
		args   []string
		expect string // Criterion.String
		byIds  bool
		err    bool
	}{
		{args: []string{"all"}, expect: "all"},
		{args: []string{"ALL"}, expect: "all"},
		{args: []string{"client=c1"}, expect: "client=c1"},
		{args: []string{"client=c1", "agent=SQL"}, expect: "client=c1 agent=SQL"},
		{args: []string{"type=backup"}, expect: "type=backup"},
		{args: []string{"j1", "j2"}, expect: "ids=j1,j2", byIds: true},
		{args: []string{}, err: true},
		{args: []string{"agent=SQL"}, err: true},
		{args: []string{"type=backup", "client=c1"}, err: true},
		{args: []string{"j1", "client=c1"}, err: true},
		{args: []string{"owner=c1"}, err: true},
		{args: []string{"client="}, err: true},
	}
	for _, tt := range tests {
		crit, byIds, err := cmd.ParseCriterion(tt.args)
		if (err != nil) != tt.err {
			t.Errorf("%v: got err %v, expected error %t", tt.args, err, tt.err)
			continue
		}
		if tt.err {
			continue
		}
		if crit.String() != tt.expect {
			t.Errorf("%v: got %s, expected %s", tt.args, crit, tt.expect)
		}
		if byIds != tt.byIds {
			t.Errorf("%v: byIds %t, expected %t", tt.args, byIds, tt.byIds)
		}
	}
}

func TestFactory(t *testing.T) {
	f := &cmd.DefaultFactory{}
	ctx, _ := newContext(nil, "")
	for _, name := range []string{"help", "kill", "ls", "resume", "status", "submit", "suspend", "version", "wait"} {
		c, err := f.Make(name, ctx)
		if err != nil {
			t.Errorf("%s: %s", name, err)
			continue
		}
		if c.Help() == "" {
			t.Errorf("%s: no help", name)
		}
	}
	if _, err := f.Make("pause", ctx); err != cmd.ErrNotExist {
		t.Errorf("got err %v, expected ErrNotExist", err)
	}
}

func TestLs(t *testing.T) {
	j1 := job("j1", "c1", "SQL", proto.STATUS_RUNNING)
	j1.Phase = "Scan"
	j1.PercentComplete = 10
	j2 := job("j2", "c1", "", proto.STATUS_SUSPENDED)
	j2.Kind = "restore"
	j2.PercentComplete = 40
	remote := mock.NewRemote(sim.Config{})
	remote.Put(j1, j2, job("j3", "c2", "", proto.STATUS_RUNNING))

	ctx, output := newContext(remote, "ls", "client=c1")
	ls := cmd.NewLs(ctx)
	if err := ls.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := ls.Run(); err != nil {
		t.Fatal(err)
	}
	expect := "ID                    KIND        OWNER                 STATUS      PHASE                  PRG\n" +
		"j1                    backup      c1/SQL                Running     Scan                   10%\n" +
		"j2                    restore     c1                    Suspended                          40%\n"
	if output.String() != expect {
		t.Errorf("got output:\n%s\nexpected:\n%s", output, expect)
	}
}

func TestStatus(t *testing.T) {
	c := &mock.Client{
		StatusFunc: func(jobId string) (proto.JobStatus, error) {
			return proto.JobStatus{JobId: jobId, Status: proto.STATUS_WAITING, DelayReason: "waiting for resources"}, nil
		},
	}
	ctx, output := newContext(c, "status", "j1")
	status := cmd.NewStatus(ctx)
	if err := status.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := status.Run(); err != nil {
		t.Fatal(err)
	}
	expect := "id:       j1\n" +
		"status:   Waiting\n" +
		"progress: 0%\n" +
		"delay:    waiting for resources\n"
	if output.String() != expect {
		t.Errorf("got output:\n%s\nexpected:\n%s", output, expect)
	}

	ctx, _ = newContext(c, "status")
	if err := cmd.NewStatus(ctx).Prepare(); err == nil {
		t.Error("no error without job id")
	}
}

func TestSubmit(t *testing.T) {
	var got proto.SubmitRequest
	c := &mock.Client{
		SubmitFunc: func(req proto.SubmitRequest) (proto.Job, error) {
			got = req
			return proto.Job{Id: "j1", Kind: req.Kind, Client: req.Client, Status: proto.STATUS_WAITING}, nil
		},
	}
	ctx, output := newContext(c, "submit", "backup", "client=c1", "agent=SQL", "db=orders")
	submit := cmd.NewSubmit(ctx)
	if err := submit.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := submit.Run(); err != nil {
		t.Fatal(err)
	}
	expect := proto.SubmitRequest{
		Kind:   "backup",
		Client: "c1",
		Agent:  "SQL",
		Args:   map[string]interface{}{"db": "orders"},
	}
	if diff := deep.Equal(got, expect); diff != nil {
		t.Error(diff)
	}
	if output.String() != "OK, submitted j1 (Waiting)\n" {
		t.Errorf("got output %q", output)
	}

	for _, args := range [][]string{{}, {"backup"}, {"backup", "client=c1", "oops"}} {
		ctx, _ := newContext(c, "submit", args...)
		if err := cmd.NewSubmit(ctx).Prepare(); err == nil {
			t.Errorf("%v: no error", args)
		}
	}
}

func TestCommandRunResultHook(t *testing.T) {
	remote := mock.NewRemote(sim.Config{})
	remote.Put(job("j1", "c1", "", proto.STATUS_RUNNING))
	ctx, output := newContext(remote, "suspend", "j1")
	var result interface{}
	var resultErr error
	ctx.Hooks.CommandRunResult = func(r interface{}, err error) {
		result = r
		resultErr = err
	}
	c := cmd.NewControl(ctx, proto.ACTION_SUSPEND)
	if err := c.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	r, ok := result.(lifecycle.Result)
	if !ok {
		t.Fatalf("got result %T, expected lifecycle.Result", result)
	}
	if !r.OK() || resultErr != nil {
		t.Errorf("result not OK: %v", resultErr)
	}
	if output.Len() != 0 {
		t.Errorf("printed output with hook: %s", output)
	}
}
