// Copyright 2020, Square, Inc.

// Package cmd provides all the commands that jobctl can run: suspend, ls, etc.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/square/jobctl/jobctl/app"
	"github.com/square/jobctl/jobctl/config"
	"github.com/square/jobctl/lifecycle"
	"github.com/square/jobctl/proto"
	"github.com/square/jobctl/util"
)

var (
	ErrNotExist    = errors.New("command does not exist")
	ErrNoCriterion = errors.New("no jobs specified: use 'all', client=X [agent=Y], type=T, or job ids")
)

type DefaultFactory struct {
}

func (f *DefaultFactory) Make(name string, ctx app.Context) (app.Command, error) {
	switch name {
	case "help":
		return NewHelp(ctx), nil
	case "kill", "resume", "suspend":
		return NewControl(ctx, name), nil
	case "ls":
		return NewLs(ctx), nil
	case "status":
		return NewStatus(ctx), nil
	case "submit":
		return NewSubmit(ctx), nil
	case "version":
		return NewVersion(ctx), nil
	case "wait":
		return NewWait(ctx), nil
	default:
		return nil, ErrNotExist
	}
}

// ParseCriterion parses job selection args: "all", "client=X", "client=X agent=Y",
// "type=T", or a list of job ids. The second value is true for job ids.
func ParseCriterion(args []string) (lifecycle.Criterion, bool, error) {
	if len(args) == 0 {
		return lifecycle.Criterion{}, false, ErrNoCriterion
	}
	kv, ids := util.ParseKV(args)
	if len(kv) == 0 {
		if len(ids) == 1 && strings.ToLower(ids[0]) == "all" {
			return lifecycle.All(), false, nil
		}
		return lifecycle.Selected(ids...), true, nil
	}
	if len(ids) > 0 {
		return lifecycle.Criterion{}, false, fmt.Errorf("cannot mix job ids (%s) and key=value criteria", strings.Join(ids, ", "))
	}
	for k, v := range kv {
		switch k {
		case "client", "agent", "type":
		default:
			return lifecycle.Criterion{}, false, fmt.Errorf("invalid criterion: %s (valid: client, agent, type)", k)
		}
		if v == "" {
			return lifecycle.Criterion{}, false, fmt.Errorf("%s value is empty", k)
		}
	}
	client, agent, kind := kv["client"], kv["agent"], kv["type"]
	switch {
	case kind != "" && (client != "" || agent != ""):
		return lifecycle.Criterion{}, false, fmt.Errorf("type cannot be combined with client or agent")
	case kind != "":
		return lifecycle.ByJobType(kind), false, nil
	case client == "":
		return lifecycle.Criterion{}, false, fmt.Errorf("agent requires client")
	case agent != "":
		return lifecycle.ByAgent(client, agent), false, nil
	}
	return lifecycle.ByClient(client), false, nil
}

// Policy returns the wait policy from --wait and --interval.
func Policy(o config.Options) lifecycle.WaitPolicy {
	return lifecycle.PolicyFromSeconds(o.Wait, o.Interval)
}

// --------------------------------------------------------------------------

func printMissing(out io.Writer, missing []string) {
	for _, id := range missing {
		fmt.Fprintf(out, "%-9s %s\n", "MISSING", id)
	}
}

// printResult prints one line per job and a summary line.
func printResult(out io.Writer, r lifecycle.Result) {
	for _, h := range r.Converged {
		fmt.Fprintf(out, "%-9s %s  %s\n", "OK", h.Id(), h.Status())
	}
	for _, h := range r.Skipped {
		fmt.Fprintf(out, "%-9s %s  %s\n", "SKIPPED", h.Id(), h.Status())
	}
	for _, f := range r.Failures {
		detail := fmt.Sprintf("%s (status %s)", f.Kind, f.Status)
		if f.Err != nil {
			detail = fmt.Sprintf("%s: %s", f.Kind, f.Err)
		}
		fmt.Fprintf(out, "%-9s %s  %s\n", "FAILED", f.JobId, detail)
	}
	action := r.Action
	if action == "" {
		action = "wait"
	}
	fmt.Fprintf(out, "%s: %d of %d jobs OK, %d skipped, %d failed (%s)\n",
		action, len(r.Converged), r.Total(), len(r.Skipped), len(r.Failures), r.Elapsed.Round(time.Millisecond))
}

// exitErr returns the error jobctl exits with: r.Err() if strict, else only
// failures that are not timeouts. Jobs that did not converge in time might
// still converge, so they are failures only with --strict.
func exitErr(r lifecycle.Result, strict bool) error {
	if strict {
		return r.Err()
	}
	var hard []lifecycle.Failure
	for _, f := range r.Failures {
		if f.Kind == lifecycle.FAILURE_TIMEOUT || f.Kind == lifecycle.FAILURE_TRANSIENT {
			continue
		}
		hard = append(hard, f)
	}
	if len(hard) == 0 {
		return nil
	}
	return &lifecycle.ResultError{Action: r.Action, Total: r.Total(), Failures: hard}
}

// terminalStatuses are what wait waits for by default.
var terminalStatuses = []proto.Status{
	proto.STATUS_COMPLETED,
	proto.STATUS_COMPLETED_WITH_ERRORS,
	proto.STATUS_KILLED,
	proto.STATUS_COMMITTED,
	proto.STATUS_FAILED,
}
