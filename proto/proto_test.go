// Copyright 2020, Square, Inc.

package proto_test

import (
	"testing"

	"github.com/square/jobctl/proto"
)

func TestListFilterString(t *testing.T) {
	f := proto.ListFilter{}
	expect := ""
	got := f.String()
	if got != expect {
		t.Errorf("got '%s', expected '%s'", got, expect)
	}

	f = proto.ListFilter{Client: "clientA"}
	expect = "?client=clientA"
	got = f.String()
	if got != expect {
		t.Errorf("got '%s', expected '%s'", got, expect)
	}

	// url.Values.Encode sorts by key
	f = proto.ListFilter{Client: "clientA", Kind: "backup", Status: []proto.Status{proto.STATUS_RUNNING, proto.STATUS_WAITING}}
	expect = "?client=clientA&kind=backup&status=Running&status=Waiting"
	got = f.String()
	if got != expect {
		t.Errorf("got '%s', expected '%s'", got, expect)
	}
}

func TestListFilterMatch(t *testing.T) {
	job := proto.Job{
		Id:     "j1",
		Kind:   "backup",
		Client: "clientA",
		Agent:  "fs",
		Status: proto.STATUS_RUNNING,
	}
	tests := []struct {
		f     proto.ListFilter
		match bool
	}{
		{proto.ListFilter{}, true},
		{proto.ListFilter{Client: "clientA"}, true},
		{proto.ListFilter{Client: "clientB"}, false},
		{proto.ListFilter{Client: "clientA", Agent: "fs"}, true},
		{proto.ListFilter{Client: "clientA", Agent: "sql"}, false},
		{proto.ListFilter{Kind: "Backup"}, true},
		{proto.ListFilter{Kind: "restore"}, false},
		{proto.ListFilter{Status: []proto.Status{"running"}}, true},
		{proto.ListFilter{Status: []proto.Status{proto.STATUS_SUSPENDED}}, false},
	}
	for i, tt := range tests {
		if got := tt.f.Match(job); got != tt.match {
			t.Errorf("test %d: Match(%+v) = %t, expected %t", i, tt.f, got, tt.match)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := map[string]proto.Status{
		"Running":                         proto.STATUS_RUNNING,
		"running":                         proto.STATUS_RUNNING,
		" SUSPENDED ":                     proto.STATUS_SUSPENDED,
		"Waiting-to-run":                  proto.STATUS_WAITING,
		"completed w/ one or more errors": proto.STATUS_COMPLETED_WITH_ERRORS,
		"Interrupt Pending":               proto.Status("Interrupt Pending"),
	}
	for in, expect := range tests {
		if got := proto.ParseStatus(in); got != expect {
			t.Errorf("ParseStatus(%q) = %q, expected %q", in, got, expect)
		}
	}
	if proto.Status("Interrupt Pending").Known() {
		t.Error("Interrupt Pending is known, expected unknown")
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []proto.Status{proto.STATUS_COMPLETED, proto.STATUS_KILLED, proto.STATUS_COMMITTED, proto.STATUS_FAILED} {
		if !s.Terminal() {
			t.Errorf("%s is not terminal, expected terminal", s)
		}
	}
	for _, s := range []proto.Status{proto.STATUS_RUNNING, proto.STATUS_SUSPENDED, proto.STATUS_WAITING, proto.STATUS_UNKNOWN} {
		if s.Terminal() {
			t.Errorf("%s is terminal, expected not terminal", s)
		}
	}
}
