// Copyright 2020, Square, Inc.

package lifecycle_test

import (
	"testing"

	"github.com/go-test/deep"

	"github.com/square/jobctl/lifecycle"
	"github.com/square/jobctl/proto"
)

func TestNewHandle(t *testing.T) {
	h := lifecycle.NewHandle(proto.Job{
		Id:              "j1",
		Kind:            "backup",
		Client:          "clientA",
		Agent:           "sql",
		Status:          "running",
		Phase:           "Scan",
		PercentComplete: 20,
	})
	if h.Id() != "j1" || h.Kind() != "backup" {
		t.Errorf("got %s %s, expected j1 backup", h.Id(), h.Kind())
	}
	if diff := deep.Equal(h.Owner(), lifecycle.Owner{Client: "clientA", Agent: "sql"}); diff != nil {
		t.Error(diff)
	}
	if h.Status() != proto.STATUS_RUNNING {
		t.Errorf("status %s, expected canonical Running", h.Status())
	}
	if h.Phase() != "Scan" || h.Progress() != 20 {
		t.Errorf("got %q %d, expected Scan 20", h.Phase(), h.Progress())
	}
	if h.LastPolledAt().IsZero() {
		t.Error("LastPolledAt not set for job with status")
	}
	if h.Owner().String() != "clientA/sql" {
		t.Errorf("owner %s, expected clientA/sql", h.Owner())
	}

	h = lifecycle.NewHandle(proto.Job{Id: "j2", Client: "clientB"})
	if h.Status() != proto.STATUS_UNKNOWN || !h.LastPolledAt().IsZero() {
		t.Errorf("got %s at %s, expected no observation", h.Status(), h.LastPolledAt())
	}
}

func TestIds(t *testing.T) {
	handles := lifecycle.NewHandles([]proto.Job{{Id: "b"}, {Id: "a"}})
	if diff := deep.Equal(lifecycle.Ids(handles), []string{"b", "a"}); diff != nil {
		t.Error(diff)
	}
}
