// Copyright 2020, Square, Inc.

package lifecycle_test

import (
	"errors"
	"testing"
	"time"

	"github.com/go-test/deep"

	"github.com/square/jobctl/lifecycle"
	"github.com/square/jobctl/proto"
)

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		timeout  time.Duration
		interval time.Duration
		valid    bool
	}{
		{60 * time.Second, 5 * time.Second, true},
		{5 * time.Second, 5 * time.Second, true},
		{4 * time.Second, 5 * time.Second, false},
		{60 * time.Second, 0, false},
		{60 * time.Second, -time.Second, false},
		{0, 0, false},
	}
	for _, tt := range tests {
		err := lifecycle.NewWaitPolicy(tt.timeout, tt.interval).Validate()
		if tt.valid && err != nil {
			t.Errorf("%s/%s: got err %s, expected valid", tt.timeout, tt.interval, err)
		}
		if !tt.valid && err != lifecycle.ErrInvalidPolicy {
			t.Errorf("%s/%s: got err %v, expected ErrInvalidPolicy", tt.timeout, tt.interval, err)
		}
	}
}

func TestPolicyFromSeconds(t *testing.T) {
	p := lifecycle.PolicyFromSeconds(60, 5)
	if p.Timeout != time.Minute || p.PollInterval != 5*time.Second {
		t.Errorf("got %s", p)
	}
}

func TestPolicyAccepts(t *testing.T) {
	p := lifecycle.NewWaitPolicy(time.Minute, time.Second, proto.STATUS_SUSPENDED, "completed")
	for _, s := range []proto.Status{"Suspended", "SUSPENDED", "Completed", "completed"} {
		if !p.Accepts(s) {
			t.Errorf("%s not accepted", s)
		}
	}
	for _, s := range []proto.Status{proto.STATUS_RUNNING, proto.STATUS_UNKNOWN, "Suspending"} {
		if p.Accepts(s) {
			t.Errorf("%s accepted", s)
		}
	}
}

func TestPolicyForAction(t *testing.T) {
	p, err := lifecycle.PolicyFromSeconds(60, 5).ForAction(proto.ACTION_SUSPEND)
	if err != nil {
		t.Fatal(err)
	}
	expect := []proto.Status{proto.STATUS_SUSPENDED, proto.STATUS_COMMITTED, proto.STATUS_COMPLETED}
	if diff := deep.Equal(p.Expected, expect); diff != nil {
		t.Error(diff)
	}
	if _, err := p.ForAction("pause"); !errors.Is(err, lifecycle.ErrInvalidAction) {
		t.Errorf("got err %v, expected ErrInvalidAction", err)
	}
}
