// Copyright 2020, Square, Inc.

package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/square/jobctl/proto"
)

var (
	ErrInvalidPolicy = errors.New("invalid wait policy: poll interval must be > 0 and timeout must be >= poll interval")
	ErrInvalidAction = errors.New("invalid action")
)

// AcceptedStates are the statuses that count as success for each control action.
// The remote system can complete or commit a job at any time, so those are
// accepted for every action where they make sense.
var AcceptedStates = map[string][]proto.Status{
	proto.ACTION_RESUME:  {proto.STATUS_RUNNING, proto.STATUS_COMPLETED},
	proto.ACTION_SUSPEND: {proto.STATUS_SUSPENDED, proto.STATUS_COMMITTED, proto.STATUS_COMPLETED},
	proto.ACTION_KILL:    {proto.STATUS_KILLED, proto.STATUS_COMMITTED, proto.STATUS_COMPLETED},
}

// WaitPolicy bounds a polling wait.
type WaitPolicy struct {
	Timeout      time.Duration  // max time to wait, from the start of the call
	PollInterval time.Duration  // sleep between full sweeps of all handles
	Expected     []proto.Status // statuses that end the wait for a handle

	// FailFast stops waiting for a handle as soon as it reaches a terminal status
	// that is not Expected. Such a handle can never converge, but by default the
	// wait still runs until Timeout.
	FailFast bool
}

// NewWaitPolicy returns a policy that waits for any of the expected statuses.
func NewWaitPolicy(timeout, pollInterval time.Duration, expected ...proto.Status) WaitPolicy {
	return WaitPolicy{
		Timeout:      timeout,
		PollInterval: pollInterval,
		Expected:     expected,
	}
}

// PolicyFromSeconds returns a policy with no expected statuses, for callers that
// configure waits in seconds. Expected statuses are set by the Controller per
// action, or by the caller with WithExpected.
func PolicyFromSeconds(timeoutSec, pollIntervalSec uint) WaitPolicy {
	return WaitPolicy{
		Timeout:      time.Duration(timeoutSec) * time.Second,
		PollInterval: time.Duration(pollIntervalSec) * time.Second,
	}
}

// Validate returns ErrInvalidPolicy unless PollInterval > 0 and Timeout >= PollInterval.
func (p WaitPolicy) Validate() error {
	if p.PollInterval <= 0 || p.Timeout < p.PollInterval {
		return ErrInvalidPolicy
	}
	return nil
}

// Accepts returns true if s is one of the expected statuses.
func (p WaitPolicy) Accepts(s proto.Status) bool {
	s = proto.ParseStatus(string(s))
	for _, e := range p.Expected {
		if proto.ParseStatus(string(e)) == s {
			return true
		}
	}
	return false
}

// WithExpected returns a copy of the policy that expects the given statuses.
func (p WaitPolicy) WithExpected(expected ...proto.Status) WaitPolicy {
	p.Expected = expected
	return p
}

// ForAction returns a copy of the policy that expects the accepted states of
// the action. It returns ErrInvalidAction if the action is unknown.
func (p WaitPolicy) ForAction(action string) (WaitPolicy, error) {
	states, ok := AcceptedStates[action]
	if !ok {
		return p, fmt.Errorf("%w: %s", ErrInvalidAction, action)
	}
	return p.WithExpected(states...), nil
}

func (p WaitPolicy) String() string {
	expected := make([]string, len(p.Expected))
	for i, e := range p.Expected {
		expected[i] = string(e)
	}
	return fmt.Sprintf("timeout=%s interval=%s expected=[%s]", p.Timeout, p.PollInterval, strings.Join(expected, ", "))
}
