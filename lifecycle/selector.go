// Copyright 2020, Square, Inc.

package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/square/jobctl/client"
	serr "github.com/square/jobctl/errors"
	"github.com/square/jobctl/proto"
	"github.com/square/jobctl/retry"
)

type criterionKind byte

const (
	selectIds criterionKind = iota
	selectAll
	selectClient
	selectAgent
	selectJobType
)

// A Criterion selects a batch of handles. Make one with Selected, All, ByClient,
// ByAgent, or ByJobType. The zero value is Selected with no ids and selects nothing.
type Criterion struct {
	kind    criterionKind
	ids     []string
	client  string
	agent   string
	jobType string
}

// Selected selects the handles with the given ids. Ids not in the universe are
// dropped and reported as missing.
func Selected(ids ...string) Criterion {
	return Criterion{kind: selectIds, ids: ids}
}

// All selects every handle.
func All() Criterion {
	return Criterion{kind: selectAll}
}

// ByClient selects every handle owned by the client, on any agent.
func ByClient(client string) Criterion {
	return Criterion{kind: selectClient, client: client}
}

// ByAgent selects every handle owned by the agent on the client.
func ByAgent(client, agent string) Criterion {
	return Criterion{kind: selectAgent, client: client, agent: agent}
}

// ByJobType selects every handle of the kind (case-insensitive).
func ByJobType(kind string) Criterion {
	return Criterion{kind: selectJobType, jobType: kind}
}

// Match returns true if the criterion selects the handle.
func (c Criterion) Match(h *Handle) bool {
	switch c.kind {
	case selectAll:
		return true
	case selectClient:
		return h.owner.Client == c.client
	case selectAgent:
		return h.owner.Client == c.client && h.owner.Agent == c.agent
	case selectJobType:
		return strings.EqualFold(h.kind, c.jobType)
	default:
		for _, id := range c.ids {
			if id == h.id {
				return true
			}
		}
		return false
	}
}

// Filter returns the list filter that narrows the remote universe for the
// criterion. Selected and All list all jobs.
func (c Criterion) Filter() proto.ListFilter {
	switch c.kind {
	case selectClient:
		return proto.ListFilter{Client: c.client}
	case selectAgent:
		return proto.ListFilter{Client: c.client, Agent: c.agent}
	case selectJobType:
		return proto.ListFilter{Kind: c.jobType}
	}
	return proto.ListFilter{}
}

func (c Criterion) String() string {
	switch c.kind {
	case selectAll:
		return "all"
	case selectClient:
		return "client=" + c.client
	case selectAgent:
		return fmt.Sprintf("client=%s agent=%s", c.client, c.agent)
	case selectJobType:
		return "type=" + c.jobType
	default:
		return "ids=" + strings.Join(c.ids, ",")
	}
}

// Selection is a resolved Criterion.
type Selection struct {
	Handles []*Handle
	Missing []string // Selected ids not in the universe
}

// Ids returns the ids of the selected handles.
func (s Selection) Ids() []string {
	return Ids(s.Handles)
}

// Mismatch returns a errors.SelectionMismatch if any selected ids are missing,
// else nil.
func (s Selection) Mismatch() error {
	if len(s.Missing) == 0 {
		return nil
	}
	return serr.SelectionMismatch{JobIds: s.Missing}
}

// Resolve selects handles from the universe. Selected returns handles in the
// order of the ids, once each; the other criteria return handles in universe
// order. No match is an empty selection, not an error.
func Resolve(c Criterion, universe []*Handle) Selection {
	sel := Selection{
		Handles: []*Handle{},
		Missing: []string{},
	}
	if c.kind != selectIds {
		for _, h := range universe {
			if c.Match(h) {
				sel.Handles = append(sel.Handles, h)
			}
		}
		return sel
	}

	byId := make(map[string]*Handle, len(universe))
	for _, h := range universe {
		if _, ok := byId[h.id]; !ok {
			byId[h.id] = h
		}
	}
	seen := map[string]bool{}
	for _, id := range c.ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if h, ok := byId[id]; ok {
			sel.Handles = append(sel.Handles, h)
		} else {
			sel.Missing = append(sel.Missing, id)
		}
	}
	return sel
}

// --------------------------------------------------------------------------

type SelectorConfig struct {
	Client    client.Client
	RetryWait time.Duration // between List retries on transient errors, default 1s
	Logger    *log.Entry
}

// A Selector resolves criteria against the jobs the remote system knows.
type Selector struct {
	client    client.Client
	retryWait time.Duration
	logger    *log.Entry
}

func NewSelector(cfg SelectorConfig) *Selector {
	s := &Selector{
		client:    cfg.Client,
		retryWait: cfg.RetryWait,
		logger:    cfg.Logger,
	}
	if s.retryWait <= 0 {
		s.retryWait = time.Second
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "selector")
	}
	return s
}

// Select lists the jobs matching the criterion and resolves it. Transient list
// errors are retried until ctx is done. Missing ids are logged as a warning and
// are in the Selection, not returned as an error.
func (s *Selector) Select(ctx context.Context, c Criterion) (Selection, error) {
	var jobs []proto.Job
	tryList := func() error {
		var err error
		jobs, err = s.client.List(ctx, c.Filter())
		return err
	}
	logRetry := func(err error) {
		s.logger.Warnf("listing jobs for %s: %s (retrying)", c, err)
	}
	if err := retry.Do(ctx, s.retryWait, serr.IsTransient, tryList, logRetry); err != nil {
		return Selection{}, fmt.Errorf("listing jobs for %s: %w", c, err)
	}

	sel := Resolve(c, NewHandles(jobs))
	if err := sel.Mismatch(); err != nil {
		s.logger.Warn(err)
	}
	s.logger.Debugf("%s selected %d jobs", c, len(sel.Handles))
	return sel, nil
}
