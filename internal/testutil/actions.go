package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/livinlefevreloca/outreach/internal/classifier"
	"github.com/livinlefevreloca/outreach/internal/lifecycle"
)

// calls counts invocations per public identifier
type calls struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *calls) add(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[id]++
}

// Calls returns how many times id was passed to the fake
func (c *calls) Calls(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[id]
}

// Total returns the number of invocations across all profiles
func (c *calls) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.counts {
		n += v
	}
	return n
}

// FakeEnricher returns a generated profile unless told otherwise
type FakeEnricher struct {
	calls
	Degree  map[string]int
	Missing map[string]bool
	Errors  map[string]error
}

func NewFakeEnricher() *FakeEnricher {
	return &FakeEnricher{
		Degree:  make(map[string]int),
		Missing: make(map[string]bool),
		Errors:  make(map[string]error),
	}
}

func (f *FakeEnricher) Enrich(ctx context.Context, target lifecycle.Target) (json.RawMessage, json.RawMessage, error) {
	f.add(target.PublicIdentifier)
	if err := f.Errors[target.PublicIdentifier]; err != nil {
		return nil, nil, err
	}
	if f.Missing[target.PublicIdentifier] {
		return nil, nil, nil
	}
	degree := 2
	if d, ok := f.Degree[target.PublicIdentifier]; ok {
		degree = d
	}
	profile := fmt.Sprintf(`{"public_identifier":%q,"full_name":"Test %s","connection_degree":%d}`,
		target.PublicIdentifier, target.PublicIdentifier, degree)
	raw := fmt.Sprintf(`{"top_card_text":"Test %s"}`, target.PublicIdentifier)
	return json.RawMessage(profile), json.RawMessage(raw), nil
}

// FakeConnector answers pending unless scripted
type FakeConnector struct {
	calls
	Results map[string]lifecycle.ConnectResult
	Errors  map[string]error
}

func NewFakeConnector() *FakeConnector {
	return &FakeConnector{
		Results: make(map[string]lifecycle.ConnectResult),
		Errors:  make(map[string]error),
	}
}

func (f *FakeConnector) RequestConnection(ctx context.Context, target lifecycle.Target) (lifecycle.ConnectResult, error) {
	f.add(target.PublicIdentifier)
	if err := f.Errors[target.PublicIdentifier]; err != nil {
		return lifecycle.ConnectPending, err
	}
	if r, ok := f.Results[target.PublicIdentifier]; ok {
		return r, nil
	}
	return lifecycle.ConnectPending, nil
}

// FakeChecker answers not connected unless scripted
type FakeChecker struct {
	calls
	Statuses map[string]classifier.Status
	Errors   map[string]error
}

func NewFakeChecker() *FakeChecker {
	return &FakeChecker{
		Statuses: make(map[string]classifier.Status),
		Errors:   make(map[string]error),
	}
}

func (f *FakeChecker) CheckStatus(ctx context.Context, target classifier.Target) (classifier.Status, error) {
	f.add(target.PublicIdentifier)
	if err := f.Errors[target.PublicIdentifier]; err != nil {
		return classifier.StatusNotConnected, err
	}
	return f.Statuses[target.PublicIdentifier], nil
}

// FakeMessenger sends unless scripted
type FakeMessenger struct {
	calls
	Outcomes map[string]lifecycle.MessageOutcome
	Errors   map[string]error
}

func NewFakeMessenger() *FakeMessenger {
	return &FakeMessenger{
		Outcomes: make(map[string]lifecycle.MessageOutcome),
		Errors:   make(map[string]error),
	}
}

func (f *FakeMessenger) SendFollowUp(ctx context.Context, target lifecycle.Target) (lifecycle.MessageOutcome, error) {
	f.add(target.PublicIdentifier)
	if err := f.Errors[target.PublicIdentifier]; err != nil {
		return lifecycle.MessageSkipped, err
	}
	if o, ok := f.Outcomes[target.PublicIdentifier]; ok {
		return o, nil
	}
	return lifecycle.MessageSent, nil
}

// Actions bundles one of each fake
type Actions struct {
	Enricher  *FakeEnricher
	Connector *FakeConnector
	Checker   *FakeChecker
	Messenger *FakeMessenger
}

func NewActions() *Actions {
	return &Actions{
		Enricher:  NewFakeEnricher(),
		Connector: NewFakeConnector(),
		Checker:   NewFakeChecker(),
		Messenger: NewFakeMessenger(),
	}
}

// Collaborators returns the fakes in the shape the state machine expects
func (a *Actions) Collaborators() lifecycle.Collaborators {
	return lifecycle.Collaborators{
		Enricher:  a.Enricher,
		Connector: a.Connector,
		Checker:   a.Checker,
		Messenger: a.Messenger,
	}
}
