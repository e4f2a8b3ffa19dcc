// Package lifecycle advances a single profile through its outreach states.
package lifecycle

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/livinlefevreloca/outreach/internal/classifier"
)

// OutcomeKind classifies the result of one Advance call
type OutcomeKind int

const (
	OutcomeAdvanced  OutcomeKind = iota // a state was written, possibly the same one
	OutcomeNoop                         // nothing to do, nothing written
	OutcomeSkip                         // abandon the profile for this cycle
	OutcomeHardLimit                    // connection requests must stop for the run
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAdvanced:
		return "advanced"
	case OutcomeNoop:
		return "noop"
	case OutcomeSkip:
		return "skip"
	case OutcomeHardLimit:
		return "hard_limit"
	default:
		return "unknown"
	}
}

// Outcome describes one step taken on a profile
type Outcome struct {
	Kind OutcomeKind
	From ProfileState
	To   ProfileState
	// Continue is true when the profile can take another step right away
	Continue bool
	// Cause is the collaborator error behind a skip or hard limit
	Cause error
}

// WorkItem is a profile reference from the worklist
type WorkItem struct {
	URL              string
	PublicIdentifier string
}

// StepOptions carry run-wide switches set by the campaign loop
type StepOptions struct {
	ConnectionsAllowed bool
}

// Collaborators are the actions the machine drives
type Collaborators struct {
	Enricher  Enricher
	Connector Connector
	Checker   StatusChecker
	Messenger Messenger
}

// Machine applies the transition table to one profile at a time.
// A Machine holds no per-profile state between calls.
type Machine struct {
	store     Store
	enricher  Enricher
	connector Connector
	checker   StatusChecker
	messenger Messenger
	logger    *slog.Logger

	// Optional state recorder for testing
	recorder *StateRecorder
}

// NewMachine creates a state machine over the given store and collaborators
func NewMachine(store Store, c Collaborators, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Machine{
		store:     store,
		enricher:  c.Enricher,
		connector: c.Connector,
		checker:   c.Checker,
		messenger: c.Messenger,
		logger:    logger.With("component", "lifecycle"),
	}
}

// Advance performs one step for the profile. A profile the store does not
// know is treated as discovered. Store failures and unknown stored states
// are returned as errors; collaborator failures become outcomes.
func (m *Machine) Advance(ctx context.Context, item WorkItem, opts StepOptions) (Outcome, error) {
	rec, err := m.store.ReadProfile(ctx, item.PublicIdentifier)
	if err != nil {
		return Outcome{}, errors.Wrapf(err, "read profile %s", item.PublicIdentifier)
	}

	target := Target{PublicIdentifier: item.PublicIdentifier, URL: item.URL}
	current := StateDiscovered
	if rec != nil {
		current = rec.State
		target.Profile = rec.Profile
	}

	state := stateFor(current)
	if state == nil {
		return Outcome{}, errors.Wrapf(ErrUnknownState, "profile %s has state %d", item.PublicIdentifier, int(current))
	}

	switch s := state.(type) {
	case *CompletedState, *FailedState:
		return noop(s), nil
	case *DiscoveredState:
		return m.runDiscovered(ctx, s, target)
	case *EnrichedState:
		return m.runEnriched(ctx, s, target, opts)
	case *PendingState:
		return m.runPending(ctx, s, target)
	case *ConnectedState:
		return m.runConnected(ctx, s, target)
	default:
		return Outcome{}, errors.Newf("unhandled state type %T", s)
	}
}

// runDiscovered enriches the profile
func (m *Machine) runDiscovered(ctx context.Context, state *DiscoveredState, target Target) (Outcome, error) {
	profile, raw, err := m.enricher.Enrich(ctx, target)
	if err != nil {
		if isExceptional(err) {
			return m.exceptional(state, target, err), nil
		}
		m.logger.Warn("enrichment failed",
			"public_identifier", target.PublicIdentifier,
			"error", err)
		return m.transitionTo(ctx, target, state, state.ToFailed(), false)
	}
	if len(profile) == 0 {
		m.logger.Warn("enrichment returned no profile",
			"public_identifier", target.PublicIdentifier)
		return m.transitionTo(ctx, target, state, state.ToFailed(), false)
	}

	if err := m.store.PersistEnriched(ctx, target.PublicIdentifier, profile, raw); err != nil {
		return Outcome{}, errors.Wrapf(err, "persist enriched profile %s", target.PublicIdentifier)
	}
	next := state.ToEnriched()
	m.record(state, next, target)
	return Outcome{Kind: OutcomeAdvanced, From: state.Status(), To: next.Status(), Continue: true}, nil
}

// runEnriched sends the connection request when the run allows it
func (m *Machine) runEnriched(ctx context.Context, state *EnrichedState, target Target, opts StepOptions) (Outcome, error) {
	if !opts.ConnectionsAllowed || m.connector == nil {
		m.logger.Debug("connection requests disabled, leaving profile enriched",
			"public_identifier", target.PublicIdentifier)
		return noop(state), nil
	}

	result, err := m.connector.RequestConnection(ctx, target)
	if err != nil {
		return m.exceptional(state, target, err), nil
	}

	switch result {
	case ConnectConnected:
		return m.transitionTo(ctx, target, state, state.ToConnected(), true)
	default:
		return m.transitionTo(ctx, target, state, state.ToPending(), false)
	}
}

// runPending checks whether the invitation was accepted
func (m *Machine) runPending(ctx context.Context, state *PendingState, target Target) (Outcome, error) {
	status, err := m.checker.CheckStatus(ctx, target.ClassifierTarget())
	if err != nil {
		return m.exceptional(state, target, err), nil
	}

	if status == classifier.StatusConnected {
		return m.transitionTo(ctx, target, state, state.ToConnected(), true)
	}
	// still pending or ambiguous; touch the record so it rotates to the
	// back of the worklist
	return m.transitionTo(ctx, target, state, state.ToPending(), false)
}

// runConnected sends the follow-up message
func (m *Machine) runConnected(ctx context.Context, state *ConnectedState, target Target) (Outcome, error) {
	outcome, err := m.messenger.SendFollowUp(ctx, target)
	if err != nil {
		return m.exceptional(state, target, err), nil
	}

	if outcome == MessageSent {
		return m.transitionTo(ctx, target, state, state.ToCompleted(), false)
	}
	return m.transitionTo(ctx, target, state, state.ToConnected(), false)
}

// transitionTo persists the new state and logs it
func (m *Machine) transitionTo(ctx context.Context, target Target, from, to State, cont bool) (Outcome, error) {
	if err := m.store.PersistState(ctx, target.PublicIdentifier, to.Status()); err != nil {
		return Outcome{}, errors.Wrapf(err, "persist %s state for %s", to.Name(), target.PublicIdentifier)
	}
	m.record(from, to, target)
	return Outcome{Kind: OutcomeAdvanced, From: from.Status(), To: to.Status(), Continue: cont}, nil
}

func (m *Machine) record(from, to State, target Target) {
	if m.recorder != nil {
		m.recorder.Record(to)
	}
	m.logger.Info("state transition",
		"from", from.Name(),
		"to", to.Name(),
		"public_identifier", target.PublicIdentifier)
}

func (m *Machine) exceptional(state State, target Target, err error) Outcome {
	kind := OutcomeSkip
	if errors.Is(err, ErrHardLimit) {
		kind = OutcomeHardLimit
	}
	m.logger.Info("profile step interrupted",
		"public_identifier", target.PublicIdentifier,
		"state", state.Name(),
		"outcome", kind.String(),
		"error", err)
	return Outcome{Kind: kind, From: state.Status(), To: state.Status(), Cause: err}
}

func noop(state State) Outcome {
	return Outcome{Kind: OutcomeNoop, From: state.Status(), To: state.Status()}
}

func isExceptional(err error) bool {
	return errors.Is(err, ErrSkipProfile) || errors.Is(err, ErrHardLimit)
}
