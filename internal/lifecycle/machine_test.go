package lifecycle_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/livinlefevreloca/outreach/internal/classifier"
	"github.com/livinlefevreloca/outreach/internal/lifecycle"
	"github.com/livinlefevreloca/outreach/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allowed = lifecycle.StepOptions{ConnectionsAllowed: true}

func newMachine(t *testing.T) (*lifecycle.Machine, *testutil.MemoryStore, *testutil.Actions) {
	t.Helper()
	store := testutil.NewMemoryStore()
	actions := testutil.NewActions()
	return lifecycle.NewMachine(store, actions.Collaborators(), nil), store, actions
}

func item(id string) lifecycle.WorkItem {
	return lifecycle.WorkItem{
		URL:              "https://www.linkedin.com/in/" + id + "/",
		PublicIdentifier: id,
	}
}

// ==============================================================================
// Terminal states
// ==============================================================================

func TestAdvance_TerminalStatesAreNoops(t *testing.T) {
	for _, state := range []lifecycle.ProfileState{lifecycle.StateCompleted, lifecycle.StateFailed} {
		t.Run(state.String(), func(t *testing.T) {
			m, store, actions := newMachine(t)
			store.Seed("jane", state, nil)

			out, err := m.Advance(context.Background(), item("jane"), allowed)
			require.NoError(t, err)

			assert.Equal(t, lifecycle.OutcomeNoop, out.Kind)
			assert.Equal(t, state, out.To)
			assert.False(t, out.Continue)
			assert.Empty(t, store.Writes())
			assert.Zero(t, actions.Enricher.Total()+actions.Connector.Total()+
				actions.Checker.Total()+actions.Messenger.Total())
		})
	}
}

// ==============================================================================
// DISCOVERED
// ==============================================================================

func TestAdvance_DiscoveredEnriched(t *testing.T) {
	m, store, _ := newMachine(t)

	// unknown profile counts as discovered
	out, err := m.Advance(context.Background(), item("jane"), allowed)
	require.NoError(t, err)

	assert.Equal(t, lifecycle.OutcomeAdvanced, out.Kind)
	assert.Equal(t, lifecycle.StateDiscovered, out.From)
	assert.Equal(t, lifecycle.StateEnriched, out.To)
	assert.True(t, out.Continue)

	rec := store.Record("jane")
	require.NotNil(t, rec)
	assert.Equal(t, lifecycle.StateEnriched, rec.State)
	assert.NotEmpty(t, rec.Profile)
	assert.NotEmpty(t, rec.Raw)
	assert.Equal(t, []testutil.Write{{PublicIdentifier: "jane", State: lifecycle.StateEnriched, WithPayload: true}}, store.Writes())
}

func TestAdvance_DiscoveredNilPayloadFails(t *testing.T) {
	m, store, actions := newMachine(t)
	store.Seed("jane", lifecycle.StateDiscovered, nil)
	actions.Enricher.Missing["jane"] = true

	out, err := m.Advance(context.Background(), item("jane"), allowed)
	require.NoError(t, err)

	assert.Equal(t, lifecycle.StateFailed, out.To)
	assert.False(t, out.Continue)
	rec := store.Record("jane")
	assert.Equal(t, lifecycle.StateFailed, rec.State)
	assert.Nil(t, rec.Profile, "no payload persisted on failure")
	assert.Equal(t, []testutil.Write{{PublicIdentifier: "jane", State: lifecycle.StateFailed}}, store.Writes())
}

func TestAdvance_DiscoveredEnrichErrorFails(t *testing.T) {
	m, store, actions := newMachine(t)
	actions.Enricher.Errors["jane"] = errors.New("profile unavailable")

	out, err := m.Advance(context.Background(), item("jane"), allowed)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StateFailed, out.To)

	state, ok := store.State("jane")
	require.True(t, ok)
	assert.Equal(t, lifecycle.StateFailed, state)
}

func TestAdvance_DiscoveredSkipLeavesState(t *testing.T) {
	m, store, actions := newMachine(t)
	store.Seed("jane", lifecycle.StateDiscovered, nil)
	actions.Enricher.Errors["jane"] = errors.Wrap(lifecycle.ErrSkipProfile, "top card missing")

	out, err := m.Advance(context.Background(), item("jane"), allowed)
	require.NoError(t, err)

	assert.Equal(t, lifecycle.OutcomeSkip, out.Kind)
	assert.ErrorIs(t, out.Cause, lifecycle.ErrSkipProfile)
	assert.Empty(t, store.Writes())
}

// ==============================================================================
// ENRICHED
// ==============================================================================

func TestAdvance_EnrichedRequestsConnection(t *testing.T) {
	tests := []struct {
		name   string
		result lifecycle.ConnectResult
		want   lifecycle.ProfileState
		cont   bool
	}{
		{"invitation pending", lifecycle.ConnectPending, lifecycle.StatePending, false},
		{"already connected", lifecycle.ConnectConnected, lifecycle.StateConnected, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store, actions := newMachine(t)
			store.Seed("jane", lifecycle.StateEnriched, json.RawMessage(`{"full_name":"Jane"}`))
			actions.Connector.Results["jane"] = tt.result

			out, err := m.Advance(context.Background(), item("jane"), allowed)
			require.NoError(t, err)

			assert.Equal(t, lifecycle.OutcomeAdvanced, out.Kind)
			assert.Equal(t, tt.want, out.To)
			assert.Equal(t, tt.cont, out.Continue)

			state, _ := store.State("jane")
			assert.Equal(t, tt.want, state)
			assert.JSONEq(t, `{"full_name":"Jane"}`, string(store.Record("jane").Profile), "payload untouched")
		})
	}
}

func TestAdvance_EnrichedConnectionsDisallowed(t *testing.T) {
	m, store, actions := newMachine(t)
	store.Seed("jane", lifecycle.StateEnriched, nil)

	out, err := m.Advance(context.Background(), item("jane"), lifecycle.StepOptions{ConnectionsAllowed: false})
	require.NoError(t, err)

	assert.Equal(t, lifecycle.OutcomeNoop, out.Kind)
	assert.Equal(t, lifecycle.StateEnriched, out.To)
	assert.False(t, out.Continue)
	assert.Zero(t, actions.Connector.Calls("jane"))
	assert.Empty(t, store.Writes())
}

func TestAdvance_EnrichedHardLimit(t *testing.T) {
	m, store, actions := newMachine(t)
	store.Seed("jane", lifecycle.StateEnriched, nil)
	actions.Connector.Errors["jane"] = errors.Wrap(lifecycle.ErrHardLimit, "weekly invitation limit")

	out, err := m.Advance(context.Background(), item("jane"), allowed)
	require.NoError(t, err)

	assert.Equal(t, lifecycle.OutcomeHardLimit, out.Kind)
	assert.Equal(t, lifecycle.StateEnriched, out.To)
	assert.Empty(t, store.Writes())
}

func TestAdvance_EnrichedConnectFailureSkips(t *testing.T) {
	m, store, actions := newMachine(t)
	store.Seed("jane", lifecycle.StateEnriched, nil)
	actions.Connector.Errors["jane"] = errors.New("invite button not clickable")

	out, err := m.Advance(context.Background(), item("jane"), allowed)
	require.NoError(t, err)

	assert.Equal(t, lifecycle.OutcomeSkip, out.Kind)
	assert.Empty(t, store.Writes())
}

// ==============================================================================
// PENDING
// ==============================================================================

func TestAdvance_PendingClassification(t *testing.T) {
	tests := []struct {
		status classifier.Status
		want   lifecycle.ProfileState
		cont   bool
	}{
		{classifier.StatusConnected, lifecycle.StateConnected, true},
		{classifier.StatusPending, lifecycle.StatePending, false},
		{classifier.StatusNotConnected, lifecycle.StatePending, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			m, store, actions := newMachine(t)
			store.Seed("jane", lifecycle.StatePending, nil)
			before := store.Record("jane").UpdatedAt
			actions.Checker.Statuses["jane"] = tt.status

			out, err := m.Advance(context.Background(), item("jane"), allowed)
			require.NoError(t, err)

			assert.Equal(t, tt.want, out.To)
			assert.Equal(t, tt.cont, out.Continue)
			rec := store.Record("jane")
			assert.Equal(t, tt.want, rec.State)
			assert.True(t, rec.UpdatedAt.After(before), "record is touched")
		})
	}
}

func TestAdvance_PendingPassesDegreeHint(t *testing.T) {
	m, store, actions := newMachine(t)
	store.Seed("jane", lifecycle.StatePending, json.RawMessage(`{"connection_degree":2}`))
	actions.Checker.Statuses["jane"] = classifier.StatusPending

	_, err := m.Advance(context.Background(), item("jane"), allowed)
	require.NoError(t, err)
	assert.Equal(t, 1, actions.Checker.Calls("jane"))
}

func TestAdvance_PendingMissingTopCardSkips(t *testing.T) {
	m, store, actions := newMachine(t)
	store.Seed("jane", lifecycle.StatePending, nil)
	actions.Checker.Errors["jane"] = errors.Wrap(lifecycle.ErrSkipProfile, "no top card")

	out, err := m.Advance(context.Background(), item("jane"), allowed)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OutcomeSkip, out.Kind)
	assert.Empty(t, store.Writes())
}

// ==============================================================================
// CONNECTED
// ==============================================================================

func TestAdvance_ConnectedMessaging(t *testing.T) {
	tests := []struct {
		outcome lifecycle.MessageOutcome
		want    lifecycle.ProfileState
	}{
		{lifecycle.MessageSent, lifecycle.StateCompleted},
		{lifecycle.MessageSkipped, lifecycle.StateConnected},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			m, store, actions := newMachine(t)
			store.Seed("jane", lifecycle.StateConnected, nil)
			actions.Messenger.Outcomes["jane"] = tt.outcome

			out, err := m.Advance(context.Background(), item("jane"), allowed)
			require.NoError(t, err)

			assert.Equal(t, lifecycle.OutcomeAdvanced, out.Kind)
			assert.Equal(t, tt.want, out.To)
			assert.False(t, out.Continue)
			state, _ := store.State("jane")
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestAdvance_ConnectedMessengerErrorSkips(t *testing.T) {
	m, store, actions := newMachine(t)
	store.Seed("jane", lifecycle.StateConnected, nil)
	actions.Messenger.Errors["jane"] = errors.New("message box did not open")

	out, err := m.Advance(context.Background(), item("jane"), allowed)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.OutcomeSkip, out.Kind)
	assert.Empty(t, store.Writes())
}

// ==============================================================================
// Store failures
// ==============================================================================

func TestAdvance_ReadErrorReturned(t *testing.T) {
	m, store, actions := newMachine(t)
	store.SetReadError(errors.New("database is locked"))

	_, err := m.Advance(context.Background(), item("jane"), allowed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read profile jane")
	assert.Zero(t, actions.Enricher.Total())
}

func TestAdvance_WriteErrorReturned(t *testing.T) {
	m, store, _ := newMachine(t)
	store.Seed("jane", lifecycle.StateConnected, nil)
	store.SetWriteError(errors.New("disk full"))

	_, err := m.Advance(context.Background(), item("jane"), allowed)
	require.Error(t, err)

	state, _ := store.State("jane")
	assert.Equal(t, lifecycle.StateConnected, state, "no partial transition")
}

func TestAdvance_UnknownStateReturned(t *testing.T) {
	m, store, _ := newMachine(t)
	store.Seed("jane", lifecycle.ProfileState(99), nil)

	_, err := m.Advance(context.Background(), item("jane"), allowed)
	assert.ErrorIs(t, err, lifecycle.ErrUnknownState)
}

// ==============================================================================
// Logging
// ==============================================================================

func TestAdvance_LogsTransitions(t *testing.T) {
	logs := testutil.NewTestLogger()
	store := testutil.NewMemoryStore()
	m := lifecycle.NewMachine(store, testutil.NewActions().Collaborators(), logs.Logger())

	_, err := m.Advance(context.Background(), item("jane"), allowed)
	require.NoError(t, err)

	entries := logs.Find("state transition")
	require.Len(t, entries, 1)
	assert.Equal(t, "discovered", entries[0].Fields["from"])
	assert.Equal(t, "enriched", entries[0].Fields["to"])
	assert.Equal(t, "jane", entries[0].Fields["public_identifier"])
	assert.Equal(t, "lifecycle", entries[0].Fields["component"])
}
