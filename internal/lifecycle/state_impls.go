package lifecycle

// DiscoveredState - URL known, waiting for enrichment
type DiscoveredState struct{}

func (s *DiscoveredState) Name() string         { return StateDiscovered.String() }
func (s *DiscoveredState) Status() ProfileState { return StateDiscovered }
func (s *DiscoveredState) ToEnriched() *EnrichedState {
	return &EnrichedState{}
}
func (s *DiscoveredState) ToFailed() *FailedState {
	return &FailedState{}
}

// EnrichedState - payload stored, no invitation yet
type EnrichedState struct{}

func (s *EnrichedState) Name() string         { return StateEnriched.String() }
func (s *EnrichedState) Status() ProfileState { return StateEnriched }
func (s *EnrichedState) ToPending() *PendingState {
	return &PendingState{}
}
func (s *EnrichedState) ToConnected() *ConnectedState {
	return &ConnectedState{}
}

// PendingState - invitation sent, waiting for acceptance
type PendingState struct{}

func (s *PendingState) Name() string         { return StatePending.String() }
func (s *PendingState) Status() ProfileState { return StatePending }
func (s *PendingState) ToConnected() *ConnectedState {
	return &ConnectedState{}
}

// ToPending keeps the profile pending; a not-connected verdict never
// regresses an invitation already sent
func (s *PendingState) ToPending() *PendingState {
	return &PendingState{}
}

// ConnectedState - first degree, follow-up not yet delivered
type ConnectedState struct{}

func (s *ConnectedState) Name() string         { return StateConnected.String() }
func (s *ConnectedState) Status() ProfileState { return StateConnected }
func (s *ConnectedState) ToCompleted() *CompletedState {
	return &CompletedState{}
}
func (s *ConnectedState) ToConnected() *ConnectedState {
	return &ConnectedState{}
}

// CompletedState - terminal
type CompletedState struct{}

func (s *CompletedState) Name() string         { return StateCompleted.String() }
func (s *CompletedState) Status() ProfileState { return StateCompleted }

// FailedState - terminal
type FailedState struct{}

func (s *FailedState) Name() string         { return StateFailed.String() }
func (s *FailedState) Status() ProfileState { return StateFailed }
