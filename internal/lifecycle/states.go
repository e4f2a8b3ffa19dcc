package lifecycle

// State is the interface that all lifecycle states implement
type State interface {
	Name() string
	Status() ProfileState
}

// Helper to track state transitions for testing
type StateRecorder struct {
	path []string
}

func NewStateRecorder() *StateRecorder {
	return &StateRecorder{path: make([]string, 0)}
}

func (r *StateRecorder) Record(state State) {
	r.path = append(r.path, state.Name())
}

func (r *StateRecorder) Path() []string {
	return r.path
}

// stateFor returns the typed state for a persisted status
func stateFor(s ProfileState) State {
	switch s {
	case StateDiscovered:
		return &DiscoveredState{}
	case StateEnriched:
		return &EnrichedState{}
	case StatePending:
		return &PendingState{}
	case StateConnected:
		return &ConnectedState{}
	case StateCompleted:
		return &CompletedState{}
	case StateFailed:
		return &FailedState{}
	default:
		return nil
	}
}
