package lifecycle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/livinlefevreloca/outreach/internal/classifier"
)

// ProfileState is the persisted lifecycle state of a profile
type ProfileState int

const (
	StateDiscovered ProfileState = iota // URL known, nothing fetched yet
	StateEnriched                       // profile payload stored
	StatePending                        // invitation sent, not yet accepted
	StateConnected                      // first degree, follow-up not sent

	// Terminal states
	StateCompleted // follow-up sent
	StateFailed    // enrichment failed
)

// String returns the persisted representation of the state
func (s ProfileState) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateEnriched:
		return "enriched"
	case StatePending:
		return "pending"
	case StateConnected:
		return "connected"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition can leave the state
func (s ProfileState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// ParseState converts a persisted state string back to a ProfileState
func ParseState(s string) (ProfileState, error) {
	for st := StateDiscovered; st <= StateFailed; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownState, "%q", s)
}

// MessageOutcome is the result of a follow-up attempt
type MessageOutcome int

const (
	MessageSkipped MessageOutcome = iota
	MessageSent
)

func (m MessageOutcome) String() string {
	if m == MessageSent {
		return "sent"
	}
	return "skipped"
}

// ConnectResult is the status reached by a connection request
type ConnectResult int

const (
	ConnectPending ConnectResult = iota
	ConnectConnected
)

func (r ConnectResult) String() string {
	if r == ConnectConnected {
		return "connected"
	}
	return "pending"
}

// Sentinel errors collaborators use to signal exceptional outcomes
var (
	// ErrSkipProfile means a required page region is missing; the profile
	// is abandoned for this cycle without a state change
	ErrSkipProfile = errors.New("skip profile")

	// ErrHardLimit means the platform refused further connection requests
	ErrHardLimit = errors.New("connection request limit reached")

	// ErrUnknownState means a stored state string is not a ProfileState
	ErrUnknownState = errors.New("unknown profile state")
)

// Target is the profile handed to action collaborators
type Target struct {
	PublicIdentifier string
	URL              string
	// Profile is the enrichment payload, nil before enrichment
	Profile json.RawMessage
}

// DegreeHint reads the connection degree recorded at enrichment time.
// Returns nil when the payload has none.
func (t Target) DegreeHint() *int {
	if len(t.Profile) == 0 {
		return nil
	}
	var p struct {
		ConnectionDegree *int `json:"connection_degree"`
	}
	if err := json.Unmarshal(t.Profile, &p); err != nil {
		return nil
	}
	return p.ConnectionDegree
}

// ClassifierTarget converts the target for status checks
func (t Target) ClassifierTarget() classifier.Target {
	return classifier.Target{
		PublicIdentifier: t.PublicIdentifier,
		URL:              t.URL,
		DegreeHint:       t.DegreeHint(),
	}
}

// Record is a profile as read from the store
type Record struct {
	PublicIdentifier string
	State            ProfileState
	Profile          json.RawMessage
	Raw              json.RawMessage
	CloudSynced      bool
	UpdatedAt        time.Time
}

// Enricher fetches a profile. A nil profile payload with a nil error is a
// definite failure.
type Enricher interface {
	Enrich(ctx context.Context, target Target) (profile, raw json.RawMessage, err error)
}

// Connector sends a connection request
type Connector interface {
	RequestConnection(ctx context.Context, target Target) (ConnectResult, error)
}

// StatusChecker resolves the current connection status of a profile
type StatusChecker interface {
	CheckStatus(ctx context.Context, target classifier.Target) (classifier.Status, error)
}

// Messenger sends the follow-up message
type Messenger interface {
	SendFollowUp(ctx context.Context, target Target) (MessageOutcome, error)
}

// Store reads and writes profile records. ReadProfile returns nil and no
// error for an unknown profile.
type Store interface {
	ReadProfile(ctx context.Context, publicID string) (*Record, error)
	PersistState(ctx context.Context, publicID string, state ProfileState) error
	PersistEnriched(ctx context.Context, publicID string, profile, raw json.RawMessage) error
}
