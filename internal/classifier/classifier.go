// Package classifier turns the unreliable signals a profile page exposes
// into a single connection status.
package classifier

import "strings"

// Status is the relationship between the campaign account and a profile
type Status int

const (
	StatusNotConnected Status = iota // also the ambiguous default
	StatusPending
	StatusConnected
)

// String returns a human-readable representation of the status
func (s Status) String() string {
	switch s {
	case StatusNotConnected:
		return "not_connected"
	case StatusPending:
		return "pending"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Reason names the rule that produced a verdict
type Reason string

const (
	ReasonDegreeHint        Reason = "degree_hint_first"
	ReasonPendingElement    Reason = "pending_element"
	ReasonPendingText       Reason = "pending_text"
	ReasonFirstDegreeText   Reason = "first_degree_text"
	ReasonInviteElement     Reason = "invite_element"
	ReasonInviteText        Reason = "invite_text"
	ReasonDegreeHintPresent Reason = "degree_hint_present"
	ReasonAmbiguous         Reason = "ambiguous_default"
)

// Verdict is the result of classifying a profile
type Verdict struct {
	Status Status
	Reason Reason
}

// PageSignals are read from the profile's top card
type PageSignals struct {
	HasPendingIndicator bool
	HasConnectInvite    bool
	Text                string
}

// Markers are the substrings searched for in the top card text.
// They are locale dependent, so they live in configuration.
type Markers struct {
	Pending       []string `toml:"pending" yaml:"pending"`
	FirstDegree   []string `toml:"first_degree" yaml:"first_degree"`
	ConnectInvite []string `toml:"connect_invite" yaml:"connect_invite"`
}

// DefaultMarkers returns the marker set for the English, Spanish and
// French interfaces
func DefaultMarkers() Markers {
	return Markers{
		Pending:       []string{"Pending"},
		FirstDegree:   []string{"1st", "1st degree", "1º", "1er"},
		ConnectInvite: []string{"Connect"},
	}
}

// Classify resolves a degree hint and page signals into one verdict.
// The rules are checked in order and the first match wins. Pending is
// checked before connected. When nothing matches the verdict is
// StatusNotConnected, never StatusConnected.
func Classify(degreeHint *int, signals PageSignals, markers Markers) Verdict {
	if degreeHint != nil && *degreeHint == 1 {
		return Verdict{StatusConnected, ReasonDegreeHint}
	}
	if signals.HasPendingIndicator {
		return Verdict{StatusPending, ReasonPendingElement}
	}
	if containsAny(signals.Text, markers.Pending) {
		return Verdict{StatusPending, ReasonPendingText}
	}
	if containsAny(signals.Text, markers.FirstDegree) {
		return Verdict{StatusConnected, ReasonFirstDegreeText}
	}
	if signals.HasConnectInvite {
		return Verdict{StatusNotConnected, ReasonInviteElement}
	}
	if containsAny(signals.Text, markers.ConnectInvite) {
		return Verdict{StatusNotConnected, ReasonInviteText}
	}
	// a zero degree carries no information and counts as no hint
	if degreeHint != nil && *degreeHint != 0 {
		return Verdict{StatusNotConnected, ReasonDegreeHintPresent}
	}
	return Verdict{StatusNotConnected, ReasonAmbiguous}
}

func containsAny(text string, markers []string) bool {
	if text == "" {
		return false
	}
	for _, m := range markers {
		if m != "" && strings.Contains(text, m) {
			return true
		}
	}
	return false
}
