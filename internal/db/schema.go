package db

import (
	"encoding/json"
	"time"
)

// State values the store itself needs to reason about. The full set of
// lifecycle states is owned by the lifecycle package; the store keeps
// them as opaque strings.
const (
	StateDiscovered = "discovered"
	StateEnriched   = "enriched"
)

// Profile is a row of the profiles table
type Profile struct {
	PublicIdentifier string
	State            string
	Profile          json.RawMessage
	Data             json.RawMessage
	CloudSynced      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Run status values
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusCancelled = "cancelled"
	RunStatusFailed    = "failed"
)

// CampaignRun records a single invocation of the campaign loop
type CampaignRun struct {
	RunID               string
	StartedAt           time.Time
	EndedAt             *time.Time
	Status              string
	ConnectionsDisabled bool
	Summary             json.RawMessage
}

// CycleStats holds per-cycle counters for a campaign run
type CycleStats struct {
	RunID           string
	Cycle           int
	StartedAt       time.Time
	EndedAt         time.Time
	PendingCount    int
	BatchSize       int
	ProfilesStarted int
	Transitions     int
	Skipped         int
	HardLimits      int
	Failed          int
	Completed       int
}
