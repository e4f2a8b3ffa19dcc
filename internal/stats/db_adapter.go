package stats

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/livinlefevreloca/outreach/internal/db"
)

// DBAdapter adapts db.DB to implement DatabaseWriter interface
type DBAdapter struct {
	db *db.DB
}

// NewDBAdapter creates a new database adapter
func NewDBAdapter(database *db.DB) *DBAdapter {
	return &DBAdapter{db: database}
}

// StartRun implements DatabaseWriter for db.DB
func (a *DBAdapter) StartRun(ctx context.Context, runID string) error {
	_, err := a.db.CreateCampaignRun(ctx, runID)
	return err
}

// WriteCycle implements DatabaseWriter for db.DB
func (a *DBAdapter) WriteCycle(ctx context.Context, runID string, r CycleReport) error {
	return a.db.CreateCycleStats(ctx, &db.CycleStats{
		RunID:           runID,
		Cycle:           r.Cycle,
		StartedAt:       r.StartedAt,
		EndedAt:         r.EndedAt,
		PendingCount:    r.PendingCount,
		BatchSize:       r.BatchSize,
		ProfilesStarted: r.ProfilesStarted,
		Transitions:     r.Transitions,
		Skipped:         r.Skipped,
		HardLimits:      r.HardLimits,
		Failed:          r.Failed,
		Completed:       r.Completed,
	})
}

// FinishRun implements DatabaseWriter for db.DB
func (a *DBAdapter) FinishRun(ctx context.Context, summary RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return errors.Wrap(err, "encode run summary")
	}
	return a.db.FinishCampaignRun(ctx, summary.RunID, summary.Status, summary.ConnectionsDisabled, payload)
}
