package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// CreateCampaignRun inserts a new run in the running state
func (db *DB) CreateCampaignRun(ctx context.Context, runID string) (*CampaignRun, error) {
	run := &CampaignRun{
		RunID:     runID,
		StartedAt: db.now(),
		Status:    RunStatusRunning,
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO campaign_runs (run_id, started_at, status)
		VALUES (?, ?, ?)
	`, run.RunID, run.StartedAt, run.Status)
	if err != nil {
		if IsDuplicate(err) {
			return nil, errors.Wrapf(ErrDuplicate, "campaign run %s", runID)
		}
		return nil, errors.Wrapf(err, "create campaign run %s", runID)
	}
	return run, nil
}

// FinishCampaignRun records the terminal status and summary of a run
func (db *DB) FinishCampaignRun(ctx context.Context, runID, status string, connectionsDisabled bool, summary json.RawMessage) error {
	res, err := db.ExecContext(ctx, `
		UPDATE campaign_runs
		SET ended_at = ?, status = ?, connections_disabled = ?, summary = ?
		WHERE run_id = ?
	`, db.now(), status, connectionsDisabled, nullJSON(summary), runID)
	if err != nil {
		return errors.Wrapf(err, "finish campaign run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const runColumns = `run_id, started_at, ended_at, status, connections_disabled, summary`

// GetCampaignRun retrieves a run by ID
func (db *DB) GetCampaignRun(ctx context.Context, runID string) (*CampaignRun, error) {
	run, err := scanRun(db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM campaign_runs WHERE run_id = ?`, runID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get campaign run %s", runID)
	}
	return run, nil
}

// LatestCampaignRun returns the most recently started run
func (db *DB) LatestCampaignRun(ctx context.Context) (*CampaignRun, error) {
	run, err := scanRun(db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM campaign_runs ORDER BY started_at DESC LIMIT 1`))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "latest campaign run")
	}
	return run, nil
}

// CreateCycleStats inserts the counters for one cycle
func (db *DB) CreateCycleStats(ctx context.Context, s *CycleStats) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO cycle_stats (
			run_id, cycle, started_at, ended_at, pending_count, batch_size,
			profiles_started, transitions, skipped, hard_limits, failed, completed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.RunID, s.Cycle, s.StartedAt, s.EndedAt, s.PendingCount, s.BatchSize,
		s.ProfilesStarted, s.Transitions, s.Skipped, s.HardLimits, s.Failed, s.Completed)
	if err != nil {
		return errors.Wrapf(err, "insert cycle %d stats for run %s", s.Cycle, s.RunID)
	}
	return nil
}

// GetCycleStats returns all cycles of a run in order
func (db *DB) GetCycleStats(ctx context.Context, runID string) ([]*CycleStats, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, cycle, started_at, ended_at, pending_count, batch_size,
			profiles_started, transitions, skipped, hard_limits, failed, completed
		FROM cycle_stats
		WHERE run_id = ?
		ORDER BY cycle ASC
	`, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "query cycle stats for run %s", runID)
	}
	defer rows.Close()

	var result []*CycleStats
	for rows.Next() {
		var s CycleStats
		err := rows.Scan(&s.RunID, &s.Cycle, &s.StartedAt, &s.EndedAt, &s.PendingCount,
			&s.BatchSize, &s.ProfilesStarted, &s.Transitions, &s.Skipped,
			&s.HardLimits, &s.Failed, &s.Completed)
		if err != nil {
			return nil, errors.Wrap(err, "scan cycle stats")
		}
		result = append(result, &s)
	}
	return result, errors.Wrap(rows.Err(), "iterate cycle stats")
}

func scanRun(row rowScanner) (*CampaignRun, error) {
	var run CampaignRun
	var ended sql.NullTime
	var summary sql.NullString
	err := row.Scan(&run.RunID, &run.StartedAt, &ended, &run.Status,
		&run.ConnectionsDisabled, &summary)
	if err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		run.EndedAt = &t
	}
	if summary.Valid {
		run.Summary = json.RawMessage(summary.String)
	}
	return &run, nil
}
