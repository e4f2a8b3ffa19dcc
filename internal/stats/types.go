package stats

import "time"

// CycleReport contains the counters of one campaign cycle
type CycleReport struct {
	Cycle           int
	StartedAt       time.Time
	EndedAt         time.Time
	PendingCount    int // discovered profiles when the cycle began
	BatchSize       int // new profiles the throttle allowed
	ProfilesStarted int
	Transitions     int
	Skipped         int
	HardLimits      int
	Failed          int
	Completed       int
}

// RunSummary is the aggregate written when a run ends
type RunSummary struct {
	RunID               string        `json:"run_id"`
	Status              string        `json:"status"`
	Cycles              int           `json:"cycles"`
	ProfilesStarted     int           `json:"profiles_started"`
	Transitions         int           `json:"transitions"`
	Skipped             int           `json:"skipped"`
	HardLimits          int           `json:"hard_limits"`
	Failed              int           `json:"failed"`
	Completed           int           `json:"completed"`
	MinBatchSize        int           `json:"min_batch_size"`
	MaxBatchSize        int           `json:"max_batch_size"`
	AvgBatchSize        int           `json:"avg_batch_size"`
	Duration            time.Duration `json:"duration_ns"`
	ConnectionsDisabled bool          `json:"connections_disabled"`
	DroppedReports      int64         `json:"dropped_reports,omitempty"`
}

// RunAccumulator accumulates cycle reports for a run
type RunAccumulator struct {
	Cycles          int
	ProfilesStarted int
	Transitions     int
	Skipped         int
	HardLimits      int
	Failed          int
	Completed       int

	// Running batch size aggregates; a looping run never ends, so no
	// per-cycle samples are kept
	MinBatch   int
	MaxBatch   int
	BatchSum   int
	FirstStart time.Time
	LastEnd    time.Time
}

// Add adds a cycle report to the accumulator
func (acc *RunAccumulator) Add(r CycleReport) {
	acc.Cycles++
	acc.ProfilesStarted += r.ProfilesStarted
	acc.Transitions += r.Transitions
	acc.Skipped += r.Skipped
	acc.HardLimits += r.HardLimits
	acc.Failed += r.Failed
	acc.Completed += r.Completed
	if acc.Cycles == 1 || r.BatchSize < acc.MinBatch {
		acc.MinBatch = r.BatchSize
	}
	if acc.Cycles == 1 || r.BatchSize > acc.MaxBatch {
		acc.MaxBatch = r.BatchSize
	}
	acc.BatchSum += r.BatchSize
	if acc.FirstStart.IsZero() || r.StartedAt.Before(acc.FirstStart) {
		acc.FirstStart = r.StartedAt
	}
	if r.EndedAt.After(acc.LastEnd) {
		acc.LastEnd = r.EndedAt
	}
}

// Summary builds the run summary from the accumulated cycles
func (acc *RunAccumulator) Summary(runID, status string, connectionsDisabled bool) RunSummary {
	var avgBatch int
	if acc.Cycles > 0 {
		avgBatch = acc.BatchSum / acc.Cycles
	}
	var duration time.Duration
	if !acc.FirstStart.IsZero() {
		duration = acc.LastEnd.Sub(acc.FirstStart)
	}
	return RunSummary{
		RunID:               runID,
		Status:              status,
		Cycles:              acc.Cycles,
		ProfilesStarted:     acc.ProfilesStarted,
		Transitions:         acc.Transitions,
		Skipped:             acc.Skipped,
		HardLimits:          acc.HardLimits,
		Failed:              acc.Failed,
		Completed:           acc.Completed,
		MinBatchSize:        acc.MinBatch,
		MaxBatchSize:        acc.MaxBatch,
		AvgBatchSize:        avgBatch,
		Duration:            duration,
		ConnectionsDisabled: connectionsDisabled,
	}
}
