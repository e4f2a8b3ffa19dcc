// Package campaign runs the profile state machine over a worklist, one
// profile at a time, with throttled cycles.
package campaign

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/livinlefevreloca/outreach/internal/lifecycle"
	"github.com/livinlefevreloca/outreach/internal/stats"
	"github.com/livinlefevreloca/outreach/internal/worklist"
	"golang.org/x/time/rate"
)

// Advancer performs one lifecycle step
type Advancer interface {
	Advance(ctx context.Context, item lifecycle.WorkItem, opts lifecycle.StepOptions) (lifecycle.Outcome, error)
}

// Store is what the loop needs from the record store
type Store interface {
	CountPendingDiscovered(ctx context.Context) (int, error)
	AddProfileURLs(ctx context.Context, publicIDs []string) (int, error)
}

// BatchSizer bounds how many new profiles a cycle may start. Reset is
// called between passes.
type BatchSizer interface {
	DetermineBatchSize(pending int) int
	Reset()
}

// Snapshotter captures diagnostics for a skipped profile
type Snapshotter interface {
	Capture(ctx context.Context, publicID string) error
}

// StatsRecorder receives per-cycle counters
type StatsRecorder interface {
	Record(report stats.CycleReport) bool
}

// Deps are the collaborators of a Runner. Snapshotter and Stats are
// optional.
type Deps struct {
	Machine     Advancer
	Store       Store
	Throttle    BatchSizer
	Snapshotter Snapshotter
	Stats       StatsRecorder
	Logger      *slog.Logger
}

// Summary totals one pass over a worklist
type Summary struct {
	Cycles              int
	ProfilesStarted     int
	Transitions         int
	Skipped             int
	HardLimits          int
	Errors              int
	Failed              int
	Completed           int
	Remaining           int
	ConnectionsDisabled bool
	Cancelled           bool
}

// Runner drives the campaign. A Runner is used by one goroutine.
type Runner struct {
	config  Config
	deps    Deps
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error

	connectionsAllowed bool
}

// NewRunner creates a campaign runner
func NewRunner(config Config, deps Deps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.MaxStepsPerProfile <= 0 {
		config.MaxStepsPerProfile = DefaultConfig().MaxStepsPerProfile
	}
	return &Runner{
		config:             config,
		deps:               deps,
		limiter:            config.Limiter(),
		logger:             logger.With("component", "campaign"),
		now:                time.Now,
		sleep:              sleepContext,
		connectionsAllowed: config.ConnectionsEnabled,
	}
}

// ConnectionsAllowed reports whether connection requests are still enabled
func (r *Runner) ConnectionsAllowed() bool {
	return r.connectionsAllowed
}

// Run makes one pass over the worklist. Items are first ingested as
// discovered. Cancellation takes effect between profiles; the profile in
// progress finishes its current step.
func (r *Runner) Run(ctx context.Context, items []worklist.Item) (Summary, error) {
	var summary Summary

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.PublicIdentifier
	}
	added, err := r.deps.Store.AddProfileURLs(ctx, ids)
	if err != nil {
		return summary, errors.Wrap(err, "ingest worklist")
	}
	r.logger.Info("campaign pass starting",
		"profiles", len(items),
		"new", added,
		"connections_allowed", r.connectionsAllowed)

	next := 0
	for cycle := 1; next < len(items); cycle++ {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}

		pending, err := r.deps.Store.CountPendingDiscovered(ctx)
		if err != nil {
			summary.Remaining = len(items) - next
			return summary, errors.Wrap(err, "count pending profiles")
		}
		batch := r.deps.Throttle.DetermineBatchSize(pending)
		if batch <= 0 {
			// nothing left to enrich, but later-stage profiles still need steps
			batch = 1
		}

		report := stats.CycleReport{
			Cycle:        cycle,
			StartedAt:    r.now(),
			PendingCount: pending,
			BatchSize:    batch,
		}
		r.logger.Debug("cycle starting", "cycle", cycle, "pending", pending, "batch", batch)

		for n := 0; n < batch && next < len(items); n++ {
			if err := r.limiter.Wait(ctx); err != nil {
				summary.Cancelled = true
				break
			}
			if err := r.processProfile(ctx, items[next], &report); err != nil {
				summary.Errors++
			}
			next++
		}

		report.EndedAt = r.now()
		summary.add(report)
		if r.deps.Stats != nil && !r.deps.Stats.Record(report) {
			r.logger.Warn("cycle report dropped", "cycle", cycle)
		}

		if summary.Cancelled {
			break
		}
		if next < len(items) && r.config.CyclePause > 0 {
			if err := r.sleep(ctx, r.config.CyclePause); err != nil {
				summary.Cancelled = true
				break
			}
		}
	}

	summary.Remaining = len(items) - next
	summary.ConnectionsDisabled = !r.connectionsAllowed
	if summary.Cancelled {
		r.logger.Info("campaign pass cancelled", "remaining", summary.Remaining)
	} else {
		r.logger.Info("campaign pass finished",
			"cycles", summary.Cycles,
			"transitions", summary.Transitions,
			"skipped", summary.Skipped,
			"completed", summary.Completed)
	}
	return summary, nil
}

// RunLoop repeats passes until ctx is cancelled. load is called before
// every pass so ordering reflects the latest updates.
func (r *Runner) RunLoop(ctx context.Context, load func(context.Context) ([]worklist.Item, error)) (Summary, error) {
	var total Summary
	for pass := 1; ; pass++ {
		if pass > 1 {
			// the pause and a fresh ingest would skew the rate estimate
			r.deps.Throttle.Reset()
		}
		items, err := load(ctx)
		if err != nil {
			return total, errors.Wrapf(err, "load worklist for pass %d", pass)
		}

		s, err := r.Run(ctx, items)
		total.merge(s)
		if err != nil {
			return total, err
		}
		if s.Cancelled || ctx.Err() != nil {
			total.Cancelled = true
			return total, nil
		}

		r.logger.Info("pass complete, waiting", "pass", pass, "interval", r.config.PassInterval)
		if err := r.sleep(ctx, r.config.PassInterval); err != nil {
			total.Cancelled = true
			return total, nil
		}
	}
}

// processProfile advances one profile while the machine allows. A store
// error ends the profile for this cycle and is returned after logging.
func (r *Runner) processProfile(ctx context.Context, item worklist.Item, report *stats.CycleReport) error {
	report.ProfilesStarted++
	work := lifecycle.WorkItem{URL: item.URL, PublicIdentifier: item.PublicIdentifier}
	logger := r.logger.With("public_identifier", item.PublicIdentifier)

	// a started step runs to completion even if the run is cancelled
	stepCtx := context.WithoutCancel(ctx)

	for step := 0; step < r.config.MaxStepsPerProfile; step++ {
		out, err := r.deps.Machine.Advance(stepCtx, work, lifecycle.StepOptions{
			ConnectionsAllowed: r.connectionsAllowed,
		})
		if err != nil {
			logger.Error("profile step failed", "error", err)
			return err
		}

		switch out.Kind {
		case lifecycle.OutcomeAdvanced:
			report.Transitions++
			if out.To == lifecycle.StateFailed {
				report.Failed++
			}
			if out.To == lifecycle.StateCompleted {
				report.Completed++
			}
		case lifecycle.OutcomeSkip:
			report.Skipped++
			logger.Info("skipping profile", "state", out.From.String(), "reason", out.Cause)
			r.capture(stepCtx, item.PublicIdentifier, logger)
			return nil
		case lifecycle.OutcomeHardLimit:
			report.HardLimits++
			if r.connectionsAllowed {
				logger.Warn("connection limit reached, disabling connection requests for this run",
					"reason", out.Cause)
			}
			r.connectionsAllowed = false
			return nil
		}

		if !out.Continue {
			return nil
		}
	}
	logger.Warn("profile step limit reached", "steps", r.config.MaxStepsPerProfile)
	return nil
}

func (r *Runner) capture(ctx context.Context, publicID string, logger *slog.Logger) {
	if r.deps.Snapshotter == nil {
		return
	}
	if err := r.deps.Snapshotter.Capture(ctx, publicID); err != nil {
		logger.Warn("snapshot failed", "error", err)
	}
}

func (s *Summary) add(r stats.CycleReport) {
	s.Cycles++
	s.ProfilesStarted += r.ProfilesStarted
	s.Transitions += r.Transitions
	s.Skipped += r.Skipped
	s.HardLimits += r.HardLimits
	s.Failed += r.Failed
	s.Completed += r.Completed
}

func (s *Summary) merge(o Summary) {
	s.Cycles += o.Cycles
	s.ProfilesStarted += o.ProfilesStarted
	s.Transitions += o.Transitions
	s.Skipped += o.Skipped
	s.HardLimits += o.HardLimits
	s.Errors += o.Errors
	s.Failed += o.Failed
	s.Completed += o.Completed
	s.Remaining = o.Remaining
	s.ConnectionsDisabled = s.ConnectionsDisabled || o.ConnectionsDisabled
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
