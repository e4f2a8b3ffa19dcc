// Package stats records per-cycle counters of a campaign run in the
// background and writes a summary when the run ends.
package stats

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/livinlefevreloca/outreach/internal/inbox"
)

// DatabaseWriter interface for database operations
type DatabaseWriter interface {
	StartRun(ctx context.Context, runID string) error
	WriteCycle(ctx context.Context, runID string, report CycleReport) error
	FinishRun(ctx context.Context, summary RunSummary) error
}

// Collector owns the statistics of one run. Record may be called from
// the campaign loop; a background goroutine performs the writes.
type Collector struct {
	db     DatabaseWriter
	inbox  *inbox.Inbox[CycleReport]
	runID  string
	logger *slog.Logger

	mu         sync.Mutex
	acc        *RunAccumulator
	writeFails int

	started  bool
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewCollector creates a collector for runID
func NewCollector(config Config, runID string, db DatabaseWriter, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "stats", "run_id", runID)
	return &Collector{
		db:     db,
		inbox:  inbox.New[CycleReport](config.InboxBufferSize, config.InboxSendTimeout, logger),
		runID:  runID,
		logger: logger,
		acc:    &RunAccumulator{},
	}
}

// Start records the run and begins the write loop
func (c *Collector) Start(ctx context.Context) error {
	if err := c.db.StartRun(ctx, c.runID); err != nil {
		return errors.Wrapf(err, "start run %s", c.runID)
	}
	c.started = true
	c.wg.Add(1)
	go c.run(context.WithoutCancel(ctx))
	c.logger.Info("stats collector started")
	return nil
}

// Record queues a cycle report. Returns false if the report was dropped.
func (c *Collector) Record(report CycleReport) bool {
	return c.inbox.Send(report)
}

// Finish drains queued reports and writes the run summary
func (c *Collector) Finish(ctx context.Context, status string, connectionsDisabled bool) (RunSummary, error) {
	var summary RunSummary
	var finishErr error

	c.stopOnce.Do(func() {
		c.inbox.Close()
		c.wg.Wait()

		c.mu.Lock()
		summary = c.acc.Summary(c.runID, status, connectionsDisabled)
		c.mu.Unlock()
		summary.DroppedReports = c.inbox.GetStats().DroppedClosed + c.inbox.GetStats().TimeoutCount

		if !c.started {
			return
		}
		if err := c.db.FinishRun(ctx, summary); err != nil {
			finishErr = errors.Wrapf(err, "finish run %s", c.runID)
			return
		}
		c.logger.Info("stats collector finished",
			"status", status,
			"cycles", summary.Cycles,
			"transitions", summary.Transitions)
	})
	return summary, finishErr
}

// WriteFailures returns how many cycle writes failed
func (c *Collector) WriteFailures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeFails
}

// run is the write loop; it exits when the inbox is closed and drained
func (c *Collector) run(ctx context.Context) {
	defer c.wg.Done()

	for {
		report, ok := c.inbox.Receive()
		if !ok {
			c.logger.Debug("inbox closed")
			return
		}

		c.mu.Lock()
		c.acc.Add(report)
		c.mu.Unlock()

		if err := c.db.WriteCycle(ctx, c.runID, report); err != nil {
			c.mu.Lock()
			c.writeFails++
			c.mu.Unlock()
			c.logger.Error("write cycle stats failed", "cycle", report.Cycle, "error", err)
		}
	}
}
