// Package throttle sizes campaign cycles from the observed rate at which
// the discovered queue drains.
package throttle

import (
	"log/slog"
	"math"
	"time"
)

// DefaultInitialBatch is the batch size granted before any rate is known
const DefaultInitialBatch = 5

// Config holds throttle settings
type Config struct {
	InitialBatch int `toml:"initial_batch" yaml:"initial_batch"`
}

// DefaultConfig returns the default throttle configuration
func DefaultConfig() Config {
	return Config{InitialBatch: DefaultInitialBatch}
}

type observation struct {
	at      time.Time
	pending int
}

// Controller converts successive pending counts into batch sizes. It keeps
// only the most recent observation. Not safe for concurrent use; the
// campaign loop is its only caller.
type Controller struct {
	initial int
	last    *observation
	now     func() time.Time
	logger  *slog.Logger
}

// New creates a controller. A non-positive initial batch falls back to
// DefaultInitialBatch.
func New(cfg Config, logger *slog.Logger) *Controller {
	initial := cfg.InitialBatch
	if initial <= 0 {
		initial = DefaultInitialBatch
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		initial: initial,
		now:     time.Now,
		logger:  logger.With("component", "throttle"),
	}
}

// DetermineBatchSize returns how many new profiles the next cycle may
// start. The result is 0 only when pending is 0, and never exceeds a
// positive pending count.
func (c *Controller) DetermineBatchSize(pending int) int {
	if pending < 0 {
		pending = 0
	}
	now := c.now()
	prev := c.last
	c.last = &observation{at: now, pending: pending}

	if pending == 0 {
		return 0
	}

	if prev == nil {
		batch := min(c.initial, pending)
		c.logger.Debug("bootstrap batch", "pending", pending, "batch", batch)
		return batch
	}

	elapsed := now.Sub(prev.at)
	if elapsed <= 0 {
		c.logger.Debug("non-positive interval, minimal batch", "pending", pending)
		return 1
	}

	processed := max(0, prev.pending-pending)
	// with two samples the estimate is simply the work done in one interval
	estimate := float64(processed)
	batch := max(1, int(math.Round(estimate)))
	batch = min(batch, pending)

	c.logger.Debug("batch size determined",
		"pending", pending,
		"processed", processed,
		"elapsed", elapsed,
		"batch", batch)
	return batch
}

// Reset forgets the last observation so the next call bootstraps again
func (c *Controller) Reset() {
	c.last = nil
}
