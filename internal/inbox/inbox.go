// Package inbox is a typed, bounded message queue between a producer and
// a single background consumer.
package inbox

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Inbox carries messages of type T. Sends give up after a timeout so a
// stalled consumer never blocks the producer indefinitely.
type Inbox[T any] struct {
	ch      chan T
	timeout time.Duration
	logger  *slog.Logger

	closeOnce sync.Once
	closed    atomic.Bool

	sent     atomic.Int64
	received atomic.Int64
	timeouts atomic.Int64
	dropped  atomic.Int64
	maxDepth atomic.Int64
}

// Stats tracks inbox usage
type Stats struct {
	TotalSent     int64
	TotalReceived int64
	TimeoutCount  int64
	DroppedClosed int64
	CurrentDepth  int
	MaxDepthSeen  int
}

// New creates a new inbox with the specified buffer size and send timeout
func New[T any](bufferSize int, timeout time.Duration, logger *slog.Logger) *Inbox[T] {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Inbox[T]{
		ch:      make(chan T, bufferSize),
		timeout: timeout,
		logger:  logger,
	}
}

// Send queues a message. Returns false if the inbox is closed or the send
// timed out.
func (ib *Inbox[T]) Send(msg T) bool {
	if ib.closed.Load() {
		ib.dropped.Add(1)
		return false
	}

	timer := time.NewTimer(ib.timeout)
	defer timer.Stop()

	select {
	case ib.ch <- msg:
		ib.sent.Add(1)
		ib.observeDepth()
		return true
	case <-timer.C:
		ib.timeouts.Add(1)
		ib.logger.Warn("inbox send timeout",
			"timeout", ib.timeout,
			"current_depth", len(ib.ch))
		return false
	}
}

// Receive blocks until a message is available. The second result is false
// once the inbox is closed and drained.
func (ib *Inbox[T]) Receive() (T, bool) {
	msg, ok := <-ib.ch
	if ok {
		ib.received.Add(1)
	}
	return msg, ok
}

// Close stops accepting messages. Queued messages can still be received.
// Close must not race with Send; the producer closes its own inbox.
func (ib *Inbox[T]) Close() {
	ib.closeOnce.Do(func() {
		ib.closed.Store(true)
		close(ib.ch)
	})
}

// GetStats returns a snapshot of the inbox statistics
func (ib *Inbox[T]) GetStats() Stats {
	return Stats{
		TotalSent:     ib.sent.Load(),
		TotalReceived: ib.received.Load(),
		TimeoutCount:  ib.timeouts.Load(),
		DroppedClosed: ib.dropped.Load(),
		CurrentDepth:  len(ib.ch),
		MaxDepthSeen:  int(ib.maxDepth.Load()),
	}
}

func (ib *Inbox[T]) observeDepth() {
	depth := int64(len(ib.ch))
	for {
		current := ib.maxDepth.Load()
		if depth <= current || ib.maxDepth.CompareAndSwap(current, depth) {
			return
		}
	}
}
