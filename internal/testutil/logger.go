package testutil

import (
	"context"
	"log/slog"
	"sync"
)

// TestLogger captures slog records for assertions
type TestLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]any
}

func NewTestLogger() *TestLogger {
	return &TestLogger{entries: make([]LogEntry, 0)}
}

// Logger returns a *slog.Logger that writes to this TestLogger
func (l *TestLogger) Logger() *slog.Logger {
	return slog.New(&testLogHandler{logger: l})
}

func (l *TestLogger) GetEntries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]LogEntry, len(l.entries))
	copy(result, l.entries)
	return result
}

// Find returns entries with the given message
func (l *TestLogger) Find(msg string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var result []LogEntry
	for _, e := range l.entries {
		if e.Message == msg {
			result = append(result, e)
		}
	}
	return result
}

// HasLevel reports whether anything was logged at level (DEBUG, INFO, WARN, ERROR)
func (l *TestLogger) HasLevel(level string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Level == level {
			return true
		}
	}
	return false
}

// testLogHandler implements slog.Handler for TestLogger. Groups are
// flattened.
type testLogHandler struct {
	logger *TestLogger
	attrs  []slog.Attr
}

func (h *testLogHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Level:   r.Level.String(),
		Message: r.Message,
		Fields:  make(map[string]any, r.NumAttrs()+len(h.attrs)),
	}
	for _, a := range h.attrs {
		entry.Fields[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.Fields[a.Key] = a.Value.Any()
		return true
	})

	h.logger.mu.Lock()
	defer h.logger.mu.Unlock()
	h.logger.entries = append(h.logger.entries, entry)
	return nil
}

func (h *testLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &testLogHandler{logger: h.logger, attrs: merged}
}

func (h *testLogHandler) WithGroup(string) slog.Handler {
	return h
}
