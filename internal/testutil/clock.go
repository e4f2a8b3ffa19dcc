package testutil

import (
	"sync"
	"time"
)

// MockClock provides controllable time for testing
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewSteppingClock returns a clock that moves forward by step after every reading
func NewSteppingClock(start time.Time, step time.Duration) *MockClock {
	return &MockClock{current: start, step: step}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.current
	m.current = m.current.Add(m.step)
	return now
}
