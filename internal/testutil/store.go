package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/livinlefevreloca/outreach/internal/lifecycle"
)

// MemoryStore is an in-memory lifecycle.Store that also serves the
// campaign loop's pending count and URL ingestion
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*lifecycle.Record
	writes  []Write
	clock   func() time.Time

	readError  error
	writeError error
	countError error
}

// Write is one persisted state change
type Write struct {
	PublicIdentifier string
	State            lifecycle.ProfileState
	WithPayload      bool
}

func NewMemoryStore() *MemoryStore {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	return &MemoryStore{
		records: make(map[string]*lifecycle.Record),
		clock: func() time.Time {
			tick++
			return start.Add(time.Duration(tick) * time.Second)
		},
	}
}

// Seed stores a record directly, bypassing the write log
func (m *MemoryStore) Seed(publicID string, state lifecycle.ProfileState, profile json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[publicID] = &lifecycle.Record{
		PublicIdentifier: publicID,
		State:            state,
		Profile:          profile,
		UpdatedAt:        m.clock(),
	}
}

func (m *MemoryStore) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readError = err
}

func (m *MemoryStore) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeError = err
}

func (m *MemoryStore) SetCountError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.countError = err
}

func (m *MemoryStore) ReadProfile(ctx context.Context, publicID string) (*lifecycle.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readError != nil {
		return nil, m.readError
	}
	rec, ok := m.records[publicID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) PersistState(ctx context.Context, publicID string, state lifecycle.ProfileState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeError != nil {
		return m.writeError
	}
	rec := m.recordLocked(publicID)
	rec.State = state
	rec.UpdatedAt = m.clock()
	m.writes = append(m.writes, Write{PublicIdentifier: publicID, State: state})
	return nil
}

func (m *MemoryStore) PersistEnriched(ctx context.Context, publicID string, profile, raw json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeError != nil {
		return m.writeError
	}
	rec := m.recordLocked(publicID)
	rec.State = lifecycle.StateEnriched
	rec.Profile = profile
	rec.Raw = raw
	rec.CloudSynced = false
	rec.UpdatedAt = m.clock()
	m.writes = append(m.writes, Write{PublicIdentifier: publicID, State: lifecycle.StateEnriched, WithPayload: true})
	return nil
}

// CountPendingDiscovered counts records still in the discovered state
func (m *MemoryStore) CountPendingDiscovered(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.countError != nil {
		return 0, m.countError
	}
	n := 0
	for _, rec := range m.records {
		if rec.State == lifecycle.StateDiscovered {
			n++
		}
	}
	return n, nil
}

// AddProfileURLs inserts unknown identifiers as discovered
func (m *MemoryStore) AddProfileURLs(ctx context.Context, publicIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeError != nil {
		return 0, m.writeError
	}
	inserted := 0
	for _, id := range publicIDs {
		if _, ok := m.records[id]; ok {
			continue
		}
		m.records[id] = &lifecycle.Record{
			PublicIdentifier: id,
			State:            lifecycle.StateDiscovered,
			UpdatedAt:        m.clock(),
		}
		inserted++
	}
	return inserted, nil
}

// State returns the stored state and whether the profile exists
func (m *MemoryStore) State(publicID string) (lifecycle.ProfileState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[publicID]
	if !ok {
		return 0, false
	}
	return rec.State, true
}

// Record returns a copy of the stored record, or nil
func (m *MemoryStore) Record(publicID string) *lifecycle.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[publicID]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

// Writes returns every persisted change in order
func (m *MemoryStore) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]Write, len(m.writes))
	copy(result, m.writes)
	return result
}

func (m *MemoryStore) recordLocked(publicID string) *lifecycle.Record {
	rec, ok := m.records[publicID]
	if !ok {
		rec = &lifecycle.Record{PublicIdentifier: publicID}
		m.records[publicID] = rec
	}
	return rec
}
