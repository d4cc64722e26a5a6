package store

import (
	"context"
	"sort"
	"sync"

	"github.com/abhisek/masteryforge/internal/mastery"
	"github.com/abhisek/masteryforge/internal/session"
)

// MemoryStore is a process-local Store. It is the default backend and
// the one used by tests.
type MemoryStore struct {
	mu       sync.Mutex
	states   map[mastery.Key]mastery.State
	attempts map[mastery.Key][]Attempt
	sessions map[string][]session.Session
	closed   bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:   make(map[mastery.Key]mastery.State),
		attempts: make(map[mastery.Key][]Attempt),
		sessions: make(map[string][]session.Session),
	}
}

// Get returns a copy of the stored state, or nil.
func (m *MemoryStore) Get(_ context.Context, learnerID, conceptID string) (*mastery.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	st, ok := m.states[mastery.Key{LearnerID: learnerID, ConceptID: conceptID}]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// GetAll returns copies of every state of the learner.
func (m *MemoryStore) GetAll(_ context.Context, learnerID string) (map[string]mastery.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	out := make(map[string]mastery.State)
	for k, st := range m.states {
		if k.LearnerID == learnerID {
			out[k.ConceptID] = st
		}
	}
	return out, nil
}

// Put stores state, keeping the CreatedAt of an existing entry.
func (m *MemoryStore) Put(_ context.Context, state mastery.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.put(state)
	return nil
}

func (m *MemoryStore) put(state mastery.State) {
	k := state.Key()
	if existing, ok := m.states[k]; ok && !existing.CreatedAt.IsZero() {
		state.CreatedAt = existing.CreatedAt
	}
	m.states[k] = state
}

// Update runs fn under the store lock.
func (m *MemoryStore) Update(_ context.Context, key mastery.Key, fn UpdateFunc) (mastery.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return mastery.State{}, ErrClosed
	}

	var prev *mastery.State
	if st, ok := m.states[key]; ok {
		prev = &st
	}
	next, err := fn(prev)
	if err != nil {
		return mastery.State{}, err
	}
	next.LearnerID, next.ConceptID = key.LearnerID, key.ConceptID
	m.put(next)
	return m.states[key], nil
}

// AppendAttempt records a, filling in its ID and timestamp when unset.
func (m *MemoryStore) AppendAttempt(_ context.Context, a Attempt) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Attempt{}, ErrClosed
	}

	a = withAttemptDefaults(a)
	k := mastery.Key{LearnerID: a.LearnerID, ConceptID: a.ConceptID}
	m.attempts[k] = append(m.attempts[k], a)
	return a, nil
}

// Attempts returns the latest attempts, newest first.
func (m *MemoryStore) Attempts(_ context.Context, learnerID, conceptID string, limit int) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	list := m.attempts[mastery.Key{LearnerID: learnerID, ConceptID: conceptID}]
	out := make([]Attempt, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.After(out[j].RecordedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpdateSessions runs fn under the store lock against the learner's open
// session.
func (m *MemoryStore) UpdateSessions(_ context.Context, learnerID string, fn session.Mutator) ([]session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	list := m.sessions[learnerID]
	out, err := fn(newestOpen(list))
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].LearnerID = learnerID
		s := out[i]
		s.ConceptsCovered = append([]string(nil), s.ConceptsCovered...)
		replaced := false
		for i := range list {
			if list[i].ID == s.ID {
				list[i] = s
				replaced = true
				break
			}
		}
		if !replaced {
			list = append(list, s)
		}
	}
	m.sessions[learnerID] = list
	return out, nil
}

// Sessions returns the learner's sessions, newest first.
func (m *MemoryStore) Sessions(_ context.Context, learnerID string, limit int) ([]session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	list := m.sessions[learnerID]
	out := make([]session.Session, len(list))
	for i, s := range list {
		s.ConceptsCovered = append([]string(nil), s.ConceptsCovered...)
		out[i] = s
	}
	sortSessions(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close marks the store closed. Further calls return ErrClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
