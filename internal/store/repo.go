package store

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/masteryforge/internal/mastery"
	"github.com/abhisek/masteryforge/internal/session"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// UpdateFunc computes the next state from the stored one. prev is nil when
// the learner has no state for the concept yet.
type UpdateFunc func(prev *mastery.State) (mastery.State, error)

// MasteryStore persists per-learner mastery states.
type MasteryStore interface {
	// Get returns the state for a learner and concept, or nil if none exists.
	Get(ctx context.Context, learnerID, conceptID string) (*mastery.State, error)

	// GetAll returns every state of a learner keyed by concept id.
	GetAll(ctx context.Context, learnerID string) (map[string]mastery.State, error)

	// Put creates or replaces a state. CreatedAt of an existing row is kept.
	Put(ctx context.Context, state mastery.State) error

	// Update runs an atomic read-modify-write of one state. Concurrent
	// Updates of the same key are serialized; fn may run more than once
	// on backends with optimistic locking and must not have side effects.
	Update(ctx context.Context, key mastery.Key, fn UpdateFunc) (mastery.State, error)
}

// Attempt is one recorded interaction, kept as history next to the
// running summary in MasteryStore.
type Attempt struct {
	ID               string
	LearnerID        string
	ConceptID        string
	Correct          bool
	MasteryAfter     float64
	FrustrationAfter float64
	RecordedAt       time.Time
}

// AttemptLog stores the attempt history.
type AttemptLog interface {
	// AppendAttempt records an attempt, assigning its ID when empty.
	AppendAttempt(ctx context.Context, a Attempt) (Attempt, error)

	// Attempts returns the most recent attempts for a learner and concept,
	// newest first. limit <= 0 means no limit.
	Attempts(ctx context.Context, learnerID, conceptID string, limit int) ([]Attempt, error)
}

// Store is a complete persistence backend.
type Store interface {
	MasteryStore
	AttemptLog
	session.Repo
	Close() error
}
