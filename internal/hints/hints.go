// Package hints produces learner-facing hints for a concept. The mastery
// engine never depends on it; the tutor service asks for a hint only when
// a learner requests one.
package hints

import (
	"context"
	"errors"

	"github.com/abhisek/masteryforge/internal/conceptgraph"
)

// ErrUnavailable is returned when no hint can be produced, e.g. because
// no provider is configured.
var ErrUnavailable = errors.New("hint provider unavailable")

// LearnerContext is what a provider knows about the learner when asked
// for a hint.
type LearnerContext struct {
	LearnerID        string
	Concept          conceptgraph.Concept
	MasteryScore     float64
	FrustrationScore float64
	Attempts         int

	// RecentResults holds the outcomes of the latest attempts, newest
	// first.
	RecentResults []bool
}

// Provider generates a hint for a concept.
type Provider interface {
	GenerateHint(ctx context.Context, conceptID string, lc LearnerContext) (string, error)
}

// Unavailable is the placeholder provider used when hints are disabled.
type Unavailable struct{}

func (Unavailable) GenerateHint(context.Context, string, LearnerContext) (string, error) {
	return "", ErrUnavailable
}
