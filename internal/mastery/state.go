package mastery

import "time"

// Key identifies the learner and concept a State belongs to.
type Key struct {
	LearnerID string
	ConceptID string
}

// State is the running summary of one learner's progress on one concept.
// It is a value: the engine returns new States rather than mutating them.
type State struct {
	LearnerID        string
	ConceptID        string
	MasteryScore     float64
	ConfidenceScore  float64
	FrustrationScore float64
	Attempts         int
	CreatedAt        time.Time
	LastAttempted    time.Time
}

// Key returns the composite identity of the state.
func (s State) Key() Key {
	return Key{LearnerID: s.LearnerID, ConceptID: s.ConceptID}
}

// IsMastered reports whether the mastery score has reached the threshold.
func (s State) IsMastered(p Params) bool {
	return s.MasteryScore >= p.MasteryThreshold
}

// IsFrustrated reports whether frustration exceeds the threshold.
func (s State) IsFrustrated(p Params) bool {
	return s.FrustrationScore > p.FrustrationThreshold
}

// newState returns the zero-progress state created on a first attempt.
func newState(key Key, now time.Time) State {
	return State{
		LearnerID: key.LearnerID,
		ConceptID: key.ConceptID,
		CreatedAt: now,
	}
}
