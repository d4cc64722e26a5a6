// Package session groups a learner's consecutive attempts into learning
// sessions. A session stays open until it is closed explicitly or an
// attempt arrives more than Timeout after it started.
package session

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is how long after its start a session accepts attempts.
const DefaultTimeout = 90 * time.Minute

// Session is one learning sitting of one learner.
type Session struct {
	// ID is the UUID for this session.
	ID        string
	LearnerID string

	StartTime time.Time
	// EndTime is zero while the session is open.
	EndTime time.Time

	// ConceptsCovered holds the distinct concept ids attempted, sorted.
	ConceptsCovered []string

	TotalQuestions int
	TotalCorrect   int

	// AverageScore is the running mean of per-question scores, 0-100.
	AverageScore float64
}

// New starts an open session for learnerID at now.
func New(learnerID string, now time.Time) Session {
	return Session{
		ID:        uuid.NewString(),
		LearnerID: learnerID,
		StartTime: now,
	}
}

// IsOpen reports whether the session has not been closed.
func (s Session) IsOpen() bool {
	return s.EndTime.IsZero()
}

// Expired reports whether more than timeout has passed since the start.
func (s Session) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.StartTime) > timeout
}

// RecordQuiz adds one scored question on conceptID. scorePercent is in
// [0, 100]; a correct attempt scores 100 and an incorrect one 0.
func (s *Session) RecordQuiz(conceptID string, scorePercent float64) {
	s.addConcept(conceptID)
	s.TotalQuestions++
	if scorePercent >= 100 {
		s.TotalCorrect++
	}
	if s.TotalQuestions == 1 {
		s.AverageScore = scorePercent
		return
	}
	n := float64(s.TotalQuestions)
	s.AverageScore = (s.AverageScore*(n-1) + scorePercent) / n
}

func (s *Session) addConcept(conceptID string) {
	i := sort.SearchStrings(s.ConceptsCovered, conceptID)
	if i < len(s.ConceptsCovered) && s.ConceptsCovered[i] == conceptID {
		return
	}
	covered := make([]string, 0, len(s.ConceptsCovered)+1)
	covered = append(covered, s.ConceptsCovered[:i]...)
	covered = append(covered, conceptID)
	covered = append(covered, s.ConceptsCovered[i:]...)
	s.ConceptsCovered = covered
}

// Close ends the session at now. Closing a closed session is a no-op.
func (s *Session) Close(now time.Time) {
	if s.IsOpen() {
		s.EndTime = now
	}
}

// ScoreFor is the per-question score of an attempt.
func ScoreFor(correct bool) float64 {
	if correct {
		return 100
	}
	return 0
}
