// Package tutor is the application layer. It reads the active curriculum,
// loads learner state from the store, runs the mastery engine and writes
// the result back, counting each answer toward the learner's session.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/abhisek/masteryforge/internal/conceptgraph"
	"github.com/abhisek/masteryforge/internal/curriculum"
	"github.com/abhisek/masteryforge/internal/hints"
	"github.com/abhisek/masteryforge/internal/mastery"
	"github.com/abhisek/masteryforge/internal/session"
	"github.com/abhisek/masteryforge/internal/store"
)

// ErrInvalidLearner is returned for an empty learner id.
var ErrInvalidLearner = errors.New("learner id is required")

// recentHintAttempts is how many past attempts are shown to a hint provider.
const recentHintAttempts = 5

// Service coordinates one learner interaction at a time. It is safe for
// concurrent use; per-learner serialization is delegated to the store.
type Service struct {
	curriculum *curriculum.Holder
	store      store.Store
	engine     *mastery.Engine
	hints      hints.Provider
	sessions   *session.Tracker
	log        *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithHints sets the hint provider. The default is hints.Unavailable.
func WithHints(p hints.Provider) Option {
	return func(s *Service) { s.hints = p }
}

// WithSessions sets the session tracker. The default tracks sessions in
// the service store with session.DefaultTimeout.
func WithSessions(t *session.Tracker) Option {
	return func(s *Service) { s.sessions = t }
}

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService returns a Service that reads concepts from holder and keeps
// learner state, attempt history and sessions in st.
func NewService(holder *curriculum.Holder, st store.Store, engine *mastery.Engine, opts ...Option) *Service {
	s := &Service{
		curriculum: holder,
		store:      st,
		engine:     engine,
		hints:      hints.Unavailable{},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sessions == nil {
		s.sessions = session.NewTracker(st)
	}
	return s
}

// AttemptResult is the outcome of RecordAttempt.
type AttemptResult struct {
	State   mastery.State
	Attempt store.Attempt
	// Session is the learning session the answer counted toward. It is
	// zero when the session could not be saved.
	Session session.Session

	Mastered   bool
	Frustrated bool

	// NewlyMastered is set on the attempt that first crosses the mastery
	// threshold.
	NewlyMastered bool
}

// RecordAttempt applies one answer to the learner's state for conceptID
// and persists the new state, an attempt history entry and the session
// totals. Once the state is saved the attempt counts: a failed history or
// session write is logged and does not fail the call, so a retry never
// applies the same answer twice.
func (s *Service) RecordAttempt(ctx context.Context, learnerID, conceptID string, correct bool) (AttemptResult, error) {
	if learnerID == "" {
		return AttemptResult{}, ErrInvalidLearner
	}
	g, err := s.curriculum.Graph()
	if err != nil {
		return AttemptResult{}, err
	}
	if _, err := g.Get(conceptID); err != nil {
		return AttemptResult{}, err
	}

	params := s.engine.Params()
	key := mastery.Key{LearnerID: learnerID, ConceptID: conceptID}

	var wasMastered bool
	next, err := s.store.Update(ctx, key, func(prev *mastery.State) (mastery.State, error) {
		wasMastered = prev != nil && prev.IsMastered(params)
		return s.engine.RecordAttempt(key, prev, correct), nil
	})
	if err != nil {
		return AttemptResult{}, fmt.Errorf("record attempt: %w", err)
	}

	attempt := store.Attempt{
		LearnerID:        learnerID,
		ConceptID:        conceptID,
		Correct:          correct,
		MasteryAfter:     next.MasteryScore,
		FrustrationAfter: next.FrustrationScore,
		RecordedAt:       next.LastAttempted,
	}
	if saved, err := s.store.AppendAttempt(ctx, attempt); err != nil {
		s.log.Warn("attempt history not saved",
			zap.String("learner_id", learnerID),
			zap.String("concept_id", conceptID),
			zap.Error(err),
		)
	} else {
		attempt = saved
	}

	res := AttemptResult{
		State:      next,
		Attempt:    attempt,
		Mastered:   next.IsMastered(params),
		Frustrated: next.IsFrustrated(params),
	}
	res.NewlyMastered = res.Mastered && !wasMastered

	if sess, err := s.sessions.Record(ctx, learnerID, conceptID, correct); err != nil {
		s.log.Warn("session not updated",
			zap.String("learner_id", learnerID),
			zap.String("concept_id", conceptID),
			zap.Error(err),
		)
	} else {
		res.Session = sess
	}

	s.log.Info("attempt recorded",
		zap.String("learner_id", learnerID),
		zap.String("concept_id", conceptID),
		zap.Bool("correct", correct),
		zap.Float64("mastery", next.MasteryScore),
		zap.Float64("frustration", next.FrustrationScore),
		zap.Int("attempts", next.Attempts),
	)
	if res.NewlyMastered {
		s.log.Info("concept mastered", zap.String("learner_id", learnerID), zap.String("concept_id", conceptID))
	}
	if res.Frustrated {
		s.log.Debug("learner frustrated", zap.String("learner_id", learnerID), zap.String("concept_id", conceptID))
	}
	return res, nil
}

// Recommend returns the next concept for the learner. currentID is the
// concept the learner is on, or "" when there is none. ok is false when
// nothing is left to study.
func (s *Service) Recommend(ctx context.Context, learnerID, currentID string) (c conceptgraph.Concept, ok bool, err error) {
	if learnerID == "" {
		return conceptgraph.Concept{}, false, ErrInvalidLearner
	}
	g, err := s.curriculum.Graph()
	if err != nil {
		return conceptgraph.Concept{}, false, err
	}
	states, err := s.store.GetAll(ctx, learnerID)
	if err != nil {
		return conceptgraph.Concept{}, false, fmt.Errorf("load learner states: %w", err)
	}

	c, ok = s.engine.SelectNextConcept(g, states, currentID)
	s.log.Debug("concept recommended",
		zap.String("learner_id", learnerID),
		zap.String("current_id", currentID),
		zap.String("concept_id", c.ID),
		zap.Bool("found", ok),
	)
	return c, ok, nil
}

// Progress returns the learner's progress on every concept, in
// curriculum (topological) order.
func (s *Service) Progress(ctx context.Context, learnerID string) ([]mastery.ConceptProgress, error) {
	if learnerID == "" {
		return nil, ErrInvalidLearner
	}
	g, err := s.curriculum.Graph()
	if err != nil {
		return nil, err
	}
	states, err := s.store.GetAll(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("load learner states: %w", err)
	}

	summary := s.engine.ProgressSummary(g, states)
	out := make([]mastery.ConceptProgress, 0, len(summary))
	for _, p := range summary {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return g.TopoIndex(out[i].ConceptID) < g.TopoIndex(out[j].ConceptID)
	})
	return out, nil
}

// History returns the learner's latest attempts on conceptID, newest
// first. limit <= 0 returns all of them.
func (s *Service) History(ctx context.Context, learnerID, conceptID string, limit int) ([]store.Attempt, error) {
	if learnerID == "" {
		return nil, ErrInvalidLearner
	}
	g, err := s.curriculum.Graph()
	if err != nil {
		return nil, err
	}
	if _, err := g.Get(conceptID); err != nil {
		return nil, err
	}
	attempts, err := s.store.Attempts(ctx, learnerID, conceptID, limit)
	if err != nil {
		return nil, fmt.Errorf("load attempt history: %w", err)
	}
	return attempts, nil
}

// Hint asks the hint provider for help on conceptID, passing along the
// learner's current state and recent results.
func (s *Service) Hint(ctx context.Context, learnerID, conceptID string) (string, error) {
	if learnerID == "" {
		return "", ErrInvalidLearner
	}
	g, err := s.curriculum.Graph()
	if err != nil {
		return "", err
	}
	concept, err := g.Get(conceptID)
	if err != nil {
		return "", err
	}

	lc := hints.LearnerContext{LearnerID: learnerID, Concept: concept}
	st, err := s.store.Get(ctx, learnerID, conceptID)
	if err != nil {
		return "", fmt.Errorf("load learner state: %w", err)
	}
	if st != nil {
		lc.MasteryScore = st.MasteryScore
		lc.FrustrationScore = st.FrustrationScore
		lc.Attempts = st.Attempts
	}
	recent, err := s.store.Attempts(ctx, learnerID, conceptID, recentHintAttempts)
	if err != nil {
		return "", fmt.Errorf("load attempt history: %w", err)
	}
	for _, a := range recent {
		lc.RecentResults = append(lc.RecentResults, a.Correct)
	}

	return s.hints.GenerateHint(ctx, conceptID, lc)
}

// Session returns the learner's open session, or nil when there is none
// or it has timed out.
func (s *Service) Session(ctx context.Context, learnerID string) (*session.Session, error) {
	if learnerID == "" {
		return nil, ErrInvalidLearner
	}
	return s.sessions.Current(ctx, learnerID)
}

// EndSession closes the learner's open session and returns it, or nil
// when no session was open.
func (s *Service) EndSession(ctx context.Context, learnerID string) (*session.Session, error) {
	if learnerID == "" {
		return nil, ErrInvalidLearner
	}
	sess, err := s.sessions.Close(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		s.log.Info("session closed",
			zap.String("learner_id", learnerID),
			zap.String("session_id", sess.ID),
			zap.Int("questions", sess.TotalQuestions),
			zap.Float64("average_score", sess.AverageScore),
		)
	}
	return sess, nil
}

// Sessions returns the learner's latest sessions, newest first. limit <= 0
// returns all of them.
func (s *Service) Sessions(ctx context.Context, learnerID string, limit int) ([]session.Session, error) {
	if learnerID == "" {
		return nil, ErrInvalidLearner
	}
	return s.sessions.History(ctx, learnerID, limit)
}
