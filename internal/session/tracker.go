package session

import (
	"context"
	"fmt"
	"time"
)

// Mutator computes the sessions to save from the learner's open session,
// which is nil when there is none. At most one returned session may be
// open.
type Mutator func(open *Session) ([]Session, error)

// Repo persists sessions.
type Repo interface {
	// UpdateSessions runs fn atomically against the learner's open session
	// and saves every session it returns, inserting or replacing by ID.
	UpdateSessions(ctx context.Context, learnerID string, fn Mutator) ([]Session, error)

	// Sessions returns the learner's sessions, newest first. limit <= 0
	// means no limit.
	Sessions(ctx context.Context, learnerID string, limit int) ([]Session, error)
}

// Tracker applies session rules on top of a Repo.
type Tracker struct {
	repo    Repo
	timeout time.Duration
	now     func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker returns a Tracker storing sessions in repo.
func NewTracker(repo Repo, opts ...Option) *Tracker {
	t := &Tracker{repo: repo, timeout: DefaultTimeout, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Timeout returns the configured session timeout.
func (t *Tracker) Timeout() time.Duration { return t.timeout }

// Record adds an attempt to the learner's open session. An expired open
// session is closed first and a new one started.
func (t *Tracker) Record(ctx context.Context, learnerID, conceptID string, correct bool) (Session, error) {
	now := t.now()
	saved, err := t.repo.UpdateSessions(ctx, learnerID, func(open *Session) ([]Session, error) {
		var out []Session
		var cur Session
		switch {
		case open == nil:
			cur = New(learnerID, now)
		case open.Expired(now, t.timeout):
			closed := *open
			closed.Close(now)
			out = append(out, closed)
			cur = New(learnerID, now)
		default:
			cur = *open
		}
		cur.RecordQuiz(conceptID, ScoreFor(correct))
		return append(out, cur), nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("record session attempt: %w", err)
	}
	return saved[len(saved)-1], nil
}

// Current returns the learner's open session, or nil when there is none
// or it has expired.
func (t *Tracker) Current(ctx context.Context, learnerID string) (*Session, error) {
	latest, err := t.repo.Sessions(ctx, learnerID, 1)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	if len(latest) == 0 || !latest[0].IsOpen() || latest[0].Expired(t.now(), t.timeout) {
		return nil, nil
	}
	return &latest[0], nil
}

// Close ends the learner's open session and returns it, or nil when
// there was none.
func (t *Tracker) Close(ctx context.Context, learnerID string) (*Session, error) {
	now := t.now()
	saved, err := t.repo.UpdateSessions(ctx, learnerID, func(open *Session) ([]Session, error) {
		if open == nil {
			return nil, nil
		}
		closed := *open
		closed.Close(now)
		return []Session{closed}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}
	if len(saved) == 0 {
		return nil, nil
	}
	return &saved[0], nil
}

// History returns the learner's sessions, newest first.
func (t *Tracker) History(ctx context.Context, learnerID string, limit int) ([]Session, error) {
	sessions, err := t.repo.Sessions(ctx, learnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	return sessions, nil
}
