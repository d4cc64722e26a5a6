package mastery

import "time"

// Engine holds the mastery model parameters. It performs no I/O and keeps no
// per-learner state, so a single Engine may be shared by all goroutines.
type Engine struct {
	params Params
	now    func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for CreatedAt and LastAttempted.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine with the given parameters.
func NewEngine(params Params, opts ...Option) *Engine {
	e := &Engine{params: params, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params returns the engine's model constants.
func (e *Engine) Params() Params {
	return e.params
}

// RecordAttempt applies one attempt outcome to prev and returns the updated
// state. A nil prev means this is the learner's first attempt at the concept.
// prev itself is never modified.
func (e *Engine) RecordAttempt(key Key, prev *State, correct bool) State {
	now := e.now()

	var s State
	if prev == nil {
		s = newState(key, now)
	} else {
		s = *prev
		s.LearnerID, s.ConceptID = key.LearnerID, key.ConceptID
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
	}

	masteryTarget, masteryRate := 0.0, e.params.IncorrectRate
	frustrationTarget, frustrationRate := 1.0, e.params.FrustrationRiseRate
	if correct {
		masteryTarget, masteryRate = 1.0, e.params.CorrectRate
		frustrationTarget, frustrationRate = 0.0, e.params.FrustrationDecayRate
	}

	s.MasteryScore = ema(s.MasteryScore, masteryTarget, masteryRate)
	s.FrustrationScore = ema(s.FrustrationScore, frustrationTarget, frustrationRate)
	s.ConfidenceScore = ema(s.ConfidenceScore, 1.0, e.params.ConfidenceRate)

	s.Attempts++
	s.LastAttempted = now
	return s
}

// ema moves current toward target by rate, keeping the result in [0, 1].
func ema(current, target, rate float64) float64 {
	current = clamp(current, 0, 1)
	return clamp(current+rate*(target-current), 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
