package store

import (
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/masteryforge/internal/mastery"
)

// Table and column names shared by the SQL backends.
const (
	tableStates   = "mastery_states"
	tableAttempts = "attempts"

	colLearnerID        = "learner_id"
	colConceptID        = "concept_id"
	colMasteryScore     = "mastery_score"
	colConfidenceScore  = "confidence_score"
	colFrustrationScore = "frustration_score"
	colAttempts         = "attempts"
	colCreatedAt        = "created_at"
	colLastAttempted    = "last_attempted"

	colID               = "id"
	colCorrect          = "correct"
	colMasteryAfter     = "mastery_after"
	colFrustrationAfter = "frustration_after"
	colRecordedAt       = "recorded_at"
)

var stateColumns = []string{
	colLearnerID,
	colConceptID,
	colMasteryScore,
	colConfidenceScore,
	colFrustrationScore,
	colAttempts,
	colCreatedAt,
	colLastAttempted,
}

var attemptColumns = []string{
	colID,
	colLearnerID,
	colConceptID,
	colCorrect,
	colMasteryAfter,
	colFrustrationAfter,
	colRecordedAt,
}

// queries builds dialect-specific statements with the ent SQL builder.
// Timestamps are stored as Unix nanoseconds so both backends scan them
// into int64.
type queries struct {
	dialect string
}

func (q queries) selectState(learnerID, conceptID string) (string, []any) {
	b := entsql.Dialect(q.dialect)
	return b.Select(stateColumns...).
		From(b.Table(tableStates)).
		Where(entsql.And(
			entsql.EQ(colLearnerID, learnerID),
			entsql.EQ(colConceptID, conceptID),
		)).
		Query()
}

func (q queries) selectStates(learnerID string) (string, []any) {
	b := entsql.Dialect(q.dialect)
	return b.Select(stateColumns...).
		From(b.Table(tableStates)).
		Where(entsql.EQ(colLearnerID, learnerID)).
		OrderBy(entsql.Asc(colConceptID)).
		Query()
}

func (q queries) upsertState(s mastery.State) (string, []any) {
	return entsql.Dialect(q.dialect).
		Insert(tableStates).
		Columns(stateColumns...).
		Values(
			s.LearnerID,
			s.ConceptID,
			s.MasteryScore,
			s.ConfidenceScore,
			s.FrustrationScore,
			s.Attempts,
			toNanos(s.CreatedAt),
			toNanos(s.LastAttempted),
		).
		OnConflict(
			entsql.ConflictColumns(colLearnerID, colConceptID),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded(colMasteryScore)
				u.SetExcluded(colConfidenceScore)
				u.SetExcluded(colFrustrationScore)
				u.SetExcluded(colAttempts)
				u.SetExcluded(colLastAttempted)
			}),
		).
		Query()
}

func (q queries) insertAttempt(a Attempt) (string, []any) {
	return entsql.Dialect(q.dialect).
		Insert(tableAttempts).
		Columns(attemptColumns...).
		Values(
			a.ID,
			a.LearnerID,
			a.ConceptID,
			a.Correct,
			a.MasteryAfter,
			a.FrustrationAfter,
			toNanos(a.RecordedAt),
		).
		Query()
}

func (q queries) selectAttempts(learnerID, conceptID string, limit int) (string, []any) {
	b := entsql.Dialect(q.dialect)
	sel := b.Select(attemptColumns...).
		From(b.Table(tableAttempts)).
		Where(entsql.And(
			entsql.EQ(colLearnerID, learnerID),
			entsql.EQ(colConceptID, conceptID),
		)).
		OrderBy(entsql.Desc(colRecordedAt), entsql.Desc(colID))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	return sel.Query()
}

// scanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type scanner interface {
	Scan(dest ...any) error
}

func scanState(row scanner) (mastery.State, error) {
	var (
		s                      mastery.State
		created, lastAttempted int64
	)
	err := row.Scan(
		&s.LearnerID,
		&s.ConceptID,
		&s.MasteryScore,
		&s.ConfidenceScore,
		&s.FrustrationScore,
		&s.Attempts,
		&created,
		&lastAttempted,
	)
	if err != nil {
		return mastery.State{}, err
	}
	s.CreatedAt = fromNanos(created)
	s.LastAttempted = fromNanos(lastAttempted)
	return s, nil
}

func scanAttempt(row scanner) (Attempt, error) {
	var (
		a          Attempt
		recordedAt int64
	)
	err := row.Scan(
		&a.ID,
		&a.LearnerID,
		&a.ConceptID,
		&a.Correct,
		&a.MasteryAfter,
		&a.FrustrationAfter,
		&recordedAt,
	)
	if err != nil {
		return Attempt{}, err
	}
	a.RecordedAt = fromNanos(recordedAt)
	return a, nil
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
