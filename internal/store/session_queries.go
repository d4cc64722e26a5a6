package store

import (
	"encoding/json"
	"fmt"
	"sort"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/masteryforge/internal/session"
)

const (
	tableSessions = "learning_sessions"

	colStartTime      = "start_time"
	colEndTime        = "end_time"
	colConcepts       = "concepts_covered"
	colTotalQuestions = "total_questions"
	colTotalCorrect   = "total_correct"
	colAverageScore   = "average_score"
)

var sessionColumns = []string{
	colID,
	colLearnerID,
	colStartTime,
	colEndTime,
	colConcepts,
	colTotalQuestions,
	colTotalCorrect,
	colAverageScore,
}

// selectOpenSession finds the learner's newest session with no end time.
func (q queries) selectOpenSession(learnerID string) (string, []any) {
	b := entsql.Dialect(q.dialect)
	return b.Select(sessionColumns...).
		From(b.Table(tableSessions)).
		Where(entsql.And(
			entsql.EQ(colLearnerID, learnerID),
			entsql.EQ(colEndTime, int64(0)),
		)).
		OrderBy(entsql.Desc(colStartTime), entsql.Desc(colID)).
		Limit(1).
		Query()
}

func (q queries) selectSessions(learnerID string, limit int) (string, []any) {
	b := entsql.Dialect(q.dialect)
	sel := b.Select(sessionColumns...).
		From(b.Table(tableSessions)).
		Where(entsql.EQ(colLearnerID, learnerID)).
		OrderBy(entsql.Desc(colStartTime), entsql.Desc(colID))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	return sel.Query()
}

func (q queries) upsertSession(s session.Session) (string, []any, error) {
	concepts, err := encodeConcepts(s.ConceptsCovered)
	if err != nil {
		return "", nil, err
	}
	query, args := entsql.Dialect(q.dialect).
		Insert(tableSessions).
		Columns(sessionColumns...).
		Values(
			s.ID,
			s.LearnerID,
			toNanos(s.StartTime),
			toNanos(s.EndTime),
			concepts,
			s.TotalQuestions,
			s.TotalCorrect,
			s.AverageScore,
		).
		OnConflict(
			entsql.ConflictColumns(colID),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded(colEndTime)
				u.SetExcluded(colConcepts)
				u.SetExcluded(colTotalQuestions)
				u.SetExcluded(colTotalCorrect)
				u.SetExcluded(colAverageScore)
			}),
		).
		Query()
	return query, args, nil
}

func scanSession(row scanner) (session.Session, error) {
	var (
		s          session.Session
		start, end int64
		concepts   string
	)
	err := row.Scan(
		&s.ID,
		&s.LearnerID,
		&start,
		&end,
		&concepts,
		&s.TotalQuestions,
		&s.TotalCorrect,
		&s.AverageScore,
	)
	if err != nil {
		return session.Session{}, err
	}
	s.StartTime = fromNanos(start)
	s.EndTime = fromNanos(end)
	if s.ConceptsCovered, err = decodeConcepts(concepts); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

func encodeConcepts(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode concepts covered: %w", err)
	}
	return string(raw), nil
}

func decodeConcepts(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode concepts covered: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

// sortSessions orders sessions newest first, as the SQL backends do.
func sortSessions(list []session.Session) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].StartTime.Equal(list[j].StartTime) {
			return list[i].StartTime.After(list[j].StartTime)
		}
		return list[i].ID > list[j].ID
	})
}

// newestOpen returns the newest open session in list, or nil.
func newestOpen(list []session.Session) *session.Session {
	var open *session.Session
	for i := range list {
		s := list[i]
		if !s.IsOpen() {
			continue
		}
		if open == nil || s.StartTime.After(open.StartTime) ||
			(s.StartTime.Equal(open.StartTime) && s.ID > open.ID) {
			open = &s
		}
	}
	return open
}
