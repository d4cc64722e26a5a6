package store

import (
	"context"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abhisek/masteryforge/internal/mastery"
	"github.com/abhisek/masteryforge/internal/session"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS mastery_states (
	learner_id        TEXT             NOT NULL,
	concept_id        TEXT             NOT NULL,
	mastery_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	frustration_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	attempts          BIGINT           NOT NULL DEFAULT 0,
	created_at        BIGINT           NOT NULL,
	last_attempted    BIGINT           NOT NULL,
	PRIMARY KEY (learner_id, concept_id)
);

CREATE TABLE IF NOT EXISTS attempts (
	id                TEXT             PRIMARY KEY,
	learner_id        TEXT             NOT NULL,
	concept_id        TEXT             NOT NULL,
	correct           BOOLEAN          NOT NULL,
	mastery_after     DOUBLE PRECISION NOT NULL,
	frustration_after DOUBLE PRECISION NOT NULL,
	recorded_at       BIGINT           NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attempts_learner_concept
	ON attempts (learner_id, concept_id, recorded_at DESC);

CREATE TABLE IF NOT EXISTS learning_sessions (
	id               TEXT             PRIMARY KEY,
	learner_id       TEXT             NOT NULL,
	start_time       BIGINT           NOT NULL,
	end_time         BIGINT           NOT NULL DEFAULT 0,
	concepts_covered TEXT             NOT NULL DEFAULT '[]',
	total_questions  BIGINT           NOT NULL DEFAULT 0,
	total_correct    BIGINT           NOT NULL DEFAULT 0,
	average_score    DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_learner
	ON learning_sessions (learner_id, start_time DESC);
`

// PostgresStore implements Store on PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    queries
}

// OpenPostgres connects to the database at url and creates the schema.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := NewPostgresStore(pool)
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewPostgresStore wraps an existing pool. The schema must already exist.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: queries{dialect: dialect.Postgres}}
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Get returns the stored state, or nil.
func (s *PostgresStore) Get(ctx context.Context, learnerID, conceptID string) (*mastery.State, error) {
	return s.get(ctx, s.pool, learnerID, conceptID)
}

// pgQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *PostgresStore) get(ctx context.Context, db pgQuerier, learnerID, conceptID string) (*mastery.State, error) {
	query, args := s.q.selectState(learnerID, conceptID)
	st, err := scanState(db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query mastery state: %w", err)
	}
	return &st, nil
}

// GetAll returns every state of the learner keyed by concept id.
func (s *PostgresStore) GetAll(ctx context.Context, learnerID string) (map[string]mastery.State, error) {
	query, args := s.q.selectStates(learnerID)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query mastery states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]mastery.State)
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mastery state: %w", err)
		}
		states[st.ConceptID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mastery states: %w", err)
	}
	return states, nil
}

// Put upserts state, keeping the CreatedAt of an existing row.
func (s *PostgresStore) Put(ctx context.Context, state mastery.State) error {
	query, args := s.q.upsertState(state)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("save mastery state: %w", err)
	}
	return nil
}

// Update holds a transaction-scoped advisory lock on the key, so the
// read-modify-write is serialized even when no row exists yet.
func (s *PostgresStore) Update(ctx context.Context, key mastery.Key, fn UpdateFunc) (mastery.State, error) {
	var next mastery.State
	err := s.withinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1::text || ':' || $2::text))`,
			key.LearnerID, key.ConceptID,
		); err != nil {
			return fmt.Errorf("lock mastery state: %w", err)
		}

		prev, err := s.get(ctx, tx, key.LearnerID, key.ConceptID)
		if err != nil {
			return err
		}
		next, err = fn(prev)
		if err != nil {
			return err
		}
		next.LearnerID, next.ConceptID = key.LearnerID, key.ConceptID

		query, args := s.q.upsertState(next)
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("save mastery state: %w", err)
		}
		return nil
	})
	if err != nil {
		return mastery.State{}, err
	}
	return next, nil
}

func (s *PostgresStore) withinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AppendAttempt inserts a, filling in its ID and timestamp when unset.
func (s *PostgresStore) AppendAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	a = withAttemptDefaults(a)
	query, args := s.q.insertAttempt(a)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return Attempt{}, fmt.Errorf("save attempt: %w", err)
	}
	return a, nil
}

// Attempts returns the latest attempts, newest first.
func (s *PostgresStore) Attempts(ctx context.Context, learnerID, conceptID string, limit int) ([]Attempt, error) {
	query, args := s.q.selectAttempts(learnerID, conceptID, limit)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

// UpdateSessions serializes on a per-learner advisory lock, so two
// writers cannot both open a session.
func (s *PostgresStore) UpdateSessions(ctx context.Context, learnerID string, fn session.Mutator) ([]session.Session, error) {
	var out []session.Session
	err := s.withinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1::text || ':sessions'))`,
			learnerID,
		); err != nil {
			return fmt.Errorf("lock sessions: %w", err)
		}

		var open *session.Session
		query, args := s.q.selectOpenSession(learnerID)
		cur, err := scanSession(tx.QueryRow(ctx, query, args...))
		switch {
		case err == nil:
			open = &cur
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("query open session: %w", err)
		}

		out, err = fn(open)
		if err != nil {
			return err
		}
		for i := range out {
			out[i].LearnerID = learnerID
			query, args, err := s.q.upsertSession(out[i])
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Sessions returns the learner's sessions, newest first.
func (s *PostgresStore) Sessions(ctx context.Context, learnerID string, limit int) ([]session.Session, error) {
	query, args := s.q.selectSessions(learnerID, limit)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}
