package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"entgo.io/ent/dialect"

	"github.com/abhisek/masteryforge/internal/mastery"
	"github.com/abhisek/masteryforge/internal/session"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
	q  queries

	// mu serializes read-modify-write transactions within the process;
	// busy_timeout covers other processes sharing the file.
	mu sync.Mutex
}

// OpenSQLite opens the SQLite database at dsn, applies the recommended
// pragmas and creates the schema if needed.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Pragmas are per connection; a single connection keeps them applied
	// and lets SQLite's own locking stay simple.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &SQLiteStore{db: db, q: queries{dialect: dialect.SQLite}}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// applyPragmas configures SQLite for single-host use.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS mastery_states (
		learner_id        TEXT    NOT NULL,
		concept_id        TEXT    NOT NULL,
		mastery_score     REAL    NOT NULL DEFAULT 0,
		confidence_score  REAL    NOT NULL DEFAULT 0,
		frustration_score REAL    NOT NULL DEFAULT 0,
		attempts          INTEGER NOT NULL DEFAULT 0,
		created_at        INTEGER NOT NULL,
		last_attempted    INTEGER NOT NULL,
		PRIMARY KEY (learner_id, concept_id)
	);

	CREATE TABLE IF NOT EXISTS attempts (
		id                TEXT    PRIMARY KEY,
		learner_id        TEXT    NOT NULL,
		concept_id        TEXT    NOT NULL,
		correct           INTEGER NOT NULL,
		mastery_after     REAL    NOT NULL,
		frustration_after REAL    NOT NULL,
		recorded_at       INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_attempts_learner_concept
		ON attempts(learner_id, concept_id, recorded_at DESC);

	CREATE TABLE IF NOT EXISTS learning_sessions (
		id               TEXT    PRIMARY KEY,
		learner_id       TEXT    NOT NULL,
		start_time       INTEGER NOT NULL,
		end_time         INTEGER NOT NULL DEFAULT 0,
		concepts_covered TEXT    NOT NULL DEFAULT '[]',
		total_questions  INTEGER NOT NULL DEFAULT 0,
		total_correct    INTEGER NOT NULL DEFAULT 0,
		average_score    REAL    NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_learner
		ON learning_sessions(learner_id, start_time DESC);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// DB returns the underlying *sql.DB for raw queries.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the stored state, or nil.
func (s *SQLiteStore) Get(ctx context.Context, learnerID, conceptID string) (*mastery.State, error) {
	return s.get(ctx, s.db, learnerID, conceptID)
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) get(ctx context.Context, db queryRower, learnerID, conceptID string) (*mastery.State, error) {
	query, args := s.q.selectState(learnerID, conceptID)
	st, err := scanState(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query mastery state: %w", err)
	}
	return &st, nil
}

// GetAll returns every state of the learner keyed by concept id.
func (s *SQLiteStore) GetAll(ctx context.Context, learnerID string) (map[string]mastery.State, error) {
	query, args := s.q.selectStates(learnerID)
	rows, err := s.db.QueryContext(ctx, query, args...)
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
func (s *SQLiteStore) Put(ctx context.Context, state mastery.State) error {
	query, args := s.q.upsertState(state)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save mastery state: %w", err)
	}
	return nil
}

// Update runs fn inside a transaction, serialized by a process mutex.
func (s *SQLiteStore) Update(ctx context.Context, key mastery.Key, fn UpdateFunc) (mastery.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mastery.State{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	prev, err := s.get(ctx, tx, key.LearnerID, key.ConceptID)
	if err != nil {
		return mastery.State{}, err
	}

	next, err := fn(prev)
	if err != nil {
		return mastery.State{}, err
	}
	next.LearnerID, next.ConceptID = key.LearnerID, key.ConceptID

	query, args := s.q.upsertState(next)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return mastery.State{}, fmt.Errorf("save mastery state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return mastery.State{}, fmt.Errorf("commit transaction: %w", err)
	}
	return next, nil
}

// AppendAttempt inserts a, filling in its ID and timestamp when unset.
func (s *SQLiteStore) AppendAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	a = withAttemptDefaults(a)
	query, args := s.q.insertAttempt(a)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return Attempt{}, fmt.Errorf("save attempt: %w", err)
	}
	return a, nil
}

// Attempts returns the latest attempts, newest first.
func (s *SQLiteStore) Attempts(ctx context.Context, learnerID, conceptID string, limit int) ([]Attempt, error) {
	query, args := s.q.selectAttempts(learnerID, conceptID, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
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

// UpdateSessions runs fn against the learner's open session inside a
// transaction and upserts what it returns.
func (s *SQLiteStore) UpdateSessions(ctx context.Context, learnerID string, fn session.Mutator) ([]session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var open *session.Session
	query, args := s.q.selectOpenSession(learnerID)
	cur, err := scanSession(tx.QueryRowContext(ctx, query, args...))
	switch {
	case err == nil:
		open = &cur
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("query open session: %w", err)
	}

	out, err := fn(open)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].LearnerID = learnerID
		query, args, err := s.q.upsertSession(out[i])
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return out, nil
}

// Sessions returns the learner's sessions, newest first.
func (s *SQLiteStore) Sessions(ctx context.Context, learnerID string, limit int) ([]session.Session, error) {
	query, args := s.q.selectSessions(learnerID, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
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

// DefaultDBPath resolves the database file path in priority order:
// 1. MASTERYFORGE_DB environment variable
// 2. $XDG_DATA_HOME/masteryforge/masteryforge.db
// 3. ~/.local/share/masteryforge/masteryforge.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("MASTERYFORGE_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "masteryforge", "masteryforge.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
