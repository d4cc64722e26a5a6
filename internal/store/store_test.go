package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/masteryforge/internal/mastery"
	"github.com/abhisek/masteryforge/internal/session"
)

// postgresURLEnv points the shared cases at a disposable PostgreSQL
// database. The cases truncate every table before running.
const postgresURLEnv = "MASTERYFORGE_TEST_POSTGRES_URL"

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func openTestRedis(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStore(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() { s.Close() })
	return s
}

func openTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv(postgresURLEnv)
	if url == "" {
		t.Skipf("%s not set", postgresURLEnv)
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	_, err = s.pool.Exec(ctx, "TRUNCATE mastery_states, attempts, learning_sessions")
	require.NoError(t, err)
	return s
}

// backends runs fn against every backend. Redis runs in-process on
// miniredis; PostgreSQL runs only when postgresURLEnv is set.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore()
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		fn(t, openTestSQLite(t))
	})
	t.Run("redis", func(t *testing.T) {
		fn(t, openTestRedis(t))
	})
	t.Run("postgres", func(t *testing.T) {
		fn(t, openTestPostgres(t))
	})
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleState(learner, concept string) mastery.State {
	return mastery.State{
		LearnerID:        learner,
		ConceptID:        concept,
		MasteryScore:     0.51,
		ConfidenceScore:  0.1,
		FrustrationScore: 0.25,
		Attempts:         3,
		CreatedAt:        t0,
		LastAttempted:    t0.Add(time.Minute),
	}
}

func TestGet_Absent(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		st, err := s.Get(context.Background(), "ana", "fractions")
		require.NoError(t, err)
		assert.Nil(t, st)

		all, err := s.GetAll(context.Background(), "ana")
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestPutGet(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		want := sampleState("ana", "fractions")
		require.NoError(t, s.Put(ctx, want))

		got, err := s.Get(ctx, "ana", "fractions")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.MasteryScore, got.MasteryScore)
		assert.Equal(t, want.ConfidenceScore, got.ConfidenceScore)
		assert.Equal(t, want.FrustrationScore, got.FrustrationScore)
		assert.Equal(t, want.Attempts, got.Attempts)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
		assert.True(t, want.LastAttempted.Equal(got.LastAttempted))
	})
}

func TestPut_KeepsCreatedAt(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		first := sampleState("ana", "fractions")
		require.NoError(t, s.Put(ctx, first))

		second := first
		second.CreatedAt = t0.Add(time.Hour)
		second.Attempts = 4
		require.NoError(t, s.Put(ctx, second))

		got, err := s.Get(ctx, "ana", "fractions")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 4, got.Attempts)
		assert.True(t, t0.Equal(got.CreatedAt))
	})
}

func TestGetAll_ScopedToLearner(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, sampleState("ana", "fractions")))
		require.NoError(t, s.Put(ctx, sampleState("ana", "decimals")))
		require.NoError(t, s.Put(ctx, sampleState("ben", "fractions")))

		all, err := s.GetAll(ctx, "ana")
		require.NoError(t, err)
		assert.Len(t, all, 2)
		assert.Contains(t, all, "fractions")
		assert.Contains(t, all, "decimals")
		assert.Equal(t, "ana", all["decimals"].LearnerID)
	})
}

func TestUpdate_CreatesThenModifies(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		key := mastery.Key{LearnerID: "ana", ConceptID: "fractions"}

		var sawNil bool
		st, err := s.Update(ctx, key, func(prev *mastery.State) (mastery.State, error) {
			sawNil = prev == nil
			return mastery.State{Attempts: 1, CreatedAt: t0, LastAttempted: t0}, nil
		})
		require.NoError(t, err)
		assert.True(t, sawNil)
		assert.Equal(t, key, st.Key())

		st, err = s.Update(ctx, key, func(prev *mastery.State) (mastery.State, error) {
			require.NotNil(t, prev)
			next := *prev
			next.Attempts++
			return next, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, st.Attempts)
	})
}

func TestUpdate_CallbackErrorLeavesStateUntouched(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, sampleState("ana", "fractions")))

		boom := assert.AnError
		_, err := s.Update(ctx, mastery.Key{LearnerID: "ana", ConceptID: "fractions"},
			func(prev *mastery.State) (mastery.State, error) {
				return mastery.State{}, boom
			})
		assert.ErrorIs(t, err, boom)

		got, err := s.Get(ctx, "ana", "fractions")
		require.NoError(t, err)
		assert.Equal(t, 3, got.Attempts)
	})
}

func TestUpdate_ConcurrentIncrementsAreSerialized(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		key := mastery.Key{LearnerID: "ana", ConceptID: "fractions"}

		const workers = 8
		const perWorker = 10
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					_, err := s.Update(ctx, key, func(prev *mastery.State) (mastery.State, error) {
						next := mastery.State{CreatedAt: t0}
						if prev != nil {
							next = *prev
						}
						next.Attempts++
						return next, nil
					})
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		got, err := s.Get(ctx, "ana", "fractions")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, workers*perWorker, got.Attempts)
	})
}

func TestAttempts_NewestFirstWithLimit(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			a, err := s.AppendAttempt(ctx, Attempt{
				LearnerID:    "ana",
				ConceptID:    "fractions",
				Correct:      i%2 == 0,
				MasteryAfter: float64(i) / 10,
				RecordedAt:   t0.Add(time.Duration(i) * time.Second),
			})
			require.NoError(t, err)
			assert.Len(t, a.ID, 26, "ULID string length")
		}
		_, err := s.AppendAttempt(ctx, Attempt{LearnerID: "ana", ConceptID: "decimals", RecordedAt: t0})
		require.NoError(t, err)

		all, err := s.Attempts(ctx, "ana", "fractions", 0)
		require.NoError(t, err)
		require.Len(t, all, 5)
		assert.True(t, all[0].RecordedAt.Equal(t0.Add(4*time.Second)))
		assert.InDelta(t, 0.4, all[0].MasteryAfter, 1e-9)
		assert.True(t, all[0].Correct)
		assert.False(t, all[1].Correct)

		limited, err := s.Attempts(ctx, "ana", "fractions", 2)
		require.NoError(t, err)
		require.Len(t, limited, 2)
		assert.Equal(t, all[0].ID, limited[0].ID)
		assert.Equal(t, all[1].ID, limited[1].ID)
	})
}

func TestAppendAttempt_FillsDefaults(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		a, err := s.AppendAttempt(context.Background(), Attempt{LearnerID: "ana", ConceptID: "fractions"})
		require.NoError(t, err)
		assert.NotEmpty(t, a.ID)
		assert.False(t, a.RecordedAt.IsZero())
	})
}

func TestAttempts_SameInstantOrderByID(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var ids []string
		for i := 0; i < 3; i++ {
			a, err := s.AppendAttempt(ctx, Attempt{LearnerID: "ana", ConceptID: "fractions", RecordedAt: t0})
			require.NoError(t, err)
			ids = append(ids, a.ID)
		}

		got, err := s.Attempts(ctx, "ana", "fractions", 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.True(t, got[0].ID > got[1].ID && got[1].ID > got[2].ID, "ids descending")
		assert.ElementsMatch(t, ids, []string{got[0].ID, got[1].ID, got[2].ID})
	})
}

func recordQuiz(concept string, score float64, now time.Time) session.Mutator {
	return func(open *session.Session) ([]session.Session, error) {
		s := session.New("", now)
		if open != nil {
			s = *open
		}
		s.RecordQuiz(concept, score)
		return []session.Session{s}, nil
	}
}

func TestUpdateSessions_CreatesThenPassesOpenSession(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		first, err := s.UpdateSessions(ctx, "ana", recordQuiz("fractions", 100, t0))
		require.NoError(t, err)
		require.Len(t, first, 1)
		assert.Equal(t, "ana", first[0].LearnerID)

		var seen *session.Session
		_, err = s.UpdateSessions(ctx, "ana", func(open *session.Session) ([]session.Session, error) {
			seen = open
			return recordQuiz("decimals", 50, t0)(open)
		})
		require.NoError(t, err)
		require.NotNil(t, seen)
		assert.Equal(t, first[0].ID, seen.ID)

		got, err := s.Sessions(ctx, "ana", 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, first[0].ID, got[0].ID)
		assert.True(t, got[0].IsOpen())
		assert.True(t, t0.Equal(got[0].StartTime))
		assert.Equal(t, []string{"decimals", "fractions"}, got[0].ConceptsCovered)
		assert.Equal(t, 2, got[0].TotalQuestions)
		assert.Equal(t, 1, got[0].TotalCorrect)
		assert.InDelta(t, 75.0, got[0].AverageScore, 1e-9)

		other, err := s.Sessions(ctx, "ben", 0)
		require.NoError(t, err)
		assert.Empty(t, other)
	})
}

func TestUpdateSessions_RolloverKeepsHistory(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.UpdateSessions(ctx, "ana", recordQuiz("fractions", 100, t0))
		require.NoError(t, err)

		later := t0.Add(2 * time.Hour)
		_, err = s.UpdateSessions(ctx, "ana", func(open *session.Session) ([]session.Session, error) {
			require.NotNil(t, open)
			closed := *open
			closed.Close(later)
			next := session.New("ana", later)
			next.RecordQuiz("decimals", 0)
			return []session.Session{closed, next}, nil
		})
		require.NoError(t, err)

		var seen *session.Session
		_, err = s.UpdateSessions(ctx, "ana", func(open *session.Session) ([]session.Session, error) {
			seen = open
			return nil, nil
		})
		require.NoError(t, err)
		require.NotNil(t, seen)
		assert.True(t, later.Equal(seen.StartTime))

		all, err := s.Sessions(ctx, "ana", 0)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.True(t, all[0].IsOpen())
		assert.False(t, all[1].IsOpen())
		assert.True(t, later.Equal(all[1].EndTime))
		assert.Equal(t, []string{"fractions"}, all[1].ConceptsCovered)

		limited, err := s.Sessions(ctx, "ana", 1)
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, all[0].ID, limited[0].ID)
	})
}

func TestUpdateSessions_CallbackErrorSavesNothing(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		boom := errors.New("boom")
		_, err := s.UpdateSessions(ctx, "ana", func(*session.Session) ([]session.Session, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := s.Sessions(ctx, "ana", 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	_, err := s.Get(context.Background(), "ana", "fractions")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Put(context.Background(), sampleState("ana", "fractions")), ErrClosed)
}

func TestSQLite_PragmasApplied(t *testing.T) {
	db := openTestSQLite(t).DB()

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}
	for _, tt := range tests {
		var got string
		require.NoError(t, db.QueryRow("PRAGMA "+tt.pragma).Scan(&got), tt.pragma)
		assert.Equal(t, tt.want, got, tt.pragma)
	}
}

func TestSQLite_MigrationIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, sampleState("ana", "fractions")))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "ana", "fractions")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Attempts)
}

func TestDefaultDBPath(t *testing.T) {
	dir := t.TempDir()

	t.Run("env override", func(t *testing.T) {
		want := filepath.Join(dir, "custom", "x.db")
		t.Setenv("MASTERYFORGE_DB", want)
		got, err := DefaultDBPath()
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.DirExists(t, filepath.Join(dir, "custom"))
	})

	t.Run("xdg data home", func(t *testing.T) {
		t.Setenv("MASTERYFORGE_DB", "")
		t.Setenv("XDG_DATA_HOME", dir)
		got, err := DefaultDBPath()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "masteryforge", "masteryforge.db"), got)
	})
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Config{Driver: "SQLite", SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Driver: DriverPostgres})
	assert.ErrorContains(t, err, "postgres_url")

	_, err = Open(ctx, Config{Driver: DriverRedis})
	assert.ErrorContains(t, err, "redis_addr")

	_, err = Open(ctx, Config{Driver: "cassandra"})
	assert.ErrorContains(t, err, "unknown store driver")
}
