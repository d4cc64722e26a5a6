package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/abhisek/masteryforge/internal/mastery"
	"github.com/abhisek/masteryforge/internal/session"
)

// maxWatchRetries bounds optimistic-lock retries in RedisStore.Update and
// RedisStore.UpdateSessions. A lost race means another writer committed.
const maxWatchRetries = 128

// ErrConflict is returned when an update keeps losing optimistic-lock races.
var ErrConflict = errors.New("concurrent update conflict")

// RedisOptions configures a RedisStore connection.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key. Defaults to "masteryforge".
	Prefix string
}

// RedisStore implements Store on Redis. A learner's states live in one
// hash keyed by concept id, sessions in another keyed by session id.
// Attempts live in a sorted set per learner and concept, scored by
// RecordedAt in microseconds.
type RedisStore struct {
	rdb    *goredis.Client
	prefix string
}

// redisState is the JSON form of a mastery.State inside the hash.
type redisState struct {
	MasteryScore     float64 `json:"mastery"`
	ConfidenceScore  float64 `json:"confidence"`
	FrustrationScore float64 `json:"frustration"`
	Attempts         int     `json:"attempts"`
	CreatedAt        int64   `json:"created_at"`
	LastAttempted    int64   `json:"last_attempted"`
}

// redisAttempt is the sorted-set member for an Attempt. ID is the first
// field, so members with equal scores order by ID.
type redisAttempt struct {
	ID               string  `json:"id"`
	Correct          bool    `json:"correct"`
	MasteryAfter     float64 `json:"mastery_after"`
	FrustrationAfter float64 `json:"frustration_after"`
	RecordedAt       int64   `json:"recorded_at"`
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(rdb, opts.Prefix), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *goredis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "masteryforge"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) statesKey(learnerID string) string {
	return s.prefix + ":learner:" + learnerID + ":states"
}

func (s *RedisStore) attemptsKey(learnerID, conceptID string) string {
	return s.prefix + ":learner:" + learnerID + ":attempts:" + conceptID
}

func (s *RedisStore) sessionsKey(learnerID string) string {
	return s.prefix + ":learner:" + learnerID + ":sessions"
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Get returns the stored state, or nil.
func (s *RedisStore) Get(ctx context.Context, learnerID, conceptID string) (*mastery.State, error) {
	return s.get(ctx, s.rdb, learnerID, conceptID)
}

// hashGetter is satisfied by *goredis.Client and *goredis.Tx.
type hashGetter interface {
	HGet(ctx context.Context, key, field string) *goredis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, c hashGetter, learnerID, conceptID string) (*mastery.State, error) {
	raw, err := c.HGet(ctx, s.statesKey(learnerID), conceptID).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query mastery state: %w", err)
	}
	st, err := decodeState(learnerID, conceptID, raw)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// GetAll returns every state of the learner keyed by concept id.
func (s *RedisStore) GetAll(ctx context.Context, learnerID string) (map[string]mastery.State, error) {
	all, err := s.rdb.HGetAll(ctx, s.statesKey(learnerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("query mastery states: %w", err)
	}
	states := make(map[string]mastery.State, len(all))
	for conceptID, raw := range all {
		st, err := decodeState(learnerID, conceptID, raw)
		if err != nil {
			return nil, err
		}
		states[conceptID] = st
	}
	return states, nil
}

// Put writes state through Update, keeping an existing CreatedAt.
func (s *RedisStore) Put(ctx context.Context, state mastery.State) error {
	_, err := s.Update(ctx, state.Key(), func(prev *mastery.State) (mastery.State, error) {
		if prev != nil && !prev.CreatedAt.IsZero() {
			state.CreatedAt = prev.CreatedAt
		}
		return state, nil
	})
	return err
}

// Update uses WATCH on the learner's hash and retries when another
// client modifies it before EXEC.
func (s *RedisStore) Update(ctx context.Context, key mastery.Key, fn UpdateFunc) (mastery.State, error) {
	hashKey := s.statesKey(key.LearnerID)

	var next mastery.State
	txf := func(tx *goredis.Tx) error {
		prev, err := s.get(ctx, tx, key.LearnerID, key.ConceptID)
		if err != nil {
			return err
		}
		next, err = fn(prev)
		if err != nil {
			return err
		}
		next.LearnerID, next.ConceptID = key.LearnerID, key.ConceptID

		raw, err := encodeState(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, hashKey, key.ConceptID, raw)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.rdb.Watch(ctx, txf, hashKey)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return mastery.State{}, err
	}
	return mastery.State{}, fmt.Errorf("update %s/%s: %w", key.LearnerID, key.ConceptID, ErrConflict)
}

// AppendAttempt adds a to the attempt set, filling in its ID and
// timestamp when unset.
func (s *RedisStore) AppendAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	a = withAttemptDefaults(a)
	raw, err := json.Marshal(redisAttempt{
		ID:               a.ID,
		Correct:          a.Correct,
		MasteryAfter:     a.MasteryAfter,
		FrustrationAfter: a.FrustrationAfter,
		RecordedAt:       toNanos(a.RecordedAt),
	})
	if err != nil {
		return Attempt{}, fmt.Errorf("encode attempt: %w", err)
	}
	member := goredis.Z{Score: float64(a.RecordedAt.UnixMicro()), Member: string(raw)}
	if err := s.rdb.ZAdd(ctx, s.attemptsKey(a.LearnerID, a.ConceptID), member).Err(); err != nil {
		return Attempt{}, fmt.Errorf("save attempt: %w", err)
	}
	return a, nil
}

// Attempts reads the newest limit members of the attempt set. Attempts
// recorded within the same microsecond order by ID.
func (s *RedisStore) Attempts(ctx context.Context, learnerID, conceptID string, limit int) ([]Attempt, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	items, err := s.rdb.ZRevRange(ctx, s.attemptsKey(learnerID, conceptID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}

	out := make([]Attempt, 0, len(items))
	for _, raw := range items {
		var rec redisAttempt
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode attempt: %w", err)
		}
		out = append(out, Attempt{
			ID:               rec.ID,
			LearnerID:        learnerID,
			ConceptID:        conceptID,
			Correct:          rec.Correct,
			MasteryAfter:     rec.MasteryAfter,
			FrustrationAfter: rec.FrustrationAfter,
			RecordedAt:       fromNanos(rec.RecordedAt),
		})
	}
	return out, nil
}

// redisSession is the JSON form of a session.Session inside the hash.
type redisSession struct {
	StartTime       int64    `json:"start_time"`
	EndTime         int64    `json:"end_time"`
	ConceptsCovered []string `json:"concepts_covered"`
	TotalQuestions  int      `json:"total_questions"`
	TotalCorrect    int      `json:"total_correct"`
	AverageScore    float64  `json:"average_score"`
}

// UpdateSessions watches the learner's session hash and retries when
// another client modifies it before EXEC.
func (s *RedisStore) UpdateSessions(ctx context.Context, learnerID string, fn session.Mutator) ([]session.Session, error) {
	hashKey := s.sessionsKey(learnerID)

	var out []session.Session
	txf := func(tx *goredis.Tx) error {
		all, err := tx.HGetAll(ctx, hashKey).Result()
		if err != nil {
			return fmt.Errorf("query sessions: %w", err)
		}
		list, err := decodeSessions(learnerID, all)
		if err != nil {
			return err
		}

		out, err = fn(newestOpen(list))
		if err != nil {
			return err
		}
		fields := make([]any, 0, 2*len(out))
		for i := range out {
			out[i].LearnerID = learnerID
			raw, err := json.Marshal(redisSession{
				StartTime:       toNanos(out[i].StartTime),
				EndTime:         toNanos(out[i].EndTime),
				ConceptsCovered: out[i].ConceptsCovered,
				TotalQuestions:  out[i].TotalQuestions,
				TotalCorrect:    out[i].TotalCorrect,
				AverageScore:    out[i].AverageScore,
			})
			if err != nil {
				return fmt.Errorf("encode session: %w", err)
			}
			fields = append(fields, out[i].ID, string(raw))
		}
		if len(fields) == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, hashKey, fields...)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.rdb.Watch(ctx, txf, hashKey)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("update sessions of %s: %w", learnerID, ErrConflict)
}

// Sessions returns the learner's sessions, newest first.
func (s *RedisStore) Sessions(ctx context.Context, learnerID string, limit int) ([]session.Session, error) {
	all, err := s.rdb.HGetAll(ctx, s.sessionsKey(learnerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	list, err := decodeSessions(learnerID, all)
	if err != nil {
		return nil, err
	}
	sortSessions(list)
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func decodeSessions(learnerID string, all map[string]string) ([]session.Session, error) {
	list := make([]session.Session, 0, len(all))
	for id, raw := range all {
		var rec redisSession
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", id, err)
		}
		list = append(list, session.Session{
			ID:              id,
			LearnerID:       learnerID,
			StartTime:       fromNanos(rec.StartTime),
			EndTime:         fromNanos(rec.EndTime),
			ConceptsCovered: rec.ConceptsCovered,
			TotalQuestions:  rec.TotalQuestions,
			TotalCorrect:    rec.TotalCorrect,
			AverageScore:    rec.AverageScore,
		})
	}
	return list, nil
}

func encodeState(st mastery.State) (string, error) {
	raw, err := json.Marshal(redisState{
		MasteryScore:     st.MasteryScore,
		ConfidenceScore:  st.ConfidenceScore,
		FrustrationScore: st.FrustrationScore,
		Attempts:         st.Attempts,
		CreatedAt:        toNanos(st.CreatedAt),
		LastAttempted:    toNanos(st.LastAttempted),
	})
	if err != nil {
		return "", fmt.Errorf("encode mastery state: %w", err)
	}
	return string(raw), nil
}

func decodeState(learnerID, conceptID, raw string) (mastery.State, error) {
	var rec redisState
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return mastery.State{}, fmt.Errorf("decode mastery state %s/%s: %w", learnerID, conceptID, err)
	}
	return mastery.State{
		LearnerID:        learnerID,
		ConceptID:        conceptID,
		MasteryScore:     rec.MasteryScore,
		ConfidenceScore:  rec.ConfidenceScore,
		FrustrationScore: rec.FrustrationScore,
		Attempts:         rec.Attempts,
		CreatedAt:        fromNanos(rec.CreatedAt),
		LastAttempted:    fromNanos(rec.LastAttempted),
	}, nil
}
