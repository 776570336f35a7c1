package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/config"
	"github.com/stemsi/classpulse-backend/internal/model"
	"github.com/stemsi/classpulse-backend/internal/session"
)

// Store backs the participation state machine with PostgreSQL, fronted by
// Redis for the hot paths: code lookups on join and the already-submitted
// check on every submit.
type Store struct {
	sessions  *SessionRepository
	questions *QuestionRepository
	responses *ResponseRepository
	rdb       *redis.Client
	codeTTL   time.Duration
	log       zerolog.Logger
}

// NewStore creates a Store over the given repositories.
func NewStore(
	sessions *SessionRepository,
	questions *QuestionRepository,
	responses *ResponseRepository,
	rdb *redis.Client,
	codeTTL time.Duration,
	log zerolog.Logger,
) *Store {
	return &Store{
		sessions:  sessions,
		questions: questions,
		responses: responses,
		rdb:       rdb,
		codeTTL:   codeTTL,
		log:       log.With().Str("component", "session_store").Logger(),
	}
}

// GetSessionByCode serves from cache and falls back to PostgreSQL, caching
// the result on a miss. Ended sessions leave a tombstone instead of a
// cached copy, so their lookups always reach PostgreSQL.
func (s *Store) GetSessionByCode(ctx context.Context, code string) (*model.Session, error) {
	if sess := s.cached(ctx, code); sess != nil {
		return sess, nil
	}

	sess, err := s.sessions.GetByCode(ctx, code)
	if err != nil || sess == nil {
		return sess, err
	}
	if err := s.Warm(ctx, sess); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Session cache write failed")
	}
	return sess, nil
}

// cached returns the cached session behind code, or nil on a miss, a
// tombstone or a cache failure.
func (s *Store) cached(ctx context.Context, code string) *model.Session {
	vals, err := s.rdb.HMGet(ctx, config.CacheKey.SessionCodeKey(code), "rank", "session").Result()
	if err != nil {
		s.log.Warn().Err(err).Msg("Session cache read failed, falling back to database")
		return nil
	}
	payload, _ := vals[1].(string)
	if payload == "" {
		return nil
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		s.log.Warn().Str("code", code).Msg("Discarding undecodable cached session")
		return nil
	}
	return &sess
}

// GetSession always reads PostgreSQL; the submit path needs the current end time.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return s.sessions.GetByID(ctx, id)
}

func (s *Store) GetQuestions(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	return s.questions.GetQuestions(ctx, ids)
}

// HasSubmitted checks the submitted-students set first. A miss is confirmed
// against PostgreSQL, which stays the source of truth.
func (s *Store) HasSubmitted(ctx context.Context, sessionID uuid.UUID, studentID string) (bool, error) {
	key := config.CacheKey.SessionSubmittedKey(sessionID.String())
	hit, err := s.rdb.SIsMember(ctx, key, studentID).Result()
	if err == nil && hit {
		return true, nil
	}
	if err != nil {
		s.log.Warn().Err(err).Msg("Submitted-set read failed, falling back to database")
	}

	submitted, err := s.responses.HasSubmitted(ctx, sessionID, studentID)
	if err != nil {
		return false, err
	}
	if submitted {
		s.markSubmitted(ctx, sessionID, studentID)
	}
	return submitted, nil
}

// WriteResponses persists the batch and then records the student in the
// submitted set. A lost claim still refreshes the set so later joins take
// the fast path.
func (s *Store) WriteResponses(ctx context.Context, responses []model.Response) error {
	if len(responses) == 0 {
		return nil
	}
	if err := s.responses.WriteBatch(ctx, responses); err != nil {
		if errors.Is(err, session.ErrSubmissionExists) {
			s.markSubmitted(ctx, responses[0].SessionID, responses[0].StudentID)
		}
		return err
	}
	s.markSubmitted(ctx, responses[0].SessionID, responses[0].StudentID)
	return nil
}

func (s *Store) markSubmitted(ctx context.Context, sessionID uuid.UUID, studentID string) {
	key := config.CacheKey.SessionSubmittedKey(sessionID.String())
	pipe := s.rdb.Pipeline()
	pipe.SAdd(ctx, key, studentID)
	pipe.Expire(ctx, key, s.codeTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Msg("Submitted-set write failed")
	}
}

// IncrementResponseCount queues the increment for the response count worker.
func (s *Store) IncrementResponseCount(ctx context.Context, sessionID uuid.UUID) error {
	payload, err := json.Marshal(model.ResponseCountJob{SessionID: sessionID, Delta: 1})
	if err != nil {
		return fmt.Errorf("marshal response count job: %w", err)
	}
	return s.rdb.RPush(ctx, config.WorkerKey.PersistResponseCountQueue, payload).Err()
}

// statusRank orders session statuses along their only allowed direction.
// The cache never accepts a write that ranks below what it already holds.
var statusRank = map[model.SessionStatus]int{
	model.SessionStatusDraft:  0,
	model.SessionStatusActive: 1,
	model.SessionStatusEnded:  2,
}

// KEYS[1] code key; ARGV rank, payload ("" for a tombstone), ttl in ms.
var cacheSessionScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'rank')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'rank', ARGV[1], 'session', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// Warm caches a joinable session under its code. A read that raced with a
// later transition cannot overwrite the newer entry.
func (s *Store) Warm(ctx context.Context, sess *model.Session) error {
	if !sess.Status.Joinable() {
		return s.Evict(ctx, sess)
	}
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.cacheSession(ctx, sess, string(payload))
}

// Evict replaces the cached session with a tombstone so the next join reads
// PostgreSQL.
func (s *Store) Evict(ctx context.Context, sess *model.Session) error {
	return s.cacheSession(ctx, sess, "")
}

func (s *Store) cacheSession(ctx context.Context, sess *model.Session, payload string) error {
	key := config.CacheKey.SessionCodeKey(sess.Code)
	return cacheSessionScript.Run(ctx, s.rdb, []string{key},
		statusRank[sess.Status], payload, s.codeTTL.Milliseconds()).Err()
}
