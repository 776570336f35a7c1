package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/classpulse-backend/internal/config"
)

// draftTTL bounds how long an abandoned attempt's answers linger.
const draftTTL = 24 * time.Hour

// DraftRepository keeps in-progress answers in a Redis hash per student, so a
// reconnecting student picks up where they left off.
type DraftRepository struct {
	rdb *redis.Client
}

// NewDraftRepository creates a new DraftRepository.
func NewDraftRepository(rdb *redis.Client) *DraftRepository {
	return &DraftRepository{rdb: rdb}
}

// SaveDraft records one answer.
func (r *DraftRepository) SaveDraft(ctx context.Context, sessionID uuid.UUID, studentID, questionID, answer string) error {
	key := config.CacheKey.StudentDraftsKey(sessionID.String(), studentID)
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, questionID, answer)
	pipe.Expire(ctx, key, draftTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// LoadDrafts returns every saved answer, keyed by question ID.
func (r *DraftRepository) LoadDrafts(ctx context.Context, sessionID uuid.UUID, studentID string) (map[string]string, error) {
	return r.rdb.HGetAll(ctx, config.CacheKey.StudentDraftsKey(sessionID.String(), studentID)).Result()
}

// ClearDrafts drops the student's saved answers.
func (r *DraftRepository) ClearDrafts(ctx context.Context, sessionID uuid.UUID, studentID string) error {
	return r.rdb.Del(ctx, config.CacheKey.StudentDraftsKey(sessionID.String(), studentID)).Err()
}
