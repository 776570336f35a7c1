package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/classpulse-backend/internal/model"
)

// SessionRepository is the session persistence the services need. Both the
// PostgreSQL repository and the in-memory store satisfy it.
type SessionRepository interface {
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]model.Session, error)
	Start(ctx context.Context, id uuid.UUID, start, end time.Time) (bool, error)
	End(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ListExpired(ctx context.Context, now time.Time) ([]model.Session, error)
}

// QuestionRepository is the question bank.
type QuestionRepository interface {
	CreateQuestion(ctx context.Context, q *model.Question) error
	ListQuestionsByTeacher(ctx context.Context, teacherID string, kind model.SessionKind) ([]model.Question, error)
	GetQuestions(ctx context.Context, ids []uuid.UUID) ([]model.Question, error)
}

// ResponseRepository reads recorded responses for results.
type ResponseRepository interface {
	ListResponses(ctx context.Context, sessionID uuid.UUID) ([]model.Response, error)
}

// SessionCache keeps the join-by-code cache in step with status changes.
type SessionCache interface {
	Warm(ctx context.Context, s *model.Session) error
	Evict(ctx context.Context, s *model.Session) error
}

// DraftStore holds autosaved answers of in-progress attempts.
type DraftStore interface {
	SaveDraft(ctx context.Context, sessionID uuid.UUID, studentID, questionID, answer string) error
	LoadDrafts(ctx context.Context, sessionID uuid.UUID, studentID string) (map[string]string, error)
	ClearDrafts(ctx context.Context, sessionID uuid.UUID, studentID string) error
}

// EventBus carries live monitor events.
type EventBus interface {
	Publish(ctx context.Context, ev model.MonitorEvent) error
	Subscribe(ctx context.Context, sessionID uuid.UUID) (<-chan []byte, func(), error)
}
