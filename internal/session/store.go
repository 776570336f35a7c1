// Package session holds the participation state machine shared by feedback
// sessions and quizzes: join-by-code, the countdown, and at-most-once
// submission. Persistence is reached only through Store.
package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/stemsi/classpulse-backend/internal/model"
)

// Store is the persistence boundary the state machine depends on.
//
// Lookups return (nil, nil) when the record does not exist. WriteResponses
// is all-or-nothing and claims the student's submission: when the student
// already has one recorded for the session it writes nothing and returns
// ErrSubmissionExists. HasSubmitted is only a fast path; the claim made by
// WriteResponses is what keeps concurrent submits from both landing.
type Store interface {
	GetSessionByCode(ctx context.Context, code string) (*model.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*model.Session, error)
	// GetQuestions returns the questions in the order of ids. Unknown IDs are
	// omitted.
	GetQuestions(ctx context.Context, ids []uuid.UUID) ([]model.Question, error)
	HasSubmitted(ctx context.Context, sessionID uuid.UUID, studentID string) (bool, error)
	WriteResponses(ctx context.Context, responses []model.Response) error
	IncrementResponseCount(ctx context.Context, sessionID uuid.UUID) error
}

// ErrSubmissionExists is returned by Store.WriteResponses when another
// submission for the same student and session was recorded first.
var ErrSubmissionExists = errors.New("submission already recorded")
