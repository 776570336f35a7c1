package model

import (
	"time"

	"github.com/google/uuid"
)

// Response is one student's answer to one question of a session.
// At most one exists per (SessionID, StudentID, QuestionID).
type Response struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"session_id"`
	StudentID   string    `json:"student_id"`
	QuestionID  uuid.UUID `json:"question_id"`
	Answer      string    `json:"answer"`
	SubmittedAt time.Time `json:"submitted_at"`
	Score       *int      `json:"score,omitempty"`
}

// responseNamespace seeds deterministic response IDs.
var responseNamespace = uuid.MustParse("7d0c1f9e-3b8a-4e59-9a61-0f2f5c1b8e44")

// ResponseID derives the identity of a response from its natural key, so a
// retried write of the same answer lands on the same row.
func ResponseID(sessionID uuid.UUID, studentID string, questionID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(responseNamespace, []byte(sessionID.String()+"/"+studentID+"/"+questionID.String()))
}

// SubmitAnswersRequest is the payload for submitting a participation.
// Client submits never get the expiry grace window.
type SubmitAnswersRequest struct {
	Answers map[string]string `json:"answers" binding:"required,max=200"`
}

// ResponseCountJob is queued for every accepted submission and folded into
// sessions.response_count by the background worker.
type ResponseCountJob struct {
	SessionID uuid.UUID `json:"session_id"`
	Delta     int       `json:"delta"`
}
