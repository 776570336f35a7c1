package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionKind tells feedback sessions and quizzes apart. Both share the same
// join/timer/submit lifecycle and differ only in how answers are scored.
type SessionKind string

const (
	SessionKindFeedback SessionKind = "FEEDBACK"
	SessionKindQuiz     SessionKind = "QUIZ"
)

// Valid reports whether k is a known session kind.
func (k SessionKind) Valid() bool {
	return k == SessionKindFeedback || k == SessionKindQuiz
}

// SessionStatus enumerates the possible states of a session.
type SessionStatus string

const (
	SessionStatusDraft  SessionStatus = "DRAFT"
	SessionStatusActive SessionStatus = "ACTIVE"
	SessionStatusEnded  SessionStatus = "ENDED"
)

// CanTransitionTo reports whether s may move to next. Status only ever moves
// forward: DRAFT -> ACTIVE -> ENDED.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionStatusDraft:
		return next == SessionStatusActive
	case SessionStatusActive:
		return next == SessionStatusEnded
	default:
		return false
	}
}

// Joinable reports whether students may attach to a session in this status.
func (s SessionStatus) Joinable() bool {
	return s == SessionStatusDraft || s == SessionStatusActive
}

// Session represents a scheduled feedback or quiz activity.
type Session struct {
	ID              uuid.UUID     `json:"id"`
	Code            string        `json:"code"`
	Kind            SessionKind   `json:"kind"`
	Title           string        `json:"title"`
	Status          SessionStatus `json:"status"`
	StartTime       *time.Time    `json:"start_time,omitempty"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	DurationSeconds int           `json:"duration_seconds"`
	TeacherID       string        `json:"teacher_id"`
	Section         string        `json:"section"`
	QuestionIDs     []uuid.UUID   `json:"question_ids"`
	ResponseCount   int           `json:"response_count"`
	CreatedAt       time.Time     `json:"created_at"`
}

// CreateSessionRequest is the payload for creating a new draft session.
type CreateSessionRequest struct {
	Title           string      `json:"title" binding:"required,min=3,max=255"`
	Kind            string      `json:"kind" binding:"required,oneof=FEEDBACK QUIZ"`
	Section         string      `json:"section" binding:"omitempty,max=50"`
	DurationSeconds int         `json:"duration_seconds" binding:"required,min=10,max=28800"`
	QuestionIDs     []uuid.UUID `json:"question_ids" binding:"required,min=1,max=200"`
}

// JoinSessionRequest is the payload for a student joining by code.
type JoinSessionRequest struct {
	Code string `json:"code" binding:"required,joincode"`
}
