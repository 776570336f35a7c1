package model

import "github.com/google/uuid"

// QuestionResult aggregates all responses to one question of a session.
type QuestionResult struct {
	QuestionID    uuid.UUID      `json:"question_id"`
	QuestionText  string         `json:"question_text"`
	Type          QuestionType   `json:"type"`
	Responses     int            `json:"responses"`
	Distribution  map[string]int `json:"distribution"`
	AverageRating *float64       `json:"average_rating,omitempty"`
	CorrectCount  *int           `json:"correct_count,omitempty"`
}

// StudentResult is one student's total on a quiz.
type StudentResult struct {
	StudentID string `json:"student_id"`
	Score     int    `json:"score"`
	MaxScore  int    `json:"max_score"`
	Answered  int    `json:"answered"`
}

// SessionResults is the teacher-facing summary of a session.
type SessionResults struct {
	Session   Session          `json:"session"`
	Questions []QuestionResult `json:"questions"`
	Students  []StudentResult  `json:"students,omitempty"`
}
