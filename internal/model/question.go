package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QuestionType is the closed set of question variants.
type QuestionType string

const (
	QuestionTypeRating          QuestionType = "RATING"
	QuestionTypeScale           QuestionType = "SCALE"
	QuestionTypeMCQ             QuestionType = "MCQ"
	QuestionTypeTrueFalse       QuestionType = "TRUE_FALSE"
	QuestionTypeMultipleCorrect QuestionType = "MULTIPLE_CORRECT"
	QuestionTypeOneWord         QuestionType = "ONE_WORD"
	QuestionTypeText            QuestionType = "TEXT"
	QuestionTypeUnderstood      QuestionType = "UNDERSTOOD"
)

var questionTypes = []QuestionType{
	QuestionTypeRating,
	QuestionTypeScale,
	QuestionTypeMCQ,
	QuestionTypeTrueFalse,
	QuestionTypeMultipleCorrect,
	QuestionTypeOneWord,
	QuestionTypeText,
	QuestionTypeUnderstood,
}

// ParseQuestionType maps a stored or client-supplied type name onto the enum.
// Legacy lowercase spellings ("scale", "mcq", "understood", "true-false") are
// accepted.
func ParseQuestionType(raw string) (QuestionType, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	switch norm {
	case "MULTIPLE_CHOICE":
		return QuestionTypeMCQ, nil
	case "FREE_TEXT":
		return QuestionTypeText, nil
	}
	for _, t := range questionTypes {
		if string(t) == norm {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown question type %q", raw)
}

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	for _, known := range questionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsChoice reports whether answers are picked from Options.
func (t QuestionType) IsChoice() bool {
	switch t {
	case QuestionTypeMCQ, QuestionTypeTrueFalse, QuestionTypeMultipleCorrect:
		return true
	}
	return false
}

// IsRated reports whether answers are numeric ratings.
func (t QuestionType) IsRated() bool {
	return t == QuestionTypeRating || t == QuestionTypeScale
}

// Question is a single entry of a teacher's question bank.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	TeacherID     string       `json:"teacher_id"`
	Kind          SessionKind  `json:"kind"`
	QuestionText  string       `json:"question_text"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Marks         int          `json:"marks,omitempty"`
	IsRequired    bool         `json:"is_required"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Validate checks the cross-field rules that binding tags cannot express.
func (q *Question) Validate() error {
	if !q.Kind.Valid() {
		return fmt.Errorf("unknown session kind %q", q.Kind)
	}
	if !q.Type.Valid() {
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	if q.Type.IsChoice() && len(q.Options) < 2 {
		return errors.New("choice questions need at least two options")
	}
	if !q.Type.IsChoice() && q.Type != QuestionTypeRating && q.Type != QuestionTypeScale && len(q.Options) > 0 {
		return errors.New("options are only allowed on choice and rating questions")
	}
	if q.Kind == SessionKindQuiz {
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return errors.New("quiz questions need a correct answer")
		}
		if q.Marks < 1 {
			return errors.New("quiz questions need at least one mark")
		}
		if q.Type == QuestionTypeMCQ || q.Type == QuestionTypeTrueFalse {
			if !containsOption(q.Options, q.CorrectAnswer) {
				return errors.New("correct answer must be one of the options")
			}
		}
	}
	return nil
}

// ForStudent strips grading fields from the question.
func (q *Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		Type:         q.Type,
		Options:      q.Options,
		Marks:        q.Marks,
		IsRequired:   q.IsRequired,
	}
}

func containsOption(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID    `json:"id"`
	QuestionText string       `json:"question_text"`
	Type         QuestionType `json:"type"`
	Options      []string     `json:"options"`
	Marks        int          `json:"marks,omitempty"`
	IsRequired   bool         `json:"is_required"`
}

// AddQuestionRequest is the payload for adding a question to the bank.
type AddQuestionRequest struct {
	Kind          string   `json:"kind" binding:"required,oneof=FEEDBACK QUIZ"`
	QuestionText  string   `json:"question_text" binding:"required,min=1,max=2000"`
	Type          string   `json:"type" binding:"required,max=32"`
	Options       []string `json:"options" binding:"omitempty,max=10,dive,min=1,max=255"`
	CorrectAnswer string   `json:"correct_answer" binding:"omitempty,max=255"`
	Marks         int      `json:"marks" binding:"omitempty,min=0,max=100"`
	IsRequired    bool     `json:"is_required"`
}
