package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/model"
)

// ErrInvalidQuestion wraps question rules that binding tags cannot express.
var ErrInvalidQuestion = errors.New("invalid question")

// QuestionService manages a teacher's question bank.
type QuestionService struct {
	questions QuestionRepository
	log       zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questions QuestionRepository, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		questions: questions,
		log:       log.With().Str("component", "question_service").Logger(),
	}
}

// Add validates and stores a new question.
func (s *QuestionService) Add(ctx context.Context, teacherID string, req *model.AddQuestionRequest) (*model.Question, error) {
	qType, err := model.ParseQuestionType(req.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
	}

	options := make([]string, 0, len(req.Options))
	for _, o := range req.Options {
		options = append(options, strings.TrimSpace(o))
	}
	if qType == model.QuestionTypeTrueFalse && len(options) == 0 {
		options = []string{"True", "False"}
	}

	q := &model.Question{
		TeacherID:     teacherID,
		Kind:          model.SessionKind(req.Kind),
		QuestionText:  strings.TrimSpace(req.QuestionText),
		Type:          qType,
		Options:       options,
		CorrectAnswer: strings.TrimSpace(req.CorrectAnswer),
		Marks:         req.Marks,
		IsRequired:    req.IsRequired,
	}
	if q.Kind == model.SessionKindFeedback {
		q.CorrectAnswer = ""
		q.Marks = 0
	}
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
	}

	if err := s.questions.CreateQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}

	s.log.Info().
		Str("question_id", q.ID.String()).
		Str("teacher_id", teacherID).
		Str("type", string(q.Type)).
		Msg("Question added")
	return q, nil
}

// List returns the teacher's questions, optionally filtered by kind.
func (s *QuestionService) List(ctx context.Context, teacherID string, kind model.SessionKind) ([]model.Question, error) {
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidQuestion, kind)
	}
	questions, err := s.questions.ListQuestionsByTeacher(ctx, teacherID, kind)
	if err != nil {
		return nil, err
	}
	if questions == nil {
		questions = []model.Question{}
	}
	return questions, nil
}
