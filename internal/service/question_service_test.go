package service_test

import (
	"context"
	"testing"

	"github.com/stemsi/classpulse-backend/internal/model"
	"github.com/stemsi/classpulse-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionService_Add(t *testing.T) {
	e := newEnv(t)

	q := e.addQuestion(t, model.AddQuestionRequest{
		Kind:         "QUIZ",
		QuestionText: "  Is TCP connection oriented?  ",
		Type:         "true-false",
		// Options default to True/False.
		CorrectAnswer: "True",
		Marks:         1,
	})
	assert.Equal(t, model.QuestionTypeTrueFalse, q.Type)
	assert.Equal(t, []string{"True", "False"}, q.Options)
	assert.Equal(t, "Is TCP connection oriented?", q.QuestionText)
	assert.Equal(t, teacherID, q.TeacherID)

	fb := e.addQuestion(t, model.AddQuestionRequest{
		Kind:          "FEEDBACK",
		QuestionText:  "Favourite topic",
		Type:          "multiple_choice",
		Options:       []string{" CIDR ", "VLSM"},
		CorrectAnswer: "CIDR",
		Marks:         5,
	})
	assert.Equal(t, model.QuestionTypeMCQ, fb.Type)
	assert.Equal(t, []string{"CIDR", "VLSM"}, fb.Options)
	// Feedback questions are never graded.
	assert.Empty(t, fb.CorrectAnswer)
	assert.Zero(t, fb.Marks)
}

func TestQuestionService_AddRejectsInvalid(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name string
		req  model.AddQuestionRequest
	}{
		{"unknown type", model.AddQuestionRequest{Kind: "QUIZ", QuestionText: "x", Type: "ESSAY", CorrectAnswer: "y", Marks: 1}},
		{"choice without options", model.AddQuestionRequest{Kind: "FEEDBACK", QuestionText: "x", Type: "MCQ", Options: []string{"only"}}},
		{"quiz without answer", model.AddQuestionRequest{Kind: "QUIZ", QuestionText: "x", Type: "ONE_WORD", Marks: 1}},
		{"quiz without marks", model.AddQuestionRequest{Kind: "QUIZ", QuestionText: "x", Type: "ONE_WORD", CorrectAnswer: "y"}},
		{"answer not an option", model.AddQuestionRequest{Kind: "QUIZ", QuestionText: "x", Type: "MCQ", Options: []string{"a", "b"}, CorrectAnswer: "c", Marks: 1}},
		{"options on text", model.AddQuestionRequest{Kind: "FEEDBACK", QuestionText: "x", Type: "TEXT", Options: []string{"a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.questions.Add(context.Background(), teacherID, &tt.req)
			assert.ErrorIs(t, err, service.ErrInvalidQuestion)
		})
	}
}

func TestQuestionService_List(t *testing.T) {
	e := newEnv(t)
	e.addQuestion(t, model.AddQuestionRequest{Kind: "FEEDBACK", QuestionText: "Clear?", Type: "UNDERSTOOD"})
	e.addQuestion(t, model.AddQuestionRequest{Kind: "QUIZ", QuestionText: "x", Type: "ONE_WORD", CorrectAnswer: "y", Marks: 1})

	all, err := e.questions.List(context.Background(), teacherID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	quiz, err := e.questions.List(context.Background(), teacherID, model.SessionKindQuiz)
	require.NoError(t, err)
	require.Len(t, quiz, 1)
	assert.Equal(t, model.SessionKindQuiz, quiz[0].Kind)

	none, err := e.questions.List(context.Background(), "t-2", "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = e.questions.List(context.Background(), teacherID, "POLL")
	assert.ErrorIs(t, err, service.ErrInvalidQuestion)
}
