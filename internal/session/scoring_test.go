package session_test

import (
	"testing"

	"github.com/stemsi/classpulse-backend/internal/model"
	"github.com/stemsi/classpulse-backend/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrect(t *testing.T) {
	mcq := &model.Question{Type: model.QuestionTypeMCQ, CorrectAnswer: "Paris"}
	tf := &model.Question{Type: model.QuestionTypeTrueFalse, CorrectAnswer: "True"}
	multi := &model.Question{Type: model.QuestionTypeMultipleCorrect, CorrectAnswer: "a; c"}
	word := &model.Question{Type: model.QuestionTypeOneWord, CorrectAnswer: "Photosynthesis"}
	rating := &model.Question{Type: model.QuestionTypeRating, CorrectAnswer: "5"}
	blank := &model.Question{Type: model.QuestionTypeMCQ}

	tests := []struct {
		name   string
		q      *model.Question
		answer string
		want   bool
	}{
		{"mcq exact", mcq, "Paris", true},
		{"mcq trims", mcq, "  Paris ", true},
		{"mcq is case sensitive", mcq, "paris", false},
		{"true false", tf, "True", true},
		{"true false wrong", tf, "False", false},
		{"multiple any order", multi, "c,a", true},
		{"multiple subset", multi, "a", false},
		{"multiple superset", multi, "a;b;c", false},
		{"one word ignores case", word, "PHOTOSYNTHESIS", true},
		{"one word wrong", word, "respiration", false},
		{"rating never graded", rating, "5", false},
		{"no correct answer", blank, "x", false},
		{"empty answer", mcq, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, session.Correct(tt.q, tt.answer))
		})
	}
}

func TestPolicyFor(t *testing.T) {
	quiz, err := session.PolicyFor(model.SessionKindQuiz)
	require.NoError(t, err)
	feedback, err := session.PolicyFor(model.SessionKindFeedback)
	require.NoError(t, err)

	q := &model.Question{Type: model.QuestionTypeMCQ, CorrectAnswer: "4", Marks: 3}

	got := quiz.Score(q, "4")
	require.NotNil(t, got)
	assert.Equal(t, 3, *got)

	got = quiz.Score(q, "5")
	require.NotNil(t, got)
	assert.Zero(t, *got)

	assert.Nil(t, feedback.Score(q, "4"))
	assert.Equal(t, 5, quiz.MaxScore([]model.Question{{Marks: 2}, {Marks: 3}}))
	assert.Zero(t, feedback.MaxScore([]model.Question{{Marks: 2}}))

	_, err = session.PolicyFor("POLL")
	assert.Error(t, err)
}
