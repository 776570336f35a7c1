package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stemsi/classpulse-backend/internal/model"
)

// ScoringPolicy decides how a session kind scores answers.
type ScoringPolicy interface {
	Kind() model.SessionKind
	// Score returns nil when the answer carries no score.
	Score(q *model.Question, answer string) *int
	MaxScore(questions []model.Question) int
}

// PolicyFor returns the scoring policy of a session kind.
func PolicyFor(kind model.SessionKind) (ScoringPolicy, error) {
	switch kind {
	case model.SessionKindFeedback:
		return feedbackPolicy{}, nil
	case model.SessionKindQuiz:
		return quizPolicy{}, nil
	default:
		return nil, fmt.Errorf("no scoring policy for session kind %q", kind)
	}
}

type feedbackPolicy struct{}

func (feedbackPolicy) Kind() model.SessionKind            { return model.SessionKindFeedback }
func (feedbackPolicy) Score(*model.Question, string) *int { return nil }
func (feedbackPolicy) MaxScore([]model.Question) int      { return 0 }

type quizPolicy struct{}

func (quizPolicy) Kind() model.SessionKind { return model.SessionKindQuiz }

func (quizPolicy) Score(q *model.Question, answer string) *int {
	score := 0
	if Correct(q, answer) {
		score = q.Marks
	}
	return &score
}

func (quizPolicy) MaxScore(questions []model.Question) int {
	total := 0
	for i := range questions {
		total += questions[i].Marks
	}
	return total
}

// Correct reports whether answer matches the question's correct answer.
// Multiple-correct answers compare as option sets; one-word answers ignore case.
func Correct(q *model.Question, answer string) bool {
	answer = strings.TrimSpace(answer)
	want := strings.TrimSpace(q.CorrectAnswer)
	if want == "" || answer == "" {
		return false
	}

	switch q.Type {
	case model.QuestionTypeMultipleCorrect:
		return sameSet(splitOptions(answer), splitOptions(want))
	case model.QuestionTypeOneWord:
		return strings.EqualFold(answer, want)
	case model.QuestionTypeMCQ, model.QuestionTypeTrueFalse, model.QuestionTypeText:
		return answer == want
	default:
		// Ratings and "understood" checks are never graded.
		return false
	}
}

func splitOptions(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ',' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
