package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/model"
	"github.com/stemsi/classpulse-backend/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGuard(f *fixture, store session.Store, opts ...session.GuardOption) *session.SubmissionGuard {
	if store == nil {
		store = f.store
	}
	return session.NewSubmissionGuard(store, f.clock, zerolog.Nop(), opts...)
}

func TestGuard_FeedbackSubmissionIsRecordedUnscored(t *testing.T) {
	f := newFixture(t)
	qs := f.feedbackQuestions(t)
	sess := f.session(t, "FDBK22", model.SessionKindFeedback, time.Minute, qs)

	receipt, err := newGuard(f, nil).Submit(context.Background(), session.SubmitRequest{
		SessionID: sess.ID,
		StudentID: "s-1",
		Answers:   answersFor(qs, "3", "  more examples  "),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, receipt.Responses)
	assert.Nil(t, receipt.Score)
	assert.Nil(t, receipt.MaxScore)
	assert.Equal(t, epoch, receipt.SubmittedAt)

	responses, err := f.store.ListResponses(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	for _, r := range responses {
		assert.Nil(t, r.Score)
		assert.Equal(t, model.ResponseID(sess.ID, "s-1", r.QuestionID), r.ID)
		if r.QuestionID == qs[1].ID {
			assert.Equal(t, "  more examples  ", r.Answer)
		}
	}

	got, err := f.store.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ResponseCount)
}

func TestGuard_QuizIsScored(t *testing.T) {
	f := newFixture(t)
	qs := f.quizQuestions(t)
	sess := f.session(t, "QUIZ22", model.SessionKindQuiz, time.Minute, qs)

	receipt, err := newGuard(f, nil).Submit(context.Background(), session.SubmitRequest{
		SessionID: sess.ID,
		StudentID: "s-1",
		Answers:   answersFor(qs, "4", "3;2", "udp"),
	})
	require.NoError(t, err)

	require.NotNil(t, receipt.Score)
	require.NotNil(t, receipt.MaxScore)
	assert.Equal(t, 5, *receipt.Score)
	assert.Equal(t, 6, *receipt.MaxScore)
	assert.Equal(t, model.SessionKindQuiz, receipt.Kind)
}

func TestGuard_PaddedAnswersScoreAndStoreAsTyped(t *testing.T) {
	f := newFixture(t)
	qs := f.quizQuestions(t)
	sess := f.session(t, "QUIZ22", model.SessionKindQuiz, time.Minute, qs)
	guard := newGuard(f, nil)

	plain, err := guard.Submit(context.Background(), session.SubmitRequest{
		SessionID: sess.ID, StudentID: "s-1", Answers: answersFor(qs, "4", "3;2", "udp"),
	})
	require.NoError(t, err)
	padded, err := guard.Submit(context.Background(), session.SubmitRequest{
		SessionID: sess.ID, StudentID: "s-2", Answers: answersFor(qs, " 4 ", "3;2", "udp\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, *plain.Score, *padded.Score)

	responses, err := f.store.ListResponses(context.Background(), sess.ID)
	require.NoError(t, err)
	stored := map[uuid.UUID]string{}
	for _, r := range responses {
		if r.StudentID == "s-2" {
			stored[r.QuestionID] = r.Answer
		}
	}
	assert.Equal(t, " 4 ", stored[qs[0].ID])
	assert.Equal(t, "udp\n", stored[qs[2].ID])
}

func TestGuard_BlankOptionalAnswerIsSkipped(t *testing.T) {
	f := newFixture(t)
	qs := f.feedbackQuestions(t)
	sess := f.session(t, "FDBK22", model.SessionKindFeedback, time.Minute, qs)

	receipt, err := newGuard(f, nil).Submit(context.Background(), session.SubmitRequest{
		SessionID: sess.ID, StudentID: "s-1", Answers: answersFor(qs, "3", " \t "),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, receipt.Responses)
}

func TestGuard_AtMostOneSubmission(t *testing.T) {
	f := newFixture(t)
	qs := f.quizQuestions(t)
	sess := f.session(t, "QUIZ22", model.SessionKindQuiz, time.Minute, qs)
	guard := newGuard(f, nil)

	_, err := guard.Submit(context.Background(), session.SubmitRequest{
		SessionID: sess.ID, StudentID: "s-1", Answers: answersFor(qs, "3"),
	})
	require.NoError(t, err)

	// The duplicate check runs before validation.
	_, err = guard.Submit(context.Background(), session.SubmitRequest{
		SessionID: sess.ID, StudentID: "s-1", Answers: map[string]string{},
	})
	require.ErrorIs(t, err, session.ErrAlreadySubmitted)

	responses, err := f.store.ListResponses(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, "3", responses[0].Answer)

	// Another student is unaffected.
	_, err = guard.Submit(context.Background(), session.SubmitRequest{
		SessionID: sess.ID, StudentID: "s-2", Answers: answersFor(qs, "4"),
	})
	assert.NoError(t, err)
}

func TestGuard_RacingSubmissionsRecordOnce(t *testing.T) {
	f := newFixture(t)
	qs := f.feedbackQuestions(t)
	sess := f.session(t, "FDBK22", model.SessionKindFeedback, time.Minute, qs)

	// Both submissions pass the already-submitted check before either writes.
	const n = 2
	store := &gatedStore{Store: f.store, gate: make(chan struct{})}
	store.pending.Add(n)
	go func() {
		store.pending.Wait()
		close(store.gate)
	}()

	guard := newGuard(f, store)
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(answer string) {
			defer wg.Done()
			_, err := guard.Submit(context.Background(), session.SubmitRequest{
				SessionID: sess.ID, StudentID: "s-1", Answers: answersFor(qs, answer),
			})
			results <- err
		}(fmt.Sprint(i + 1))
	}
	wg.Wait()
	close(results)

	var errs []error
	for err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], session.ErrAlreadySubmitted)
	assert.False(t, session.Retryable(errs[0]))

	responses, err := f.store.ListResponses(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, responses, 1)

	got, err := f.store.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ResponseCount)
}

func TestGuard_RequiredQuestionsAreReported(t *testing.T) {
	f := newFixture(t)
	qs := f.quizQuestions(t)
	sess := f.session(t, "QUIZ22", model.SessionKindQuiz, time.Minute, qs)

	_, err := newGuard(f, nil).Submit(context.Background(), session.SubmitRequest{
		SessionID: sess.ID,
		StudentID: "s-1",
		Answers:   answersFor(qs, "   ", "2;3"),
	})
	require.ErrorIs(t, err, session.ErrValidation)
	assert.Equal(t, map[string]string{qs[0].ID.String(): "required"}, session.FieldsOf(err))

	submitted, err := f.store.HasSubmitted(context.Background(), sess.ID, "s-1")
	require.NoError(t, err)
	assert.False(t, submitted)
}

func TestGuard_RejectsEmptyAndUnknownAnswers(t *testing.T) {
	f := newFixture(t)
	q := f.question(t, model.Question{Kind: model.SessionKindFeedback, QuestionText: "Optional", Type: model.QuestionTypeText})
	sess := f.session(t, "FDBK22", model.SessionKindFeedback, time.Minute, []model.Question{q})

	_, err := newGuard(f, nil).Submit(context.Background(), session.SubmitRequest{
		SessionID: sess.ID,
		StudentID: "s-1",
		Answers:   map[string]string{"not-a-uuid": "x", uuid.NewString(): "y"},
	})
	require.ErrorIs(t, err, session.ErrValidation)
	assert.Equal(t, "required", session.FieldsOf(err)["answers"])
}

func TestGuard_Window(t *testing.T) {
	f := newFixture(t)
	qs := f.feedbackQuestions(t)

	tests := []struct {
		name    string
		after   time.Duration
		auto    bool
		wantErr error
	}{
		{"manual before end", 59 * time.Second, false, nil},
		{"manual at end", time.Minute, false, nil},
		{"manual after end", time.Minute + time.Second, false, session.ErrNotEligible},
		{"auto inside grace", time.Minute + 10*time.Second, true, nil},
		{"auto after grace", time.Minute + 11*time.Second, true, session.ErrNotEligible},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.clock.Set(epoch)
			sess := f.session(t, "WIN00"+string(rune('0'+i)), model.SessionKindFeedback, time.Minute, qs)
			f.clock.Set(epoch.Add(tt.after))

			guard := newGuard(f, nil, session.WithAutoSubmitGrace(10*time.Second))
			_, err := guard.Submit(context.Background(), session.SubmitRequest{
				SessionID:  sess.ID,
				StudentID:  "s-1",
				Answers:    answersFor(qs, "2"),
				AutoSubmit: tt.auto,
			})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGuard_UntimedSessionAcceptsAnyTime(t *testing.T) {
	f := newFixture(t)
	qs := f.feedbackQuestions(t)
	sess := f.session(t, "DRAFT2", model.SessionKindFeedback, 0, qs)
	f.clock.Set(epoch.Add(24 * time.Hour))

	_, err := newGuard(f, nil).Submit(context.Background(), session.SubmitRequest{
		SessionID: sess.ID, StudentID: "s-1", Answers: answersFor(qs, "1"),
	})
	assert.NoError(t, err)
}

func TestGuard_UnknownSessionAndStudent(t *testing.T) {
	f := newFixture(t)
	guard := newGuard(f, nil)

	_, err := guard.Submit(context.Background(), session.SubmitRequest{SessionID: uuid.New(), StudentID: "s-1"})
	assert.ErrorIs(t, err, session.ErrNotFound)

	_, err = guard.Submit(context.Background(), session.SubmitRequest{SessionID: uuid.New(), StudentID: " "})
	assert.ErrorIs(t, err, session.ErrValidation)
}

func TestGuard_WriteFailureLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	qs := f.feedbackQuestions(t)
	sess := f.session(t, "FDBK22", model.SessionKindFeedback, time.Minute, qs)
	store := &flakyStore{Store: f.store, failWrite: true}

	_, err := newGuard(f, store).Submit(context.Background(), session.SubmitRequest{
		SessionID: sess.ID, StudentID: "s-1", Answers: answersFor(qs, "2"),
	})
	require.ErrorIs(t, err, session.ErrPersistence)
	assert.True(t, session.Retryable(err))

	// Retrying once the store recovers succeeds.
	store.failWrite = false
	_, err = newGuard(f, store).Submit(context.Background(), session.SubmitRequest{
		SessionID: sess.ID, StudentID: "s-1", Answers: answersFor(qs, "2"),
	})
	assert.NoError(t, err)
}

func TestGuard_CounterFailureDoesNotFailSubmission(t *testing.T) {
	f := newFixture(t)
	qs := f.feedbackQuestions(t)
	sess := f.session(t, "FDBK22", model.SessionKindFeedback, time.Minute, qs)
	store := &flakyStore{Store: f.store, failCount: true}

	receipt, err := newGuard(f, store).Submit(context.Background(), session.SubmitRequest{
		SessionID: sess.ID, StudentID: "s-1", Answers: answersFor(qs, "2"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, receipt.Responses)
}
