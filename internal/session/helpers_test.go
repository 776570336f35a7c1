package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/model"
	"github.com/stemsi/classpulse-backend/internal/repository/memory"
	"github.com/stemsi/classpulse-backend/internal/session"
	"github.com/stemsi/classpulse-backend/internal/session/sessiontest"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

var epoch = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
	clock *sessiontest.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{store: memory.NewStore(), clock: sessiontest.NewClock(epoch)}
}

func (f *fixture) engine(joinOpts []session.JoinOption, guardOpts []session.GuardOption) *session.Engine {
	return session.NewEngine(f.store, f.clock, zerolog.Nop(), joinOpts, guardOpts)
}

func (f *fixture) question(t *testing.T, q model.Question) model.Question {
	t.Helper()
	if q.TeacherID == "" {
		q.TeacherID = "t-1"
	}
	require.NoError(t, f.store.CreateQuestion(context.Background(), &q))
	return q
}

func (f *fixture) feedbackQuestions(t *testing.T) []model.Question {
	return []model.Question{
		f.question(t, model.Question{Kind: model.SessionKindFeedback, QuestionText: "Pace?", Type: model.QuestionTypeRating, Options: []string{"1", "2", "3"}, IsRequired: true}),
		f.question(t, model.Question{Kind: model.SessionKindFeedback, QuestionText: "Comments", Type: model.QuestionTypeText}),
	}
}

func (f *fixture) quizQuestions(t *testing.T) []model.Question {
	return []model.Question{
		f.question(t, model.Question{Kind: model.SessionKindQuiz, QuestionText: "2+2", Type: model.QuestionTypeMCQ, Options: []string{"3", "4"}, CorrectAnswer: "4", Marks: 2, IsRequired: true}),
		f.question(t, model.Question{Kind: model.SessionKindQuiz, QuestionText: "Primes", Type: model.QuestionTypeMultipleCorrect, Options: []string{"2", "3", "4"}, CorrectAnswer: "2;3", Marks: 3}),
		f.question(t, model.Question{Kind: model.SessionKindQuiz, QuestionText: "Protocol", Type: model.QuestionTypeOneWord, CorrectAnswer: "ARP", Marks: 1}),
	}
}

// session stores a session. A positive duration makes it ACTIVE with an end
// time that far from the fixture clock; zero leaves it a DRAFT.
func (f *fixture) session(t *testing.T, code string, kind model.SessionKind, duration time.Duration, questions []model.Question) *model.Session {
	t.Helper()
	sess := &model.Session{
		Code:            code,
		Kind:            kind,
		Title:           "Lesson 4",
		Status:          model.SessionStatusDraft,
		DurationSeconds: int(duration / time.Second),
		TeacherID:       "t-1",
	}
	for _, q := range questions {
		sess.QuestionIDs = append(sess.QuestionIDs, q.ID)
	}
	require.NoError(t, f.store.Create(context.Background(), sess))
	if duration > 0 {
		now := f.clock.Now()
		ok, err := f.store.Start(context.Background(), sess.ID, now, now.Add(duration))
		require.NoError(t, err)
		require.True(t, ok)
	}
	got, err := f.store.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	return got
}

func answersFor(questions []model.Question, answers ...string) map[string]string {
	out := make(map[string]string)
	for i, a := range answers {
		out[questions[i].ID.String()] = a
	}
	return out
}

// flakyStore fails selected operations.
type flakyStore struct {
	*memory.Store
	failLookup bool
	failWrite  bool
	failCount  bool
}

var errStoreDown = errors.New("store down")

func (s *flakyStore) GetSessionByCode(ctx context.Context, code string) (*model.Session, error) {
	if s.failLookup {
		return nil, errStoreDown
	}
	return s.Store.GetSessionByCode(ctx, code)
}

func (s *flakyStore) WriteResponses(ctx context.Context, responses []model.Response) error {
	if s.failWrite {
		return errStoreDown
	}
	return s.Store.WriteResponses(ctx, responses)
}

func (s *flakyStore) IncrementResponseCount(ctx context.Context, id uuid.UUID) error {
	if s.failCount {
		return errStoreDown
	}
	return s.Store.IncrementResponseCount(ctx, id)
}

// collect drains events until the channel closes.
func collect(t *testing.T, events <-chan session.Event) []session.Event {
	t.Helper()
	var out []session.Event
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("events not closed after %s; got %d", waitTimeout, len(out))
			return out
		}
	}
}

// nextTick waits for a tick event carrying want.
func nextTick(t *testing.T, events <-chan session.Event, want int) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "events closed while waiting for tick %d", want)
			if ev.Type == session.EventTick && ev.Remaining == want {
				return
			}
		case <-deadline:
			t.Fatalf("no tick %d within %s", want, waitTimeout)
		}
	}
}

// gatedStore holds every HasSubmitted caller until all expected callers have
// checked, so their writes race.
type gatedStore struct {
	*memory.Store
	pending sync.WaitGroup
	gate    chan struct{}
}

func (s *gatedStore) HasSubmitted(ctx context.Context, sessionID uuid.UUID, studentID string) (bool, error) {
	ok, err := s.Store.HasSubmitted(ctx, sessionID, studentID)
	s.pending.Done()
	<-s.gate
	return ok, err
}
