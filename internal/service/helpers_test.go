package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/model"
	"github.com/stemsi/classpulse-backend/internal/repository/memory"
	"github.com/stemsi/classpulse-backend/internal/service"
	"github.com/stemsi/classpulse-backend/internal/session"
	"github.com/stemsi/classpulse-backend/internal/session/sessiontest"
	"github.com/stretchr/testify/require"
)

const teacherID = "t-1"

var epoch = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type env struct {
	store         *memory.Store
	drafts        *memory.Drafts
	bus           *memory.Bus
	clock         *sessiontest.Clock
	questions     *service.QuestionService
	sessions      *service.SessionService
	participation *service.ParticipationService
}

func newEnv(t *testing.T, guardOpts ...session.GuardOption) *env {
	t.Helper()
	e := &env{
		store:  memory.NewStore(),
		drafts: memory.NewDrafts(),
		bus:    memory.NewBus(),
		clock:  sessiontest.NewClock(epoch),
	}
	log := zerolog.Nop()
	engine := session.NewEngine(e.store, e.clock, log, nil, guardOpts)
	e.questions = service.NewQuestionService(e.store, log)
	e.sessions = service.NewSessionService(e.store, e.store, e.store, e.store, e.bus, e.clock, log)
	e.participation = service.NewParticipationService(engine, e.drafts, e.bus, e.clock, log)
	return e
}

func (e *env) addQuestion(t *testing.T, req model.AddQuestionRequest) *model.Question {
	t.Helper()
	q, err := e.questions.Add(context.Background(), teacherID, &req)
	require.NoError(t, err)
	return q
}

// quiz creates a DRAFT quiz with a required MCQ worth 2 and an optional
// one-word question worth 1.
func (e *env) quiz(t *testing.T, duration int) (*model.Session, []*model.Question) {
	t.Helper()
	qs := []*model.Question{
		e.addQuestion(t, model.AddQuestionRequest{Kind: "QUIZ", QuestionText: "2+2", Type: "MCQ", Options: []string{"3", "4"}, CorrectAnswer: "4", Marks: 2, IsRequired: true}),
		e.addQuestion(t, model.AddQuestionRequest{Kind: "QUIZ", QuestionText: "Resolver", Type: "ONE_WORD", CorrectAnswer: "ARP", Marks: 1}),
	}
	sess, err := e.sessions.Create(context.Background(), teacherID, &model.CreateSessionRequest{
		Title:           "Networking quiz",
		Kind:            "QUIZ",
		DurationSeconds: duration,
		QuestionIDs:     []uuid.UUID{qs[0].ID, qs[1].ID},
	})
	require.NoError(t, err)
	return sess, qs
}

func (e *env) subscribe(t *testing.T, sessionID uuid.UUID) <-chan []byte {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch, _, err := e.bus.Subscribe(ctx, sessionID)
	require.NoError(t, err)
	return ch
}

func nextEvent(t *testing.T, ch <-chan []byte) model.MonitorEvent {
	t.Helper()
	select {
	case raw := <-ch:
		var ev model.MonitorEvent
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no monitor event")
		return model.MonitorEvent{}
	}
}
