package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/model"
	"github.com/stemsi/classpulse-backend/internal/session"
)

// Domain Errors
var (
	ErrNotSessionOwner      = errors.New("not the owner of this session")
	ErrInvalidTransition    = errors.New("session cannot move to the requested status")
	ErrUnknownQuestions     = errors.New("session references unknown questions")
	ErrQuestionKindMismatch = errors.New("question kind does not match the session kind")
	ErrCodeSpaceExhausted   = errors.New("could not allocate a unique join code")
)

// codeAlphabet leaves out characters that read alike on a projector (0/O, 1/I).
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const maxCodeAttempts = 10

// SessionService handles the teacher side of sessions: authoring, the
// DRAFT -> ACTIVE -> ENDED lifecycle, and results.
type SessionService struct {
	sessions  SessionRepository
	questions QuestionRepository
	responses ResponseRepository
	cache     SessionCache
	bus       EventBus
	clock     session.Clock
	log       zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessions SessionRepository,
	questions QuestionRepository,
	responses ResponseRepository,
	cache SessionCache,
	bus EventBus,
	clock session.Clock,
	log zerolog.Logger,
) *SessionService {
	if clock == nil {
		clock = session.SystemClock()
	}
	return &SessionService{
		sessions:  sessions,
		questions: questions,
		responses: responses,
		cache:     cache,
		bus:       bus,
		clock:     clock,
		log:       log.With().Str("component", "session_service").Logger(),
	}
}

// Create stores a new DRAFT session with a fresh join code.
func (s *SessionService) Create(ctx context.Context, teacherID string, req *model.CreateSessionRequest) (*model.Session, error) {
	kind := model.SessionKind(req.Kind)

	ids := dedupe(req.QuestionIDs)
	questions, err := s.questions.GetQuestions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	if len(questions) != len(ids) {
		return nil, ErrUnknownQuestions
	}
	for i := range questions {
		if questions[i].TeacherID != teacherID {
			return nil, ErrUnknownQuestions
		}
		if questions[i].Kind != kind {
			return nil, ErrQuestionKindMismatch
		}
	}

	code, err := s.allocateCode(ctx)
	if err != nil {
		return nil, err
	}

	sess := &model.Session{
		Code:            code,
		Kind:            kind,
		Title:           strings.TrimSpace(req.Title),
		Status:          model.SessionStatusDraft,
		DurationSeconds: req.DurationSeconds,
		TeacherID:       teacherID,
		Section:         strings.TrimSpace(req.Section),
		QuestionIDs:     ids,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("code", sess.Code).
		Str("kind", string(sess.Kind)).
		Int("questions", len(ids)).
		Msg("Session created")
	return sess, nil
}

func (s *SessionService) allocateCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return "", err
		}
		taken, err := s.sessions.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// GenerateCode returns a random join code drawn from codeAlphabet.
func GenerateCode() (string, error) {
	buf := make([]byte, session.CodeLength)
	size := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Get returns a session owned by the teacher.
func (s *SessionService) Get(ctx context.Context, teacherID string, id uuid.UUID) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, &session.Error{Kind: session.ErrNotFound, Message: "no session " + id.String()}
	}
	if sess.TeacherID != teacherID {
		return nil, ErrNotSessionOwner
	}
	return sess, nil
}

// List returns the teacher's sessions, newest first.
func (s *SessionService) List(ctx context.Context, teacherID string) ([]model.Session, error) {
	sessions, err := s.sessions.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	return sessions, nil
}

// Start opens the session for DurationSeconds from now.
func (s *SessionService) Start(ctx context.Context, teacherID string, id uuid.UUID) (*model.Session, error) {
	sess, err := s.Get(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	if !sess.Status.CanTransitionTo(model.SessionStatusActive) {
		return nil, ErrInvalidTransition
	}

	now := s.clock.Now()
	end := now.Add(time.Duration(sess.DurationSeconds) * time.Second)
	ok, err := s.sessions.Start(ctx, id, now, end)
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	sess.Status = model.SessionStatusActive
	sess.StartTime = &now
	sess.EndTime = &end
	if err := s.cache.Warm(ctx, sess); err != nil {
		s.log.Warn().Err(err).Str("session_id", id.String()).Msg("Failed to warm session cache")
	}
	s.publish(ctx, model.MonitorEvent{Type: model.MonitorEventStarted, SessionID: id, At: now})

	s.log.Info().
		Str("session_id", id.String()).
		Time("end_time", end).
		Msg("Session started")
	return sess, nil
}

// End closes an ACTIVE session now.
func (s *SessionService) End(ctx context.Context, teacherID string, id uuid.UUID) (*model.Session, error) {
	sess, err := s.Get(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	if !sess.Status.CanTransitionTo(model.SessionStatusEnded) {
		return nil, ErrInvalidTransition
	}
	ended, err := s.end(ctx, sess)
	if err != nil {
		return nil, err
	}
	if !ended {
		return nil, ErrInvalidTransition
	}
	return sess, nil
}

// EndExpired ends every ACTIVE session whose end time has passed and
// reports how many were ended.
func (s *SessionService) EndExpired(ctx context.Context) (int, error) {
	expired, err := s.sessions.ListExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("list expired sessions: %w", err)
	}
	count := 0
	for i := range expired {
		ended, err := s.end(ctx, &expired[i])
		if err != nil {
			s.log.Warn().Err(err).Str("session_id", expired[i].ID.String()).Msg("Failed to end expired session")
			continue
		}
		if ended {
			count++
		}
	}
	return count, nil
}

// end updates sess in place on success. It reports false when another
// caller ended the session first.
func (s *SessionService) end(ctx context.Context, sess *model.Session) (bool, error) {
	now := s.clock.Now()
	ok, err := s.sessions.End(ctx, sess.ID, now)
	if err != nil {
		return false, fmt.Errorf("end session: %w", err)
	}
	if !ok {
		return false, nil
	}

	sess.Status = model.SessionStatusEnded
	if sess.EndTime == nil || sess.EndTime.After(now) {
		sess.EndTime = &now
	}
	if err := s.cache.Evict(ctx, sess); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to evict session cache")
	}
	s.publish(ctx, model.MonitorEvent{Type: model.MonitorEventEnded, SessionID: sess.ID, At: now})

	s.log.Info().Str("session_id", sess.ID.String()).Msg("Session ended")
	return true, nil
}

func (s *SessionService) publish(ctx context.Context, ev model.MonitorEvent) {
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("type", string(ev.Type)).Msg("Failed to publish monitor event")
	}
}

// Results aggregates every response of a session per question and, for
// quizzes, per student.
func (s *SessionService) Results(ctx context.Context, teacherID string, id uuid.UUID) (*model.SessionResults, error) {
	sess, err := s.Get(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions.GetQuestions(ctx, sess.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	responses, err := s.responses.ListResponses(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return Aggregate(sess, questions, responses), nil
}

// Aggregate builds results from raw responses. Responses to questions no
// longer on the session are ignored.
func Aggregate(sess *model.Session, questions []model.Question, responses []model.Response) *model.SessionResults {
	isQuiz := sess.Kind == model.SessionKindQuiz

	byQuestion := make(map[uuid.UUID][]model.Response, len(questions))
	for _, r := range responses {
		byQuestion[r.QuestionID] = append(byQuestion[r.QuestionID], r)
	}

	results := &model.SessionResults{
		Session:   *sess,
		Questions: make([]model.QuestionResult, 0, len(questions)),
	}

	known := make(map[uuid.UUID]*model.Question, len(questions))
	for i := range questions {
		q := &questions[i]
		known[q.ID] = q
		results.Questions = append(results.Questions, aggregateQuestion(q, byQuestion[q.ID], isQuiz))
	}

	if !isQuiz {
		return results
	}

	maxScore := 0
	for i := range questions {
		maxScore += questions[i].Marks
	}
	byStudent := make(map[string]*model.StudentResult)
	for _, r := range responses {
		if _, ok := known[r.QuestionID]; !ok {
			continue
		}
		sr, ok := byStudent[r.StudentID]
		if !ok {
			sr = &model.StudentResult{StudentID: r.StudentID, MaxScore: maxScore}
			byStudent[r.StudentID] = sr
		}
		sr.Answered++
		if r.Score != nil {
			sr.Score += *r.Score
		}
	}
	results.Students = make([]model.StudentResult, 0, len(byStudent))
	for _, sr := range byStudent {
		results.Students = append(results.Students, *sr)
	}
	sort.Slice(results.Students, func(i, j int) bool {
		a, b := results.Students[i], results.Students[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.StudentID < b.StudentID
	})
	return results
}

func aggregateQuestion(q *model.Question, responses []model.Response, isQuiz bool) model.QuestionResult {
	qr := model.QuestionResult{
		QuestionID:   q.ID,
		QuestionText: q.QuestionText,
		Type:         q.Type,
		Responses:    len(responses),
		Distribution: make(map[string]int),
	}

	var ratingSum float64
	rated := 0
	correct := 0
	for _, r := range responses {
		answer := strings.TrimSpace(r.Answer)
		switch {
		case q.Type == model.QuestionTypeMultipleCorrect:
			for _, opt := range strings.FieldsFunc(answer, func(c rune) bool { return c == ';' || c == ',' }) {
				if opt = strings.TrimSpace(opt); opt != "" {
					qr.Distribution[opt]++
				}
			}
		case q.Type == model.QuestionTypeOneWord:
			qr.Distribution[strings.ToLower(answer)]++
		case q.Type != model.QuestionTypeText:
			qr.Distribution[answer]++
		}

		if q.Type.IsRated() {
			if v, err := strconv.ParseFloat(answer, 64); err == nil {
				ratingSum += v
				rated++
			}
		}
		if isQuiz && session.Correct(q, r.Answer) {
			correct++
		}
	}

	if rated > 0 {
		avg := ratingSum / float64(rated)
		qr.AverageRating = &avg
	}
	if isQuiz {
		qr.CorrectCount = &correct
	}
	return qr
}
