// Package memory is an in-process implementation of the session store and its
// side channels. It backs tests and STORE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/classpulse-backend/internal/model"
	"github.com/stemsi/classpulse-backend/internal/session"
)

type submissionKey struct {
	sessionID uuid.UUID
	studentID string
}

type responseKey struct {
	sessionID  uuid.UUID
	studentID  string
	questionID uuid.UUID
}

// Store keeps sessions, questions and responses in maps guarded by one lock.
type Store struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]*model.Session
	codes     map[string]uuid.UUID
	questions map[uuid.UUID]*model.Question
	responses map[responseKey]model.Response
	submitted map[submissionKey]struct{}
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		sessions:  make(map[uuid.UUID]*model.Session),
		codes:     make(map[string]uuid.UUID),
		questions: make(map[uuid.UUID]*model.Question),
		responses: make(map[responseKey]model.Response),
		submitted: make(map[submissionKey]struct{}),
	}
}

func copySession(s *model.Session) *model.Session {
	c := *s
	c.QuestionIDs = append([]uuid.UUID(nil), s.QuestionIDs...)
	return &c
}

func copyQuestion(q *model.Question) model.Question {
	c := *q
	c.Options = append([]string(nil), q.Options...)
	return c
}

// ─── session.Store ─────────────────────────────────────────────────────────

func (s *Store) GetSessionByCode(_ context.Context, code string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.codes[code]
	if !ok {
		return nil, nil
	}
	return copySession(s.sessions[id]), nil
}

func (s *Store) GetSession(_ context.Context, id uuid.UUID) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	return copySession(sess), nil
}

func (s *Store) GetQuestions(_ context.Context, ids []uuid.UUID) ([]model.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			out = append(out, copyQuestion(q))
		}
	}
	return out, nil
}

func (s *Store) HasSubmitted(_ context.Context, sessionID uuid.UUID, studentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.submitted[submissionKey{sessionID, studentID}]
	return ok, nil
}

// WriteResponses stores the batch atomically and claims the submission of
// every student in it. If any of them already submitted to the session,
// nothing is written and session.ErrSubmissionExists is returned.
func (s *Store) WriteResponses(_ context.Context, responses []model.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range responses {
		if _, ok := s.submitted[submissionKey{r.SessionID, r.StudentID}]; ok {
			return session.ErrSubmissionExists
		}
	}
	for _, r := range responses {
		s.submitted[submissionKey{r.SessionID, r.StudentID}] = struct{}{}
		if r.Score != nil {
			score := *r.Score
			r.Score = &score
		}
		s.responses[responseKey{r.SessionID, r.StudentID, r.QuestionID}] = r
	}
	return nil
}

func (s *Store) IncrementResponseCount(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.ResponseCount++
	}
	return nil
}

// ─── Session management ────────────────────────────────────────────────────

// Create inserts a session, assigning ID and CreatedAt when unset.
func (s *Store) Create(_ context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now()
	}
	s.sessions[sess.ID] = copySession(sess)
	s.codes[sess.Code] = sess.ID
	return nil
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return s.GetSession(ctx, id)
}

func (s *Store) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.codes[code]
	return ok, nil
}

func (s *Store) ListByTeacher(_ context.Context, teacherID string) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Session
	for _, sess := range s.sessions {
		if sess.TeacherID == teacherID {
			out = append(out, *copySession(sess))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Start moves a DRAFT session to ACTIVE. It reports false when the session
// was not in DRAFT.
func (s *Store) Start(_ context.Context, id uuid.UUID, start, end time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || !sess.Status.CanTransitionTo(model.SessionStatusActive) {
		return false, nil
	}
	sess.Status = model.SessionStatusActive
	sess.StartTime = &start
	sess.EndTime = &end
	return true, nil
}

// End moves an ACTIVE session to ENDED, pulling the end time in to now when
// it lies in the future.
func (s *Store) End(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || !sess.Status.CanTransitionTo(model.SessionStatusEnded) {
		return false, nil
	}
	sess.Status = model.SessionStatusEnded
	if sess.EndTime == nil || sess.EndTime.After(now) {
		sess.EndTime = &now
	}
	return true, nil
}

func (s *Store) ListExpired(_ context.Context, now time.Time) ([]model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Session
	for _, sess := range s.sessions {
		if sess.Status == model.SessionStatusActive && sess.EndTime != nil && !sess.EndTime.After(now) {
			out = append(out, *copySession(sess))
		}
	}
	return out, nil
}

// ─── Question bank ─────────────────────────────────────────────────────────

func (s *Store) CreateQuestion(_ context.Context, q *model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	c := copyQuestion(q)
	s.questions[q.ID] = &c
	return nil
}

func (s *Store) ListQuestionsByTeacher(_ context.Context, teacherID string, kind model.SessionKind) ([]model.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Question
	for _, q := range s.questions {
		if q.TeacherID == teacherID && (kind == "" || q.Kind == kind) {
			out = append(out, copyQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ─── Responses ─────────────────────────────────────────────────────────────

func (s *Store) ListResponses(_ context.Context, sessionID uuid.UUID) ([]model.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Response
	for k, r := range s.responses {
		if k.sessionID == sessionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentID != out[j].StudentID {
			return out[i].StudentID < out[j].StudentID
		}
		return out[i].QuestionID.String() < out[j].QuestionID.String()
	})
	return out, nil
}

// ─── Cache hooks (no-ops: nothing is cached in memory) ─────────────────────

func (s *Store) Warm(context.Context, *model.Session) error  { return nil }
func (s *Store) Evict(context.Context, *model.Session) error { return nil }
