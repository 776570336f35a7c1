package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/model"
	"github.com/stemsi/classpulse-backend/internal/session"
)

// Student identifies the caller of the student endpoints, as carried by the token.
type Student struct {
	ID      string
	Section string
}

// StudentSession is the student-facing view of a session.
type StudentSession struct {
	ID              uuid.UUID           `json:"id"`
	Code            string              `json:"code"`
	Kind            model.SessionKind   `json:"kind"`
	Title           string              `json:"title"`
	Status          model.SessionStatus `json:"status"`
	EndTime         *time.Time          `json:"end_time,omitempty"`
	DurationSeconds int                 `json:"duration_seconds"`
}

// JoinView is returned on a successful join.
type JoinView struct {
	Session   StudentSession             `json:"session"`
	Questions []model.QuestionForStudent `json:"questions"`
	// Remaining is nil while the session has no end time.
	Remaining *int              `json:"remaining_seconds"`
	Drafts    map[string]string `json:"drafts"`
}

// StateView is a student's position in a session.
type StateView struct {
	Session   StudentSession    `json:"session"`
	Remaining *int              `json:"remaining_seconds"`
	Submitted bool              `json:"submitted"`
	Drafts    map[string]string `json:"drafts"`
}

// ParticipationService runs the student side: join, autosave, submit, and
// the live countdown.
type ParticipationService struct {
	engine *session.Engine
	drafts DraftStore
	bus    EventBus
	clock  session.Clock
	log    zerolog.Logger
}

// NewParticipationService creates a new ParticipationService.
func NewParticipationService(engine *session.Engine, drafts DraftStore, bus EventBus, clock session.Clock, log zerolog.Logger) *ParticipationService {
	if clock == nil {
		clock = session.SystemClock()
	}
	return &ParticipationService{
		engine: engine,
		drafts: drafts,
		bus:    bus,
		clock:  clock,
		log:    log.With().Str("component", "participation_service").Logger(),
	}
}

func (s *ParticipationService) studentSession(sess *model.Session) StudentSession {
	return StudentSession{
		ID:              sess.ID,
		Code:            sess.Code,
		Kind:            sess.Kind,
		Title:           sess.Title,
		Status:          sess.Status,
		EndTime:         sess.EndTime,
		DurationSeconds: sess.DurationSeconds,
	}
}

func (s *ParticipationService) remaining(sess *model.Session) *int {
	if sess.EndTime == nil {
		return nil
	}
	r := session.Remaining(*sess.EndTime, s.clock.Now())
	return &r
}

func (s *ParticipationService) loadDrafts(ctx context.Context, sessionID uuid.UUID, studentID string) map[string]string {
	drafts, err := s.drafts.LoadDrafts(ctx, sessionID, studentID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID.String()).Str("student_id", studentID).Msg("Failed to load drafts")
		return map[string]string{}
	}
	if drafts == nil {
		drafts = map[string]string{}
	}
	return drafts
}

func (s *ParticipationService) getSession(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	sess, err := s.engine.Store.GetSession(ctx, id)
	if err != nil {
		return nil, &session.Error{Kind: session.ErrPersistence, Message: "get session", Err: err}
	}
	if sess == nil {
		return nil, &session.Error{Kind: session.ErrNotFound, Message: "no session " + id.String()}
	}
	return sess, nil
}

// Join attaches the student to the session behind code.
func (s *ParticipationService) Join(ctx context.Context, student Student, code string) (*JoinView, error) {
	p := s.engine.NewParticipation(student.ID)
	joined, err := p.Join(ctx, code, student.Section)
	if err != nil {
		return nil, err
	}

	questions := make([]model.QuestionForStudent, 0, len(joined.Questions))
	for i := range joined.Questions {
		questions = append(questions, joined.Questions[i].ForStudent())
	}

	s.publish(ctx, model.MonitorEvent{
		Type:      model.MonitorEventJoined,
		SessionID: joined.Session.ID,
		StudentID: student.ID,
		At:        s.clock.Now(),
	})

	return &JoinView{
		Session:   s.studentSession(&joined.Session),
		Questions: questions,
		Remaining: s.remaining(&joined.Session),
		Drafts:    s.loadDrafts(ctx, joined.Session.ID, student.ID),
	}, nil
}

// State reports remaining time, whether the student submitted, and their drafts.
func (s *ParticipationService) State(ctx context.Context, student Student, sessionID uuid.UUID) (*StateView, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	submitted, err := s.engine.Store.HasSubmitted(ctx, sessionID, student.ID)
	if err != nil {
		return nil, &session.Error{Kind: session.ErrPersistence, Message: "check existing submission", Err: err}
	}
	view := &StateView{
		Session:   s.studentSession(sess),
		Remaining: s.remaining(sess),
		Submitted: submitted,
		Drafts:    map[string]string{},
	}
	if !submitted {
		view.Drafts = s.loadDrafts(ctx, sessionID, student.ID)
	}
	return view, nil
}

// Submit records the student's answers. Saved drafts are merged in under the
// request's answers. The session must still be open; only the countdown of
// a live attempt may land in the grace window after the end time.
func (s *ParticipationService) Submit(ctx context.Context, student Student, sessionID uuid.UUID, req *model.SubmitAnswersRequest) (*session.Receipt, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	answers := s.loadDrafts(ctx, sessionID, student.ID)
	for k, v := range req.Answers {
		answers[k] = v
	}

	p := s.engine.NewParticipation(student.ID)
	if _, err := p.Join(ctx, sess.Code, student.Section); err != nil {
		return nil, err
	}
	p.Restore(answers)
	receipt, err := p.Submit(ctx)
	if err != nil {
		return nil, err
	}

	s.afterSubmit(ctx, receipt)
	return receipt, nil
}

func (s *ParticipationService) afterSubmit(ctx context.Context, receipt *session.Receipt) {
	if err := s.drafts.ClearDrafts(ctx, receipt.SessionID, receipt.StudentID); err != nil {
		s.log.Warn().Err(err).Str("student_id", receipt.StudentID).Msg("Failed to clear drafts")
	}
	s.publish(ctx, model.MonitorEvent{
		Type:       model.MonitorEventSubmitted,
		SessionID:  receipt.SessionID,
		StudentID:  receipt.StudentID,
		Responses:  receipt.Responses,
		Score:      receipt.Score,
		AutoSubmit: receipt.AutoSubmit,
		At:         receipt.SubmittedAt,
	})
}

func (s *ParticipationService) publish(ctx context.Context, ev model.MonitorEvent) {
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("type", string(ev.Type)).Msg("Failed to publish monitor event")
	}
}

// Attempt is a live, connection-bound participation.
type Attempt struct {
	svc     *ParticipationService
	p       *session.Participation
	student Student
	Joined  *session.Joined
}

// Open joins the student to a session by ID for a live connection and
// restores their drafts.
func (s *ParticipationService) Open(ctx context.Context, student Student, sessionID uuid.UUID) (*Attempt, error) {
	sess, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	p := s.engine.NewParticipation(student.ID)
	joined, err := p.Join(ctx, sess.Code, student.Section)
	if err != nil {
		return nil, err
	}
	p.Restore(s.loadDrafts(ctx, sessionID, student.ID))

	s.publish(ctx, model.MonitorEvent{
		Type:      model.MonitorEventJoined,
		SessionID: sessionID,
		StudentID: student.ID,
		At:        s.clock.Now(),
	})
	return &Attempt{svc: s, p: p, student: student, Joined: joined}, nil
}

// Begin starts the countdown. Ticks and the terminal event arrive on the
// returned channel, which closes when the attempt stops running. An
// expiry-driven auto-submit is finalized here even if ctx has ended.
func (a *Attempt) Begin(ctx context.Context) (<-chan session.Event, error) {
	in, err := a.p.Begin(ctx)
	if err != nil {
		return nil, err
	}
	out := make(chan session.Event, 8)
	go func() {
		defer close(out)
		for ev := range in {
			if ev.Type == session.EventSubmitted && ev.Receipt != nil {
				a.svc.afterSubmit(context.WithoutCancel(ctx), ev.Receipt)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// Autosave records one answer in the attempt and in the draft store. A failed
// draft write is logged; the answer is still held in memory.
func (a *Attempt) Autosave(ctx context.Context, questionID, answer string) error {
	if err := a.p.Answer(questionID, answer); err != nil {
		return err
	}
	if err := a.svc.drafts.SaveDraft(ctx, a.Joined.Session.ID, a.student.ID, questionID, answer); err != nil {
		a.svc.log.Warn().Err(err).Str("student_id", a.student.ID).Msg("Failed to save draft")
	}
	return nil
}

// Submit is the manual submit of a live attempt.
func (a *Attempt) Submit(ctx context.Context) (*session.Receipt, error) {
	receipt, err := a.p.Submit(ctx)
	if err != nil {
		return nil, err
	}
	a.svc.afterSubmit(ctx, receipt)
	return receipt, nil
}

// Leave cancels the attempt. Nothing is submitted.
func (a *Attempt) Leave() { a.p.Cancel() }

func (a *Attempt) State() session.State { return a.p.State() }

func (a *Attempt) Remaining() int { return a.p.Remaining() }

func (a *Attempt) Answers() map[string]string { return a.p.Answers() }
