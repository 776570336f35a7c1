package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/model"
)

// DefaultAutoSubmitGrace is how long after the end time an expiry-driven
// submission is still accepted.
const DefaultAutoSubmitGrace = 30 * time.Second

// SubmitRequest is one attempt to finalize a participation.
type SubmitRequest struct {
	SessionID uuid.UUID
	StudentID string
	// Answers maps question ID to the raw answer string.
	Answers map[string]string
	// AutoSubmit marks the expiry path, which may land after the end time.
	AutoSubmit bool
}

// Receipt describes an accepted submission.
type Receipt struct {
	SessionID   uuid.UUID         `json:"session_id"`
	StudentID   string            `json:"student_id"`
	Kind        model.SessionKind `json:"kind"`
	Responses   int               `json:"responses"`
	Score       *int              `json:"score,omitempty"`
	MaxScore    *int              `json:"max_score,omitempty"`
	AutoSubmit  bool              `json:"auto_submit"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// SubmissionGuard validates and records submissions, at most one per student
// and session.
type SubmissionGuard struct {
	store Store
	clock Clock
	grace time.Duration
	log   zerolog.Logger
}

// GuardOption configures a SubmissionGuard.
type GuardOption func(*SubmissionGuard)

// WithAutoSubmitGrace overrides DefaultAutoSubmitGrace.
func WithAutoSubmitGrace(d time.Duration) GuardOption {
	return func(g *SubmissionGuard) { g.grace = d }
}

// NewSubmissionGuard creates a SubmissionGuard over store.
func NewSubmissionGuard(store Store, clock Clock, log zerolog.Logger, opts ...GuardOption) *SubmissionGuard {
	if clock == nil {
		clock = SystemClock()
	}
	g := &SubmissionGuard{
		store: store,
		clock: clock,
		grace: DefaultAutoSubmitGrace,
		log:   log.With().Str("component", "submission_guard").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Submit checks, in order, that the student has not submitted yet, that every
// required question is answered, and that the window is still open (or the
// call is the expiry auto-submit). Only then are responses written, as one
// batch. Nothing is written when a check fails.
func (g *SubmissionGuard) Submit(ctx context.Context, req SubmitRequest) (*Receipt, error) {
	if strings.TrimSpace(req.StudentID) == "" {
		return nil, invalid("student is required", map[string]string{"student_id": "required"})
	}

	sess, err := g.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, persistence("get session", err)
	}
	if sess == nil {
		return nil, notFound("no session %s", req.SessionID)
	}

	policy, err := PolicyFor(sess.Kind)
	if err != nil {
		return nil, invalid(err.Error(), nil)
	}

	submitted, err := g.store.HasSubmitted(ctx, sess.ID, req.StudentID)
	if err != nil {
		return nil, persistence("check existing submission", err)
	}
	if submitted {
		return nil, alreadySubmitted(req.StudentID)
	}

	questions, err := g.store.GetQuestions(ctx, sess.QuestionIDs)
	if err != nil {
		return nil, persistence("get questions", err)
	}

	answers := normalizeAnswers(req.Answers)

	missing := make(map[string]string)
	for i := range questions {
		q := &questions[i]
		if q.IsRequired && strings.TrimSpace(answers[q.ID]) == "" {
			missing[q.ID.String()] = "required"
		}
	}
	if len(missing) > 0 {
		return nil, invalid("required questions are unanswered", missing)
	}

	now := g.clock.Now()
	if err := g.checkWindow(sess, now, req.AutoSubmit); err != nil {
		return nil, err
	}

	responses := make([]model.Response, 0, len(questions))
	total := 0
	for i := range questions {
		q := &questions[i]
		answer, ok := answers[q.ID]
		if !ok || strings.TrimSpace(answer) == "" {
			continue
		}
		score := policy.Score(q, answer)
		if score != nil {
			total += *score
		}
		responses = append(responses, model.Response{
			ID:          model.ResponseID(sess.ID, req.StudentID, q.ID),
			SessionID:   sess.ID,
			StudentID:   req.StudentID,
			QuestionID:  q.ID,
			Answer:      answer,
			SubmittedAt: now,
			Score:       score,
		})
	}
	if len(responses) == 0 {
		return nil, invalid("at least one answer is required", map[string]string{"answers": "required"})
	}

	if err := g.store.WriteResponses(ctx, responses); err != nil {
		if errors.Is(err, ErrSubmissionExists) {
			return nil, alreadySubmitted(req.StudentID)
		}
		return nil, persistence("write responses", err)
	}

	// The denormalized counter is allowed to drift.
	if err := g.store.IncrementResponseCount(ctx, sess.ID); err != nil {
		g.log.Warn().Err(err).
			Str("session_id", sess.ID.String()).
			Msg("Response count increment failed")
	}

	receipt := &Receipt{
		SessionID:   sess.ID,
		StudentID:   req.StudentID,
		Kind:        sess.Kind,
		Responses:   len(responses),
		AutoSubmit:  req.AutoSubmit,
		SubmittedAt: now,
	}
	if sess.Kind == model.SessionKindQuiz {
		maxScore := policy.MaxScore(questions)
		receipt.Score = &total
		receipt.MaxScore = &maxScore
	}

	g.log.Info().
		Str("session_id", sess.ID.String()).
		Str("student_id", req.StudentID).
		Int("responses", len(responses)).
		Bool("auto_submit", req.AutoSubmit).
		Msg("Submission recorded")

	return receipt, nil
}

func (g *SubmissionGuard) checkWindow(sess *model.Session, now time.Time, auto bool) error {
	if sess.EndTime == nil {
		return nil
	}
	deadline := *sess.EndTime
	if auto {
		deadline = deadline.Add(g.grace)
	}
	if now.After(deadline) {
		return notEligible("submission window closed at %s", sess.EndTime.Format(time.RFC3339))
	}
	return nil
}

// normalizeAnswers keys answers by question ID. Keys that are not question
// IDs are dropped. Answers are kept as typed.
func normalizeAnswers(raw map[string]string) map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(raw))
	for k, v := range raw {
		id, err := uuid.Parse(k)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out
}
