package session

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/stemsi/classpulse-backend/internal/model"
)

// CodeLength is the length of a join code.
const CodeLength = 6

// Joined is the snapshot a student receives on a successful join.
type Joined struct {
	Session   model.Session
	Questions []model.Question
}

// JoinResolver maps a join code onto a session and its questions.
type JoinResolver struct {
	store          Store
	enforceSection bool
	log            zerolog.Logger
}

// JoinOption configures a JoinResolver.
type JoinOption func(*JoinResolver)

// WithSectionEnforcement rejects students whose section differs from the
// session's. Either side being empty never rejects, and no section is ever
// defaulted.
func WithSectionEnforcement(enforce bool) JoinOption {
	return func(r *JoinResolver) { r.enforceSection = enforce }
}

// NewJoinResolver creates a JoinResolver over store.
func NewJoinResolver(store Store, log zerolog.Logger, opts ...JoinOption) *JoinResolver {
	r := &JoinResolver{
		store: store,
		log:   log.With().Str("component", "join_resolver").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NormalizeCode trims and upper-cases a join code and checks its shape.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", invalid("join code is required", map[string]string{"code": "required"})
	}
	if len(code) != CodeLength {
		return "", invalid("join code must be 6 characters", map[string]string{"code": "len"})
	}
	for _, r := range code {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return "", invalid("join code must be alphanumeric", map[string]string{"code": "alphanum"})
		}
	}
	return code, nil
}

// Resolve looks up the session behind code. Status, not the clock, decides
// eligibility: DRAFT and ACTIVE sessions resolve, ENDED ones do not.
func (r *JoinResolver) Resolve(ctx context.Context, code, section string) (*Joined, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	sess, err := r.store.GetSessionByCode(ctx, code)
	if err != nil {
		return nil, persistence("get session by code", err)
	}
	if sess == nil {
		return nil, notFound("no session with code %s", code)
	}

	if !sess.Status.Joinable() {
		return nil, notEligible("session %s is %s", sess.ID, sess.Status)
	}

	if r.enforceSection && sess.Section != "" && section != "" && !strings.EqualFold(sess.Section, section) {
		return nil, notEligible("session is for section %s", sess.Section)
	}

	questions, err := r.store.GetQuestions(ctx, sess.QuestionIDs)
	if err != nil {
		return nil, persistence("get questions", err)
	}
	if len(questions) != len(sess.QuestionIDs) {
		r.log.Warn().
			Str("session_id", sess.ID.String()).
			Int("expected", len(sess.QuestionIDs)).
			Int("found", len(questions)).
			Msg("Session references missing questions")
	}

	return &Joined{Session: *sess, Questions: questions}, nil
}
