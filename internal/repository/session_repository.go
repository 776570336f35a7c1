package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classpulse-backend/internal/model"
)

const sessionColumns = `id, code, kind, title, status, start_time, end_time, duration_seconds,
	teacher_id, section, question_ids, response_count, created_at`

// SessionRepository handles session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.Session, error) {
	s := &model.Session{}
	err := row.Scan(&s.ID, &s.Code, &s.Kind, &s.Title, &s.Status, &s.StartTime, &s.EndTime,
		&s.DurationSeconds, &s.TeacherID, &s.Section, &s.QuestionIDs, &s.ResponseCount, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new DRAFT session.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO sessions (code, kind, title, status, duration_seconds, teacher_id, section, question_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::uuid[])
		 RETURNING id, created_at`,
		s.Code, s.Kind, s.Title, s.Status, s.DurationSeconds, s.TeacherID, s.Section, s.QuestionIDs,
	).Scan(&s.ID, &s.CreatedAt)
}

// GetByID returns nil when the session does not exist.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
}

// GetByCode returns nil when no session carries the code.
func (r *SessionRepository) GetByCode(ctx context.Context, code string) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE code = $1`, code))
}

// CodeExists reports whether a join code is already taken.
func (r *SessionRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE code = $1)`, code,
	).Scan(&exists)
	return exists, err
}

// ListByTeacher returns a teacher's sessions, newest first.
func (r *SessionRepository) ListByTeacher(ctx context.Context, teacherID string) ([]model.Session, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE teacher_id = $1 ORDER BY created_at DESC`, teacherID)
}

// ListExpired returns ACTIVE sessions whose end time has passed.
func (r *SessionRepository) ListExpired(ctx context.Context, now time.Time) ([]model.Session, error) {
	return r.list(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE status = $1 AND end_time IS NOT NULL AND end_time <= $2`,
		model.SessionStatusActive, now)
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]model.Session, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// Start moves a DRAFT session to ACTIVE. Reports false when the session was
// not in DRAFT.
func (r *SessionRepository) Start(ctx context.Context, id uuid.UUID, start, end time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, start_time = $2, end_time = $3
		 WHERE id = $4 AND status = $5`,
		model.SessionStatusActive, start, end, id, model.SessionStatusDraft)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// End moves an ACTIVE session to ENDED, pulling a future end time in to now.
func (r *SessionRepository) End(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET status = $1,
		     end_time = CASE WHEN end_time IS NULL OR end_time > $2 THEN $2 ELSE end_time END
		 WHERE id = $3 AND status = $4`,
		model.SessionStatusEnded, now, id, model.SessionStatusActive)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AddResponseCounts applies summed counter deltas in one statement.
func (r *SessionRepository) AddResponseCounts(ctx context.Context, ids []uuid.UUID, deltas []int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions AS s
		 SET response_count = s.response_count + u.delta
		 FROM (SELECT unnest($1::uuid[]) AS id, unnest($2::int[]) AS delta) AS u
		 WHERE s.id = u.id`,
		ids, deltas)
	return err
}

// AddResponseCount applies a single counter delta.
func (r *SessionRepository) AddResponseCount(ctx context.Context, id uuid.UUID, delta int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET response_count = response_count + $1 WHERE id = $2`, delta, id)
	return err
}
