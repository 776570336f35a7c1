package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classpulse-backend/internal/model"
	"github.com/stemsi/classpulse-backend/internal/session"
)

// ResponseRepository handles response data access.
type ResponseRepository struct {
	pool *pgxpool.Pool
}

// NewResponseRepository creates a new ResponseRepository.
func NewResponseRepository(pool *pgxpool.Pool) *ResponseRepository {
	return &ResponseRepository{pool: pool}
}

// HasSubmitted reports whether the student holds a submission claim in the
// session.
func (r *ResponseRepository) HasSubmitted(ctx context.Context, sessionID uuid.UUID, studentID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM submissions WHERE session_id = $1 AND student_id = $2)`,
		sessionID, studentID,
	).Scan(&exists)
	return exists, err
}

// WriteBatch claims the submission and inserts all responses in one
// transaction. The claim row is keyed by (session, student), so a concurrent
// writer blocks on it until the first transaction finishes and then gets
// session.ErrSubmissionExists.
func (r *ResponseRepository) WriteBatch(ctx context.Context, responses []model.Response) error {
	if len(responses) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	first := responses[0]
	tag, err := tx.Exec(ctx,
		`INSERT INTO submissions (session_id, student_id, submitted_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_id, student_id) DO NOTHING`,
		first.SessionID, first.StudentID, first.SubmittedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return session.ErrSubmissionExists
	}

	batch := &pgx.Batch{}
	for _, resp := range responses {
		batch.Queue(
			`INSERT INTO responses (id, session_id, student_id, question_id, answer, submitted_at, score)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			resp.ID, resp.SessionID, resp.StudentID, resp.QuestionID, resp.Answer, resp.SubmittedAt, resp.Score,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListResponses returns every response of a session, grouped by student.
func (r *ResponseRepository) ListResponses(ctx context.Context, sessionID uuid.UUID) ([]model.Response, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, student_id, question_id, answer, submitted_at, score
		 FROM responses WHERE session_id = $1
		 ORDER BY student_id, question_id`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []model.Response
	for rows.Next() {
		var resp model.Response
		if err := rows.Scan(&resp.ID, &resp.SessionID, &resp.StudentID, &resp.QuestionID,
			&resp.Answer, &resp.SubmittedAt, &resp.Score); err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}
