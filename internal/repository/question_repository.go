package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/classpulse-backend/internal/model"
)

const questionColumns = `id, teacher_id, kind, question_text, question_type, options,
	correct_answer, marks, is_required, created_at`

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

func scanQuestions(rows pgx.Rows) ([]model.Question, error) {
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.TeacherID, &q.Kind, &q.QuestionText, &q.Type, &q.Options,
			&q.CorrectAnswer, &q.Marks, &q.IsRequired, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CreateQuestion inserts a new question into the bank.
func (r *QuestionRepository) CreateQuestion(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (teacher_id, kind, question_text, question_type, options, correct_answer, marks, is_required)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		q.TeacherID, q.Kind, q.QuestionText, q.Type, q.Options, q.CorrectAnswer, q.Marks, q.IsRequired,
	).Scan(&q.ID, &q.CreatedAt)
}

// ListQuestionsByTeacher returns a teacher's bank, optionally filtered by kind.
func (r *QuestionRepository) ListQuestionsByTeacher(ctx context.Context, teacherID string, kind model.SessionKind) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions
		 WHERE teacher_id = $1 AND ($2 = '' OR kind = $2)
		 ORDER BY created_at`, teacherID, string(kind),
	)
	if err != nil {
		return nil, err
	}
	return scanQuestions(rows)
}

// GetQuestions returns the questions in the order of ids. Unknown IDs are
// omitted.
func (r *QuestionRepository) GetQuestions(ctx context.Context, ids []uuid.UUID) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions WHERE id = ANY($1::uuid[])`, ids,
	)
	if err != nil {
		return nil, err
	}
	found, err := scanQuestions(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]model.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	ordered := make([]model.Question, 0, len(found))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}
