package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hakraj/exboard/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptResult combines student data with their attempt outcome, for the
// educator results screens.
type AttemptResult struct {
	AttemptID   uuid.UUID  `json:"attempt_id"`
	StudentID   uuid.UUID  `json:"student_id"`
	StudentName string     `json:"student_name"`
	RegNo       string     `json:"reg_no"`
	ExamID      uuid.UUID  `json:"exam_id"`
	ExamTitle   string     `json:"exam_title"`
	Score       *float64   `json:"score"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// AttemptRepository handles attempt and response data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// GetByID retrieves an attempt (without responses).
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, score, started_at, completed_at
		 FROM attempts
		 WHERE id = $1`, id,
	).Scan(&a.ID, &a.ExamID, &a.StudentID, &a.Score, &a.StartedAt, &a.CompletedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByExamAndStudent retrieves the (unique) attempt for an exam-student pair.
func (r *AttemptRepository) GetByExamAndStudent(ctx context.Context, examID, studentID uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, score, started_at, completed_at
		 FROM attempts
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&a.ID, &a.ExamID, &a.StudentID, &a.Score, &a.StartedAt, &a.CompletedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new attempt. The unique (exam_id, student_id) constraint
// makes a concurrent double-start surface as pgx.ErrNoRows here.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (exam_id, student_id)
		 VALUES ($1, $2)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, started_at`,
		a.ExamID, a.StudentID,
	).Scan(&a.ID, &a.StartedAt)
}

// ListResponses retrieves all responses of an attempt.
func (r *AttemptRepository) ListResponses(ctx context.Context, attemptID uuid.UUID) ([]model.Response, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_id, selected_option, updated_at
		 FROM responses
		 WHERE attempt_id = $1
		 ORDER BY updated_at ASC`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var responses []model.Response
	for rows.Next() {
		var resp model.Response
		if err := rows.Scan(&resp.ID, &resp.QuestionID, &resp.SelectedOption, &resp.UpdatedAt); err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, rows.Err()
}

// UpsertResponse creates or replaces the response for (attempt, question).
// The unique constraint guarantees at most one row per pair. The WHERE
// EXISTS guard makes the write a no-op once the attempt is finalized, so a
// sync racing Complete cannot land after grading; pgx.ErrNoRows is
// returned in that case.
func (r *AttemptRepository) UpsertResponse(ctx context.Context, attemptID, questionID uuid.UUID, selectedOption string) error {
	var id uuid.UUID
	return r.pool.QueryRow(ctx,
		`INSERT INTO responses (attempt_id, question_id, selected_option)
		 SELECT $1, $2, $3
		 WHERE EXISTS (
		 	SELECT 1 FROM attempts WHERE id = $1 AND completed_at IS NULL
		 )
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET selected_option = EXCLUDED.selected_option, updated_at = NOW()
		 RETURNING id`,
		attemptID, questionID, selectedOption,
	).Scan(&id)
}

// Complete sets the completion timestamp if and only if it is still unset.
// Returns the finalized timestamp, or pgx.ErrNoRows when the attempt was
// already completed — the caller treats that as the idempotency conflict.
func (r *AttemptRepository) Complete(ctx context.Context, id uuid.UUID) (time.Time, error) {
	var completedAt time.Time
	err := r.pool.QueryRow(ctx,
		`UPDATE attempts
		 SET completed_at = NOW()
		 WHERE id = $1 AND completed_at IS NULL
		 RETURNING completed_at`, id,
	).Scan(&completedAt)
	return completedAt, err
}

// SetScore records the graded score of a completed attempt.
func (r *AttemptRepository) SetScore(ctx context.Context, id uuid.UUID, score float64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts SET score = $1 WHERE id = $2`, score, id)
	return err
}

// ListResults retrieves attempt results joined with student and exam data,
// optionally filtered by exam, newest first.
func (r *AttemptRepository) ListResults(ctx context.Context, examID *uuid.UUID, limit, offset int) ([]AttemptResult, int, error) {
	baseQuery := `
		FROM attempts a
		JOIN users u ON a.student_id = u.id
		JOIN exams e ON a.exam_id = e.id
	`
	args := []any{}
	if examID != nil {
		args = append(args, *examID)
		baseQuery += ` WHERE a.exam_id = $1`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) `+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT a.id, u.id, u.name, u.reg_no, e.id, e.title, a.score, a.started_at, a.completed_at
	` + baseQuery + ` ORDER BY a.started_at DESC`
	if examID != nil {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []AttemptResult
	for rows.Next() {
		var res AttemptResult
		if err := rows.Scan(
			&res.AttemptID, &res.StudentID, &res.StudentName, &res.RegNo,
			&res.ExamID, &res.ExamTitle, &res.Score, &res.StartedAt, &res.CompletedAt,
		); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}
