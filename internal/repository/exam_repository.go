package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/hakraj/exboard/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, time_limit_minutes, is_published, created_by, created_at, updated_at
		 FROM exams
		 WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.Description, &e.TimeLimitMinutes, &e.IsPublished, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts a new unpublished exam.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, description, time_limit_minutes, created_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, is_published, created_at, updated_at`,
		e.Title, e.Description, e.TimeLimitMinutes, e.CreatedBy,
	).Scan(&e.ID, &e.IsPublished, &e.CreatedAt, &e.UpdatedAt)
}

// Update replaces an exam's mutable fields.
func (r *ExamRepository) Update(ctx context.Context, e *model.Exam) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET title = $1, description = $2, time_limit_minutes = $3, updated_at = NOW()
		 WHERE id = $4`,
		e.Title, e.Description, e.TimeLimitMinutes, e.ID)
	return err
}

// SetPublished flips the publication flag.
func (r *ExamRepository) SetPublished(ctx context.Context, id uuid.UUID, published bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET is_published = $1, updated_at = NOW() WHERE id = $2`,
		published, id)
	return err
}

// Delete removes an exam and (via FK cascade) its questions.
func (r *ExamRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
	return err
}

// ListPaginated retrieves exams ordered by creation time, newest first.
// When publishedOnly is set, drafts are excluded.
func (r *ExamRepository) ListPaginated(ctx context.Context, publishedOnly bool, limit, offset int) ([]model.Exam, int, error) {
	baseQuery := ` FROM exams`
	if publishedOnly {
		baseQuery += ` WHERE is_published = TRUE`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+baseQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, time_limit_minutes, is_published, created_by, created_at, updated_at`+
			baseQuery+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.TimeLimitMinutes, &e.IsPublished, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		exams = append(exams, e)
	}
	return exams, total, rows.Err()
}

// ListPublished retrieves all published exams, used for cache prewarming.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, time_limit_minutes, is_published, created_by, created_at, updated_at
		 FROM exams
		 WHERE is_published = TRUE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.TimeLimitMinutes, &e.IsPublished, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}
