package repository

import (
	"context"

	"github.com/hakraj/exboard/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Score bands for the success-rate split.
const (
	passThreshold = 70.0
	failThreshold = 40.0
)

// AnalyticsRepository aggregates dashboard metrics.
type AnalyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository creates a new AnalyticsRepository.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{pool: pool}
}

// Collect gathers all dashboard metrics in one pass.
func (r *AnalyticsRepository) Collect(ctx context.Context) (*model.Analytics, error) {
	a := &model.Analytics{}

	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE role = 'student'),
			COUNT(*) FILTER (WHERE role = 'admin')
		FROM users`,
	).Scan(&a.Users.Student, &a.Users.Admin)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE is_published),
			COUNT(*) FILTER (WHERE NOT is_published)
		FROM exams`,
	).Scan(&a.Exams.Published, &a.Exams.Upcoming)
	if err != nil {
		return nil, err
	}

	chart, err := r.weeklyAttempts(ctx)
	if err != nil {
		return nil, err
	}
	a.ExamChart = chart

	err = r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE score >= $1),
			COUNT(*) FILTER (WHERE score >= $2 AND score < $1),
			COUNT(*) FILTER (WHERE score < $2)
		FROM attempts
		WHERE score IS NOT NULL`,
		passThreshold, failThreshold,
	).Scan(&a.SuccessRate.Pass, &a.SuccessRate.Average, &a.SuccessRate.Fail)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(AVG(a.score), 0),
			COALESCE(COUNT(a.id)::float8 / NULLIF((SELECT COUNT(*) FROM exams WHERE is_published), 0), 0),
			COALESCE(AVG(EXTRACT(EPOCH FROM (a.completed_at - a.started_at)) / 60.0) FILTER (WHERE a.completed_at IS NOT NULL), 0)
		FROM attempts a`,
	).Scan(&a.Averages.AverageGrade, &a.Averages.AttemptsPerExam, &a.Averages.AvgCompletionTimeMins)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// weeklyAttempts buckets attempts started in the last 8 weeks, oldest first.
// Week 8 is the current week.
func (r *AnalyticsRepository) weeklyAttempts(ctx context.Context) ([]model.WeekBucket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT
			FLOOR(EXTRACT(EPOCH FROM (NOW() - started_at)) / 604800)::int AS weeks_ago,
			COUNT(*)
		FROM attempts
		WHERE started_at > NOW() - INTERVAL '8 weeks'
		GROUP BY weeks_ago`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byWeeksAgo := make(map[int]int, 8)
	for rows.Next() {
		var weeksAgo, count int
		if err := rows.Scan(&weeksAgo, &count); err != nil {
			return nil, err
		}
		byWeeksAgo[weeksAgo] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	buckets := make([]model.WeekBucket, 0, 8)
	for i := 7; i >= 0; i-- {
		buckets = append(buckets, model.WeekBucket{Week: 8 - i, Attempts: byWeeksAgo[i]})
	}
	return buckets, nil
}
