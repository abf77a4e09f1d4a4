package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hakraj/exboard/internal/config"
	"github.com/hakraj/exboard/internal/repository"
	"github.com/hakraj/exboard/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	GradePollTimeout = 1 * time.Second
	GradeMaxRetries  = 3
)

// GradingWorker consumes completed attempt IDs from the Redis queue, grades
// each against the cached answer key and writes the score back to PostgreSQL.
type GradingWorker struct {
	attemptRepo  *repository.AttemptRepository
	questionRepo *repository.QuestionRepository
	examService  *service.ExamService
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewGradingWorker creates a new GradingWorker.
func NewGradingWorker(
	attemptRepo *repository.AttemptRepository,
	questionRepo *repository.QuestionRepository,
	examService *service.ExamService,
	rdb *redis.Client,
	log zerolog.Logger,
) *GradingWorker {
	return &GradingWorker{
		attemptRepo:  attemptRepo,
		questionRepo: questionRepo,
		examService:  examService,
		rdb:          rdb,
		log:          log.With().Str("component", "grading_worker").Logger(),
	}
}

// Start runs the worker loop until the context is cancelled. Items left in
// the queue at shutdown are drained with a background context first.
func (w *GradingWorker) Start(ctx context.Context) {
	w.log.Info().Msg("GradingWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Draining grading queue...")
			w.drain()
			return

		default:
			item, err := w.rdb.BLPop(ctx, GradePollTimeout, config.WorkerKey.GradeAttemptsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}
			w.gradeSafe(ctx, item[1])
		}
	}
}

// drain grades whatever remains in the queue without blocking.
func (w *GradingWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.GradeAttemptsQueue).Result()
		if err != nil {
			if err != redis.Nil {
				w.log.Error().Err(err).Msg("Drain LPop error")
			}
			return
		}
		w.gradeSafe(ctx, raw)
	}
}

// gradeSafe grades one attempt; on failure the item is pushed back for
// another pass, bounded by a retry counter key.
func (w *GradingWorker) gradeSafe(ctx context.Context, rawID string) {
	attemptID, err := uuid.Parse(rawID)
	if err != nil {
		w.log.Error().Str("raw", rawID).Msg("Invalid attempt ID in queue, dropping")
		return
	}

	if err := w.grade(ctx, attemptID); err != nil {
		w.log.Error().Err(err).Str("attempt_id", rawID).Msg("Grading failed")
		w.requeue(ctx, rawID)
	}
}

func (w *GradingWorker) grade(ctx context.Context, attemptID uuid.UUID) error {
	attempt, err := w.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("get attempt: %w", err)
	}
	if !attempt.Completed() {
		// Complete races the enqueue only when the queue item is stale;
		// scoring an open attempt would freeze a partial answer set.
		return fmt.Errorf("attempt %s is not completed", attemptID)
	}

	answerKey, err := w.answerKey(ctx, attempt.ExamID)
	if err != nil {
		return err
	}
	if len(answerKey) == 0 {
		return fmt.Errorf("empty answer key for exam %s", attempt.ExamID)
	}

	responses, err := w.attemptRepo.ListResponses(ctx, attemptID)
	if err != nil {
		return fmt.Errorf("list responses: %w", err)
	}

	correct := 0
	for _, r := range responses {
		if want, ok := answerKey[r.QuestionID.String()]; ok && want == r.SelectedOption {
			correct++
		}
	}
	score := float64(correct) / float64(len(answerKey)) * 100

	if err := w.attemptRepo.SetScore(ctx, attemptID, score); err != nil {
		return fmt.Errorf("set score: %w", err)
	}

	w.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("correct", correct).
		Int("total", len(answerKey)).
		Float64("score", score).
		Msg("Attempt graded")
	return nil
}

// answerKey prefers the Redis hash and falls back to PostgreSQL, so grading
// survives a cache flush.
func (w *GradingWorker) answerKey(ctx context.Context, examID uuid.UUID) (map[string]string, error) {
	key, err := w.examService.GetAnswerKey(ctx, examID)
	if err == nil {
		return key, nil
	}
	w.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Answer key cache miss, reading from database")

	questions, err := w.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	key = make(map[string]string, len(questions))
	for _, q := range questions {
		key[q.ID.String()] = q.Answer
	}
	return key, nil
}

func (w *GradingWorker) requeue(ctx context.Context, rawID string) {
	retryKey := fmt.Sprintf("grade:%s:retries", rawID)
	retries, err := w.rdb.Incr(ctx, retryKey).Result()
	if err != nil {
		w.log.Error().Err(err).Msg("Retry counter error, dropping item")
		return
	}
	w.rdb.Expire(ctx, retryKey, time.Hour)

	if retries > GradeMaxRetries {
		w.log.Error().Str("attempt_id", rawID).Msg("Retry budget exhausted, dropping item")
		return
	}
	if err := w.rdb.RPush(ctx, config.WorkerKey.GradeAttemptsQueue, rawID).Err(); err != nil {
		w.log.Error().Err(err).Msg("Requeue failed")
	}
}
