package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hakraj/exboard/internal/config"
	"github.com/hakraj/exboard/internal/model"
	"github.com/hakraj/exboard/internal/repository"
	"github.com/hakraj/exboard/internal/response"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain errors.
var (
	ErrNotExamAuthor    = errors.New("not the author of this exam")
	ErrNoQuestions      = errors.New("exam has no questions, cannot publish")
	ErrExamPublished    = errors.New("exam is already published")
	ErrExamNotPublished = errors.New("exam is not published")
)

// ExamService handles exam business logic and Redis caching.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "exam_service").Logger(),
	}
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.examRepo.GetByID(ctx, id)
}

// GetWithQuestions retrieves an exam together with its questions (answers
// included — author/admin view only).
func (s *ExamService) GetWithQuestions(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionRepo.ListByExam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	exam.Questions = questions
	return exam, nil
}

// List retrieves exams with pagination.
func (s *ExamService) List(ctx context.Context, publishedOnly bool, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	exams, total, err := s.examRepo.ListPaginated(ctx, publishedOnly, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return exams, pagination, nil
}

// Create inserts a new unpublished exam.
func (s *ExamService) Create(ctx context.Context, exam *model.Exam) error {
	return s.examRepo.Create(ctx, exam)
}

// Update modifies an unpublished exam owned by the author.
func (s *ExamService) Update(ctx context.Context, authorID uuid.UUID, exam *model.Exam) error {
	existing, err := s.examRepo.GetByID(ctx, exam.ID)
	if err != nil {
		return err
	}
	if existing.CreatedBy != authorID {
		return ErrNotExamAuthor
	}
	if existing.IsPublished {
		return ErrExamPublished
	}
	return s.examRepo.Update(ctx, exam)
}

// Delete removes an unpublished exam owned by the author.
func (s *ExamService) Delete(ctx context.Context, id, authorID uuid.UUID) error {
	existing, err := s.examRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.CreatedBy != authorID {
		return ErrNotExamAuthor
	}
	if existing.IsPublished {
		return ErrExamPublished
	}
	return s.examRepo.Delete(ctx, id)
}

// Publish flips the publication flag and caches the student paper and
// answer key in Redis. An exam without questions cannot be published.
func (s *ExamService) Publish(ctx context.Context, examID, authorID uuid.UUID) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return fmt.Errorf("get exam: %w", err)
	}

	if exam.CreatedBy != authorID {
		return ErrNotExamAuthor
	}
	if exam.IsPublished {
		return ErrExamPublished
	}

	if err := s.WarmExamCache(ctx, exam); err != nil {
		return err
	}

	if err := s.examRepo.SetPublished(ctx, examID, true); err != nil {
		return fmt.Errorf("set published: %w", err)
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam published")
	return nil
}

// WarmExamCache loads an exam's student paper and answer key from
// PostgreSQL into Redis. Used by Publish and by startup prewarming.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	studentQuestions := make([]model.StudentQuestion, len(questions))
	for i, q := range questions {
		studentQuestions[i] = q.ForStudent()
	}

	paper := model.ExamPaper{
		ExamID:      exam.ID,
		Title:       exam.Title,
		Description: exam.Description,
		TimeLimit:   exam.TimeLimitMinutes,
		Questions:   studentQuestions,
	}

	paperJSON, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}

	answerKey := make(map[string]interface{}, len(questions))
	for _, q := range questions {
		answerKey[q.ID.String()] = q.Answer
	}

	// Cache both atomically via pipeline.
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamPaperKey(exam.ID.String()), paperJSON, 0)
	pipe.Del(ctx, config.CacheKey.ExamAnswerKey(exam.ID.String()))
	pipe.HSet(ctx, config.CacheKey.ExamAnswerKey(exam.ID.String()), answerKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published exams into Redis on startup, so the
// first exam takers never race a lazy cache fill.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	warmed := 0
	for i := range exams {
		if err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

// GetExamPaper retrieves the cached student paper from Redis, falling back
// to PostgreSQL on a cache miss (self-healing).
func (s *ExamService) GetExamPaper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	key := config.CacheKey.ExamPaperKey(examID.String())
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var paper model.ExamPaper
		if err := json.Unmarshal(data, &paper); err != nil {
			return nil, fmt.Errorf("unmarshal paper: %w", err)
		}
		return &paper, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get paper: %w", err)
	}

	// Cache miss: rebuild from the source of truth.
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if !exam.IsPublished {
		return nil, ErrExamNotPublished
	}
	if err := s.WarmExamCache(ctx, exam); err != nil {
		return nil, err
	}
	return s.GetExamPaper(ctx, examID)
}

// GetAnswerKey retrieves the answer key from Redis for grading.
func (s *ExamService) GetAnswerKey(ctx context.Context, examID uuid.UUID) (map[string]string, error) {
	key := config.CacheKey.ExamAnswerKey(examID.String())
	result, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	if len(result) == 0 {
		return nil, errors.New("answer key not found in cache")
	}
	return result, nil
}

// ─── Question management (unpublished exams only) ──────────────────────────

// AddQuestion appends a question to an unpublished exam.
func (s *ExamService) AddQuestion(ctx context.Context, authorID uuid.UUID, q *model.Question) error {
	exam, err := s.examRepo.GetByID(ctx, q.ExamID)
	if err != nil {
		return err
	}
	if exam.CreatedBy != authorID {
		return ErrNotExamAuthor
	}
	if exam.IsPublished {
		return ErrExamPublished
	}
	q.Options = padOptions(q.Options)
	return s.questionRepo.Create(ctx, q)
}

// UpdateQuestion replaces a question's content on an unpublished exam.
func (s *ExamService) UpdateQuestion(ctx context.Context, authorID uuid.UUID, q *model.Question) error {
	existing, err := s.questionRepo.GetByID(ctx, q.ID)
	if err != nil {
		return err
	}
	exam, err := s.examRepo.GetByID(ctx, existing.ExamID)
	if err != nil {
		return err
	}
	if exam.CreatedBy != authorID {
		return ErrNotExamAuthor
	}
	if exam.IsPublished {
		return ErrExamPublished
	}
	q.ExamID = existing.ExamID
	q.Options = padOptions(q.Options)
	return s.questionRepo.Update(ctx, q)
}

// DeleteQuestion removes a question from an unpublished exam.
func (s *ExamService) DeleteQuestion(ctx context.Context, authorID, questionID uuid.UUID) error {
	existing, err := s.questionRepo.GetByID(ctx, questionID)
	if err != nil {
		return err
	}
	exam, err := s.examRepo.GetByID(ctx, existing.ExamID)
	if err != nil {
		return err
	}
	if exam.CreatedBy != authorID {
		return ErrNotExamAuthor
	}
	if exam.IsPublished {
		return ErrExamPublished
	}
	return s.questionRepo.Delete(ctx, questionID)
}

// padOptions normalizes the options slice to the fixed slot count; unused
// slots stay as empty strings and are filtered from display.
func padOptions(opts []string) []string {
	padded := make([]string, model.MaxOptions)
	copy(padded, opts)
	return padded
}
