package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hakraj/exboard/internal/config"
	"github.com/hakraj/exboard/internal/model"
	"github.com/hakraj/exboard/internal/repository"
	ws "github.com/hakraj/exboard/internal/websocket"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain errors.
var (
	ErrNotAttemptOwner   = errors.New("attempt belongs to another student")
	ErrAttemptCompleted  = errors.New("attempt is already completed")
	ErrDeadlinePassed    = errors.New("attempt deadline has passed")
	ErrQuestionNotInExam = errors.New("question does not belong to this exam")
)

// AttemptService drives the student exam lifecycle: start, answer, complete.
type AttemptService struct {
	attemptRepo *repository.AttemptRepository
	userRepo    *repository.UserRepository
	examService *ExamService
	authService *AuthService
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptRepo *repository.AttemptRepository,
	userRepo *repository.UserRepository,
	examService *ExamService,
	authService *AuthService,
	rdb *redis.Client,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptRepo: attemptRepo,
		userRepo:    userRepo,
		examService: examService,
		authService: authService,
		rdb:         rdb,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// Start begins (or resumes) an attempt for the student. The student's
// password is re-verified even though they hold a valid access token, and
// the returned exam token is scoped to this single attempt.
func (s *AttemptService) Start(ctx context.Context, studentID, examID uuid.UUID, password string) (*model.StartAttemptResponse, error) {
	student, err := s.userRepo.GetByID(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if err := s.authService.CheckPassword(student.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	paper, err := s.examService.GetExamPaper(ctx, examID)
	if err != nil {
		return nil, err
	}

	attempt, err := s.attemptRepo.GetByExamAndStudent(ctx, examID, studentID)
	switch {
	case err == nil:
		// Resume path: a completed attempt cannot be re-entered.
		if attempt.Completed() {
			return nil, ErrAttemptCompleted
		}
	case errors.Is(err, pgx.ErrNoRows):
		attempt = &model.Attempt{ExamID: examID, StudentID: studentID}
		if err := s.attemptRepo.Create(ctx, attempt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Lost a concurrent start race; the winner's row is ours.
				attempt, err = s.attemptRepo.GetByExamAndStudent(ctx, examID, studentID)
				if err != nil {
					return nil, fmt.Errorf("get attempt after race: %w", err)
				}
				if attempt.Completed() {
					return nil, ErrAttemptCompleted
				}
			} else {
				return nil, fmt.Errorf("create attempt: %w", err)
			}
		} else {
			s.publishMonitorEvent(examID, ws.MonitorEvent{
				Type:      ws.EventAttemptStarted,
				ExamID:    examID.String(),
				AttemptID: attempt.ID.String(),
				StudentID: studentID.String(),
				Timestamp: time.Now(),
			})
		}
	default:
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	token, err := s.authService.GenerateExamToken(studentID, attempt.ID, student.Role, paper.Deadline(attempt.StartedAt))
	if err != nil {
		return nil, fmt.Errorf("generate exam token: %w", err)
	}

	detail, err := s.buildDetail(ctx, attempt, paper)
	if err != nil {
		return nil, err
	}

	return &model.StartAttemptResponse{
		ExamToken: token,
		Attempt:   *detail,
	}, nil
}

// Get returns the attempt with its exam paper and saved responses. Only the
// owning student may read it.
func (s *AttemptService) Get(ctx context.Context, attemptID, studentID uuid.UUID) (*model.AttemptDetail, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	paper, err := s.examService.GetExamPaper(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(ctx, attempt, paper)
}

// UpsertResponse records the student's selected option for a question,
// replacing any earlier selection. The updated attempt is returned so the
// client can reconcile its local state from the server's view.
func (s *AttemptService) UpsertResponse(ctx context.Context, attemptID, studentID, questionID uuid.UUID, selectedOption string) (*model.AttemptDetail, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}
	if attempt.Completed() {
		return nil, ErrAttemptCompleted
	}

	paper, err := s.examService.GetExamPaper(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	if !paperHasQuestion(paper, questionID) {
		return nil, ErrQuestionNotInExam
	}
	// The exam token stays valid for a grace window past the deadline so
	// the final Complete call can land, but answers themselves stop at
	// the deadline.
	if time.Now().After(paper.Deadline(attempt.StartedAt)) {
		return nil, ErrDeadlinePassed
	}

	if err := s.attemptRepo.UpsertResponse(ctx, attemptID, questionID, selectedOption); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Complete won the race after our ownedAttempt read.
			return nil, ErrAttemptCompleted
		}
		return nil, fmt.Errorf("upsert response: %w", err)
	}

	detail, err := s.buildDetail(ctx, attempt, paper)
	if err != nil {
		return nil, err
	}

	s.publishMonitorEvent(attempt.ExamID, ws.MonitorEvent{
		Type:       ws.EventResponseSaved,
		ExamID:     attempt.ExamID.String(),
		AttemptID:  attemptID.String(),
		StudentID:  studentID.String(),
		QuestionID: questionID.String(),
		Answered:   len(detail.Responses),
		Timestamp:  time.Now(),
	})
	return detail, nil
}

// Complete finalizes the attempt. The completion timestamp is written once;
// repeating the call returns the already-completed attempt unchanged, so the
// operation is safe to retry.
func (s *AttemptService) Complete(ctx context.Context, attemptID, studentID uuid.UUID) (*model.AttemptDetail, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return nil, err
	}

	completedAt, err := s.attemptRepo.Complete(ctx, attemptID)
	switch {
	case err == nil:
		attempt.CompletedAt = &completedAt
		s.enqueueGrading(ctx, attemptID)
		s.publishMonitorEvent(attempt.ExamID, ws.MonitorEvent{
			Type:      ws.EventAttemptCompleted,
			ExamID:    attempt.ExamID.String(),
			AttemptID: attemptID.String(),
			StudentID: studentID.String(),
			Timestamp: completedAt,
		})
	case errors.Is(err, pgx.ErrNoRows):
		// Already finalized by an earlier call; keep the stored timestamp.
	default:
		return nil, fmt.Errorf("complete attempt: %w", err)
	}

	paper, err := s.examService.GetExamPaper(ctx, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(ctx, attempt, paper)
}

func (s *AttemptService) ownedAttempt(ctx context.Context, attemptID, studentID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != studentID {
		return nil, ErrNotAttemptOwner
	}
	return attempt, nil
}

func (s *AttemptService) buildDetail(ctx context.Context, attempt *model.Attempt, paper *model.ExamPaper) (*model.AttemptDetail, error) {
	responses, err := s.attemptRepo.ListResponses(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	if responses == nil {
		responses = []model.Response{}
	}
	attempt.Responses = responses
	return &model.AttemptDetail{
		Attempt: *attempt,
		Exam:    *paper,
	}, nil
}

func (s *AttemptService) publishMonitorEvent(examID uuid.UUID, event ws.MonitorEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to marshal monitor event")
		return
	}
	// Monitoring is best effort; a publish failure never fails the request.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID.String()), payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to publish monitor event")
	}
}

func (s *AttemptService) enqueueGrading(ctx context.Context, attemptID uuid.UUID) {
	if err := s.rdb.LPush(ctx, config.WorkerKey.GradeAttemptsQueue, attemptID.String()).Err(); err != nil {
		s.log.Error().Err(err).Str("attempt_id", attemptID.String()).Msg("Failed to enqueue attempt for grading")
	}
}

func paperHasQuestion(paper *model.ExamPaper, questionID uuid.UUID) bool {
	for _, q := range paper.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}
