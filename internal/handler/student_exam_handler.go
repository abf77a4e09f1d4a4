package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hakraj/exboard/internal/middleware"
	"github.com/hakraj/exboard/internal/model"
	"github.com/hakraj/exboard/internal/response"
	"github.com/hakraj/exboard/internal/service"
	"github.com/hakraj/exboard/internal/validator"
	"github.com/jackc/pgx/v5"
)

// StudentExamHandler handles the exam-taking endpoints: listing published
// exams, starting an attempt, saving answers and completing.
type StudentExamHandler struct {
	examService    *service.ExamService
	attemptService *service.AttemptService
}

// NewStudentExamHandler creates a new StudentExamHandler.
func NewStudentExamHandler(examService *service.ExamService, attemptService *service.AttemptService) *StudentExamHandler {
	return &StudentExamHandler{
		examService:    examService,
		attemptService: attemptService,
	}
}

// ListExams godoc
// GET /api/v1/student/exams?page=&per_page=
// Lists published exams only.
func (h *StudentExamHandler) ListExams(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	exams, pagination, err := h.examService.List(c.Request.Context(), true, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": exams}, pagination)
}

// StartAttempt godoc
// POST /api/v1/student/exams/:exam_id/start
// Re-verifies the student's password, then starts or resumes the attempt
// and returns an exam-scoped token.
func (h *StudentExamHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.attemptService.Start(c.Request.Context(), claims.UserID, examID, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		case errors.Is(err, service.ErrExamNotPublished), errors.Is(err, pgx.ErrNoRows):
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		case errors.Is(err, service.ErrAttemptCompleted):
			response.Fail(c, http.StatusConflict, response.ErrAttemptCompleted)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetAttempt godoc
// GET /api/v1/student/attempts/:attempt_id
// Returns the attempt, its paper (answers stripped) and saved responses.
func (h *StudentExamHandler) GetAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	detail, err := h.attemptService.Get(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": detail})
}

// UpsertResponse godoc
// PUT /api/v1/student/attempts/:attempt_id/responses/:question_id
// Saves (or replaces) the student's selected option and returns the updated
// attempt so the client can reconcile.
func (h *StudentExamHandler) UpsertResponse(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	questionID, err := uuid.Parse(c.Param("question_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.UpsertResponseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	detail, err := h.attemptService.UpsertResponse(c.Request.Context(), attemptID, claims.UserID, questionID, req.SelectedOption)
	if err != nil {
		failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": detail})
}

// CompleteAttempt godoc
// PUT /api/v1/student/attempts/:attempt_id/complete
// Finalizes the attempt. Safe to retry: a second call returns the attempt
// with the original completion timestamp.
func (h *StudentExamHandler) CompleteAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	detail, err := h.attemptService.Complete(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": detail})
}

// failAttempt maps attempt service errors to responses.
func failAttempt(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotAttemptOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotAttemptOwner)
	case errors.Is(err, service.ErrAttemptCompleted):
		response.Fail(c, http.StatusConflict, response.ErrAttemptCompleted)
	case errors.Is(err, service.ErrDeadlinePassed):
		response.Fail(c, http.StatusConflict, response.ErrDeadlinePassed)
	case errors.Is(err, service.ErrQuestionNotInExam):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrQuestionNotInExam)
	case errors.Is(err, service.ErrExamNotPublished):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
