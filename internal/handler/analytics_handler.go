package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hakraj/exboard/internal/response"
	"github.com/hakraj/exboard/internal/service"
)

// AnalyticsHandler serves the admin dashboard and result listings.
type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(analyticsService *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

// Dashboard godoc
// GET /api/v1/admin/analytics
// Returns user counts, exam counts, the weekly attempt chart, success-rate
// buckets and averages in one payload.
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	analytics, err := h.analyticsService.Dashboard(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, analytics)
}

// Results godoc
// GET /api/v1/admin/results?exam_id=&page=&per_page=
// Lists graded attempts, newest first.
func (h *AnalyticsHandler) Results(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	var examID *uuid.UUID
	if raw := c.Query("exam_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		examID = &id
	}

	results, pagination, err := h.analyticsService.Results(c.Request.Context(), examID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": results}, pagination)
}
