package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/hakraj/exboard/internal/model"
	"github.com/hakraj/exboard/internal/repository"
	"github.com/hakraj/exboard/internal/response"
)

// AnalyticsService serves the admin dashboard aggregations and result lists.
type AnalyticsService struct {
	analyticsRepo *repository.AnalyticsRepository
	attemptRepo   *repository.AttemptRepository
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(analyticsRepo *repository.AnalyticsRepository, attemptRepo *repository.AttemptRepository) *AnalyticsService {
	return &AnalyticsService{
		analyticsRepo: analyticsRepo,
		attemptRepo:   attemptRepo,
	}
}

// Dashboard collects the full dashboard aggregation in one pass.
func (s *AnalyticsService) Dashboard(ctx context.Context) (*model.Analytics, error) {
	return s.analyticsRepo.Collect(ctx)
}

// Results lists graded attempts, newest first, optionally scoped to one exam.
func (s *AnalyticsService) Results(ctx context.Context, examID *uuid.UUID, page, perPage int) ([]repository.AttemptResult, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	results, total, err := s.attemptRepo.ListResults(ctx, examID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if results == nil {
		results = []repository.AttemptResult{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return results, pagination, nil
}
