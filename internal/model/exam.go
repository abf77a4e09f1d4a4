package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam represents an exam entity.
type Exam struct {
	ID               uuid.UUID  `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	TimeLimitMinutes int        `json:"time_limit"`
	IsPublished      bool       `json:"is_published"`
	CreatedBy        uuid.UUID  `json:"created_by"`
	Questions        []Question `json:"questions,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ExamPaper is the Redis-cached payload served to exam takers. Correct
// answers are never part of it.
type ExamPaper struct {
	ExamID      uuid.UUID         `json:"exam_id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	TimeLimit   int               `json:"time_limit"`
	Questions   []StudentQuestion `json:"questions"`
}

// Deadline returns the absolute submission deadline for an attempt of this
// paper started at the given time. Answer writes past it are rejected; the
// exam token outlives it only by the completion grace window.
func (p *ExamPaper) Deadline(startedAt time.Time) time.Time {
	return startedAt.Add(time.Duration(p.TimeLimit) * time.Minute)
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title            string `json:"title" binding:"required,min=3,max=255"`
	Description      string `json:"description" binding:"omitempty,max=2000"`
	TimeLimitMinutes int    `json:"time_limit" binding:"required,min=1,max=480"`
}

// UpdateExamRequest is the payload for updating an unpublished exam.
type UpdateExamRequest struct {
	Title            string `json:"title" binding:"omitempty,min=3,max=255"`
	Description      string `json:"description" binding:"omitempty,max=2000"`
	TimeLimitMinutes int    `json:"time_limit" binding:"omitempty,min=1,max=480"`
}
