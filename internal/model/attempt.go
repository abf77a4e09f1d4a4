package model

import (
	"time"

	"github.com/google/uuid"
)

// Attempt represents one student's instance of taking a specific exam.
// CompletedAt stays nil while the attempt is in progress; once set, the
// attempt and its responses are immutable.
type Attempt struct {
	ID          uuid.UUID  `json:"id"`
	ExamID      uuid.UUID  `json:"exam_id"`
	StudentID   uuid.UUID  `json:"student_id"`
	Score       *float64   `json:"score,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Responses   []Response `json:"responses"`
}

// Completed reports whether the attempt has been finalized.
func (a *Attempt) Completed() bool {
	return a.CompletedAt != nil
}

// Response is a student's answer to one question. At most one response
// exists per (attempt, question); a re-submission replaces the prior one.
type Response struct {
	ID             uuid.UUID `json:"id"`
	QuestionID     uuid.UUID `json:"question_id"`
	SelectedOption string    `json:"selected_option"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AttemptDetail is the full attempt payload served to the exam taker:
// the attempt, its exam metadata, and the questions with answers stripped.
type AttemptDetail struct {
	Attempt
	Exam ExamPaper `json:"exam"`
}

// ResponseFor returns the synced response for a question, if any.
func (a *Attempt) ResponseFor(questionID uuid.UUID) (Response, bool) {
	for _, r := range a.Responses {
		if r.QuestionID == questionID {
			return r, true
		}
	}
	return Response{}, false
}

// StartAttemptRequest carries the re-entered password required to start an
// exam attempt.
type StartAttemptRequest struct {
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// StartAttemptResponse is returned when an attempt is started (or resumed).
// ExamToken is the exam-scoped bearer credential.
type StartAttemptResponse struct {
	ExamToken string        `json:"exam_token"`
	Attempt   AttemptDetail `json:"attempt"`
}

// UpsertResponseRequest is the payload for saving one answer.
type UpsertResponseRequest struct {
	SelectedOption string `json:"selected_option" binding:"required,max=500"`
}
