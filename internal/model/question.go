package model

import (
	"github.com/google/uuid"
)

// MaxOptions is the fixed option-slot count per question. Unused slots are
// stored as empty strings and filtered from display.
const MaxOptions = 4

// Question represents a single exam question. Answer holds the correct
// option string and must never reach an exam taker.
type Question struct {
	ID       uuid.UUID `json:"id"`
	ExamID   uuid.UUID `json:"exam_id"`
	Text     string    `json:"text"`
	Options  []string  `json:"options"`
	Answer   string    `json:"answer,omitempty"`
	OrderNum int       `json:"order_num"`
}

// StudentQuestion is a question with the correct answer stripped.
type StudentQuestion struct {
	ID       uuid.UUID `json:"id"`
	Text     string    `json:"text"`
	Options  []string  `json:"options"`
	OrderNum int       `json:"order_num"`
}

// ForStudent strips the correct answer from a question.
func (q Question) ForStudent() StudentQuestion {
	return StudentQuestion{
		ID:       q.ID,
		Text:     q.Text,
		Options:  q.Options,
		OrderNum: q.OrderNum,
	}
}

// DisplayOptions returns the non-empty option strings in order.
func (q StudentQuestion) DisplayOptions() []string {
	opts := make([]string, 0, len(q.Options))
	for _, o := range q.Options {
		if o != "" {
			opts = append(opts, o)
		}
	}
	return opts
}

// AddQuestionRequest is the payload for adding a question to an exam.
type AddQuestionRequest struct {
	Text     string   `json:"text" binding:"required,min=1,max=2000"`
	Options  []string `json:"options" binding:"required,max=4,dive,max=500"`
	Answer   string   `json:"answer" binding:"required,max=500"`
	OrderNum int      `json:"order_num" binding:"min=0"`
}

// UpdateQuestionRequest is the payload for replacing a question's content.
type UpdateQuestionRequest struct {
	Text     string   `json:"text" binding:"required,min=1,max=2000"`
	Options  []string `json:"options" binding:"required,max=4,dive,max=500"`
	Answer   string   `json:"answer" binding:"required,max=500"`
	OrderNum int      `json:"order_num" binding:"min=0"`
}
