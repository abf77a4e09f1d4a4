package websocket

import "time"

// Monitor event types published on an exam's Redis channel and relayed to
// connected admin sockets.
const (
	EventAttemptStarted   = "attempt_started"
	EventResponseSaved    = "response_saved"
	EventAttemptCompleted = "attempt_completed"
)

// MonitorEvent is the envelope for every live-monitor message.
type MonitorEvent struct {
	Type       string    `json:"type"`
	ExamID     string    `json:"exam_id"`
	AttemptID  string    `json:"attempt_id"`
	StudentID  string    `json:"student_id"`
	QuestionID string    `json:"question_id,omitempty"`
	Answered   int       `json:"answered,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorMessage is sent to a client before an abnormal close.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
