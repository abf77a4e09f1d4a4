package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hakraj/exboard/internal/model"
	"github.com/hakraj/exboard/internal/portal"
)

// stubAPI records completion calls so tests can assert the countdown
// submitted without any keyboard input.
type stubAPI struct {
	mu            sync.Mutex
	detail        model.AttemptDetail
	completeCalls int
}

func newStubAPI() *stubAPI {
	return &stubAPI{
		detail: model.AttemptDetail{
			Attempt: model.Attempt{ID: uuid.New(), StartedAt: time.Now().Add(-31 * time.Minute)},
			Exam: model.ExamPaper{
				TimeLimit: 30,
				Questions: []model.StudentQuestion{
					{ID: uuid.New(), Text: "question", Options: []string{"A", "B"}},
				},
			},
		},
	}
}

func (s *stubAPI) StartAttempt(ctx context.Context, examID uuid.UUID, password string) (*model.StartAttemptResponse, error) {
	return &model.StartAttemptResponse{Attempt: s.detail}, nil
}

func (s *stubAPI) GetAttempt(ctx context.Context, attemptID uuid.UUID) (*model.AttemptDetail, error) {
	d := s.detail
	return &d, nil
}

func (s *stubAPI) UpsertResponse(ctx context.Context, attemptID, questionID uuid.UUID, option string) (*model.AttemptDetail, error) {
	d := s.detail
	return &d, nil
}

func (s *stubAPI) CompleteAttempt(ctx context.Context, attemptID uuid.UUID) (*model.AttemptDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completeCalls++
	now := time.Now()
	d := s.detail
	d.CompletedAt = &now
	return &d, nil
}

func (s *stubAPI) completed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeCalls
}

// The countdown must submit the attempt itself when time runs out, even
// though the input loop sits blocked on a read the whole time.
func TestWatchExpirySubmitsWithoutInput(t *testing.T) {
	api := newStubAPI()
	taker, err := portal.NewTaker(api, &api.detail)
	if err != nil {
		t.Fatal(err)
	}

	// Clock already past the deadline: Run fires onExpire on its first
	// emit and returns, so watchExpiry completes synchronously.
	clock := func() time.Time { return api.detail.StartedAt.Add(31 * time.Minute) }
	countdown := portal.NewCountdown(api.detail.StartedAt, api.detail.Exam.TimeLimit, clock)

	watchExpiry(context.Background(), countdown, taker)

	if !taker.Submitted() {
		t.Fatal("attempt not submitted after expiry")
	}
	if got := api.completed(); got != 1 {
		t.Fatalf("complete calls = %d, want 1", got)
	}
}

// A second expiry pass after the attempt is already submitted must not
// re-submit.
func TestWatchExpiryIdempotentAfterSubmit(t *testing.T) {
	api := newStubAPI()
	taker, err := portal.NewTaker(api, &api.detail)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := taker.Finalize(context.Background()); err != nil {
		t.Fatal(err)
	}

	clock := func() time.Time { return api.detail.StartedAt.Add(31 * time.Minute) }
	countdown := portal.NewCountdown(api.detail.StartedAt, api.detail.Exam.TimeLimit, clock)
	watchExpiry(context.Background(), countdown, taker)

	if got := api.completed(); got != 1 {
		t.Fatalf("complete calls = %d, want 1", got)
	}
}
