package portal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hakraj/exboard/internal/model"
)

// fakeAPI implements API in memory with the server's replace semantics.
type fakeAPI struct {
	mu          sync.Mutex
	attemptID   uuid.UUID
	questions   []model.StudentQuestion
	responses   map[uuid.UUID]string
	startedAt   time.Time
	completedAt *time.Time

	upsertCalls   []uuid.UUID
	completeCalls int
	upsertErr     error
	completeErr   error
	completeStall chan struct{}
}

func newFakeAPI(questionCount int) *fakeAPI {
	f := &fakeAPI{
		attemptID: uuid.New(),
		responses: make(map[uuid.UUID]string),
		startedAt: time.Now(),
	}
	for i := 0; i < questionCount; i++ {
		f.questions = append(f.questions, model.StudentQuestion{
			ID:       uuid.New(),
			Text:     "question",
			Options:  []string{"A", "B", "C", "D"},
			OrderNum: i,
		})
	}
	return f
}

func (f *fakeAPI) detailLocked() *model.AttemptDetail {
	detail := &model.AttemptDetail{
		Attempt: model.Attempt{
			ID:          f.attemptID,
			StartedAt:   f.startedAt,
			CompletedAt: f.completedAt,
		},
		Exam: model.ExamPaper{Questions: f.questions},
	}
	for qID, option := range f.responses {
		detail.Responses = append(detail.Responses, model.Response{
			ID:             uuid.New(),
			QuestionID:     qID,
			SelectedOption: option,
		})
	}
	return detail
}

func (f *fakeAPI) StartAttempt(ctx context.Context, examID uuid.UUID, password string) (*model.StartAttemptResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &model.StartAttemptResponse{ExamToken: "exam-token", Attempt: *f.detailLocked()}, nil
}

func (f *fakeAPI) GetAttempt(ctx context.Context, attemptID uuid.UUID) (*model.AttemptDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailLocked(), nil
}

func (f *fakeAPI) UpsertResponse(ctx context.Context, attemptID, questionID uuid.UUID, option string) (*model.AttemptDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls = append(f.upsertCalls, questionID)
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.responses[questionID] = option
	return f.detailLocked(), nil
}

func (f *fakeAPI) CompleteAttempt(ctx context.Context, attemptID uuid.UUID) (*model.AttemptDetail, error) {
	f.mu.Lock()
	f.completeCalls++
	stall := f.completeStall
	f.mu.Unlock()

	if stall != nil {
		<-stall
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	now := time.Now()
	f.completedAt = &now
	return f.detailLocked(), nil
}

func newTestTaker(t *testing.T, api *fakeAPI) *Taker {
	t.Helper()
	detail, err := api.GetAttempt(context.Background(), api.attemptID)
	if err != nil {
		t.Fatal(err)
	}
	taker, err := NewTaker(api, detail)
	if err != nil {
		t.Fatal(err)
	}
	return taker
}

func TestNavigationFlushesStagedAnswer(t *testing.T) {
	api := newFakeAPI(3)
	taker := newTestTaker(t, api)
	ctx := context.Background()

	q0 := api.questions[0].ID
	taker.Select("B")
	if err := taker.Next(ctx); err != nil {
		t.Fatalf("Next: %v", err)
	}

	if len(api.upsertCalls) != 1 || api.upsertCalls[0] != q0 {
		t.Fatalf("upsert calls = %v, want exactly one for q0", api.upsertCalls)
	}
	if taker.Index() != 1 {
		t.Fatalf("Index = %d, want 1", taker.Index())
	}
	if option, ok := taker.SyncedOption(q0); !ok || option != "B" {
		t.Fatalf("SyncedOption(q0) = %q,%v, want B", option, ok)
	}
	if !taker.Answered(q0) {
		t.Error("q0 not marked answered after sync")
	}
}

func TestRevisitWithoutChangeSendsNothing(t *testing.T) {
	api := newFakeAPI(2)
	taker := newTestTaker(t, api)
	ctx := context.Background()

	taker.Select("B")
	if err := taker.Next(ctx); err != nil {
		t.Fatal(err)
	}
	if err := taker.Prev(ctx); err != nil {
		t.Fatal(err)
	}
	// Back on q0 with "B" pre-filled; selecting the same option again and
	// leaving must not produce a second upsert.
	taker.Select("B")
	if err := taker.Next(ctx); err != nil {
		t.Fatal(err)
	}

	if len(api.upsertCalls) != 1 {
		t.Fatalf("upsert calls = %d, want 1", len(api.upsertCalls))
	}
}

func TestAnswerReplace(t *testing.T) {
	api := newFakeAPI(2)
	taker := newTestTaker(t, api)
	ctx := context.Background()

	q0 := api.questions[0].ID
	taker.Select("A")
	if err := taker.Next(ctx); err != nil {
		t.Fatal(err)
	}
	if err := taker.Prev(ctx); err != nil {
		t.Fatal(err)
	}
	taker.Select("B")
	if err := taker.Next(ctx); err != nil {
		t.Fatal(err)
	}

	if option, _ := taker.SyncedOption(q0); option != "B" {
		t.Fatalf("SyncedOption(q0) = %q, want B", option)
	}
	if taker.AnsweredCount() != 1 {
		t.Fatalf("AnsweredCount = %d, want 1 (replace, not duplicate)", taker.AnsweredCount())
	}
	if len(api.responses) != 1 {
		t.Fatalf("server holds %d responses, want 1", len(api.responses))
	}
}

func TestNavigationBounds(t *testing.T) {
	api := newFakeAPI(3)
	taker := newTestTaker(t, api)
	ctx := context.Background()

	if taker.CanPrev() {
		t.Error("CanPrev true at index 0")
	}
	if !taker.CanNext() {
		t.Error("CanNext false at index 0")
	}

	// Out-of-bounds jumps are no-ops.
	if err := taker.Jump(ctx, -1); err != nil || taker.Index() != 0 {
		t.Errorf("Jump(-1): err=%v index=%d", err, taker.Index())
	}
	if err := taker.Jump(ctx, 3); err != nil || taker.Index() != 0 {
		t.Errorf("Jump(3): err=%v index=%d", err, taker.Index())
	}

	if err := taker.Jump(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if taker.CanNext() {
		t.Error("CanNext true at last index")
	}
	if !taker.CanPrev() {
		t.Error("CanPrev false at last index")
	}
}

func TestUpsertFailureDoesNotBlockNavigation(t *testing.T) {
	api := newFakeAPI(2)
	taker := newTestTaker(t, api)
	ctx := context.Background()

	q0 := api.questions[0].ID
	api.upsertErr = errors.New("network down")

	taker.Select("C")
	err := taker.Next(ctx)
	if err == nil {
		t.Fatal("expected sync error")
	}
	if taker.Index() != 1 {
		t.Fatalf("Index = %d, want 1: the move must happen despite the failure", taker.Index())
	}
	if taker.Answered(q0) {
		t.Error("q0 marked answered without server confirmation")
	}

	// The staged value survives; the next navigation retries it.
	api.upsertErr = nil
	if err := taker.Prev(ctx); err != nil {
		t.Fatal(err)
	}
	if option, ok := taker.SyncedOption(q0); !ok || option != "C" {
		t.Fatalf("SyncedOption(q0) after retry = %q,%v, want C", option, ok)
	}
}

func TestPrefillFromExistingResponses(t *testing.T) {
	api := newFakeAPI(2)
	q1 := api.questions[1].ID
	api.responses[q1] = "D"

	taker := newTestTaker(t, api)
	if option, ok := taker.Displayed(q1); !ok || option != "D" {
		t.Fatalf("Displayed(q1) = %q,%v, want D from the fetched attempt", option, ok)
	}
	if taker.AnsweredCount() != 1 {
		t.Fatalf("AnsweredCount = %d, want 1", taker.AnsweredCount())
	}
}

func TestFinalizeOnce(t *testing.T) {
	api := newFakeAPI(1)
	taker := newTestTaker(t, api)
	ctx := context.Background()

	final, err := taker.Finalize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if final.CompletedAt == nil {
		t.Fatal("finalized attempt has no completion timestamp")
	}

	// Repeat finalize returns the finalized attempt without a second call.
	again, err := taker.Finalize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if again != final {
		t.Error("repeat Finalize returned a different detail")
	}
	if api.completeCalls != 1 {
		t.Fatalf("complete calls = %d, want 1", api.completeCalls)
	}
}

func TestFinalizeRace(t *testing.T) {
	api := newFakeAPI(1)
	api.completeStall = make(chan struct{})
	taker := newTestTaker(t, api)
	ctx := context.Background()

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := taker.Finalize(ctx)
			results <- err
		}()
	}

	// One call reaches the API and stalls; the other must be rejected as
	// in flight rather than issuing a second request.
	var inFlightErr error
	select {
	case inFlightErr = <-results:
	case <-time.After(time.Second):
		t.Fatal("neither finalize resolved")
	}
	if !errors.Is(inFlightErr, ErrSubmitInFlight) {
		t.Fatalf("racing finalize error = %v, want ErrSubmitInFlight", inFlightErr)
	}

	close(api.completeStall)
	if err := <-results; err != nil {
		t.Fatalf("winning finalize failed: %v", err)
	}
	if api.completeCalls != 1 {
		t.Fatalf("complete calls = %d, want 1", api.completeCalls)
	}
}

func TestFinalizeFailureAllowsRetry(t *testing.T) {
	api := newFakeAPI(1)
	api.completeErr = errors.New("server unavailable")
	taker := newTestTaker(t, api)
	ctx := context.Background()

	if _, err := taker.Finalize(ctx); err == nil {
		t.Fatal("expected finalize failure")
	}
	if taker.Submitted() {
		t.Fatal("attempt marked submitted after a failed finalize")
	}

	api.completeErr = nil
	if _, err := taker.Finalize(ctx); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !taker.Submitted() {
		t.Fatal("attempt not submitted after successful retry")
	}
	if api.completeCalls != 2 {
		t.Fatalf("complete calls = %d, want 2", api.completeCalls)
	}
}

// TestTwoQuestionWalkthrough drives a full attempt: answer, navigate,
// revisit, then finalize when the countdown hits zero.
func TestTwoQuestionWalkthrough(t *testing.T) {
	api := newFakeAPI(2)
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	api.startedAt = start

	taker := newTestTaker(t, api)
	ctx := context.Background()

	if got := Remaining(start, 5, start.Add(10*time.Second)); got != 290 {
		t.Fatalf("remaining at T0+10s = %d, want 290", got)
	}

	q0 := api.questions[0].ID
	taker.Select("B")
	if err := taker.Next(ctx); err != nil {
		t.Fatal(err)
	}
	if len(api.upsertCalls) != 1 {
		t.Fatalf("upsert calls = %d, want 1", len(api.upsertCalls))
	}

	// Back without changing the selection: no new upsert.
	if err := taker.Prev(ctx); err != nil {
		t.Fatal(err)
	}
	if len(api.upsertCalls) != 1 {
		t.Fatalf("upsert calls after revisit = %d, want 1", len(api.upsertCalls))
	}
	if option, _ := taker.Displayed(q0); option != "B" {
		t.Fatalf("Displayed(q0) = %q, want B", option)
	}

	// Countdown at the deadline expires and submits exactly once.
	now := start.Add(300 * time.Second)
	c := NewCountdown(start, 5, func() time.Time { return now })

	finalizes := 0
	c.Run(ctx, nil, func() {
		finalizes++
		if _, err := taker.Finalize(ctx); err != nil {
			t.Errorf("auto-submit failed: %v", err)
		}
	})

	if finalizes != 1 {
		t.Fatalf("auto-submit fired %d times, want 1", finalizes)
	}
	if api.completeCalls != 1 {
		t.Fatalf("complete calls = %d, want 1", api.completeCalls)
	}
	if !taker.Submitted() {
		t.Fatal("attempt not submitted")
	}
}
