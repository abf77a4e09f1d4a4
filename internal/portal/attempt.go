package portal

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/hakraj/exboard/internal/model"
)

// Finalize guard errors.
var (
	ErrSubmitInFlight = errors.New("a submission is already in flight")
	ErrNoQuestions    = errors.New("attempt has no questions")
)

// Taker drives one student through an attempt: it tracks the active
// question index, stages the current selection locally and syncs it to the
// server on navigation, and finalizes the attempt exactly once.
//
// Synced state is reconciled strictly from server responses, never assumed
// optimistically, so what the grid displays always matches what the server
// will grade.
type Taker struct {
	mu  sync.Mutex
	api API

	attemptID uuid.UUID
	questions []model.StudentQuestion

	index  int
	staged map[uuid.UUID]string
	synced map[uuid.UUID]string

	submitting bool
	submitted  bool
	final      *model.AttemptDetail
}

// NewTaker builds a Taker from a freshly fetched attempt. The synced set is
// seeded from the attempt's existing responses so revisited questions
// pre-fill their earlier choice.
func NewTaker(api API, detail *model.AttemptDetail) (*Taker, error) {
	if len(detail.Exam.Questions) == 0 {
		return nil, ErrNoQuestions
	}

	t := &Taker{
		api:       api,
		attemptID: detail.ID,
		questions: detail.Exam.Questions,
		staged:    make(map[uuid.UUID]string),
		synced:    make(map[uuid.UUID]string),
	}
	for _, r := range detail.Responses {
		t.synced[r.QuestionID] = r.SelectedOption
	}
	return t, nil
}

// Index returns the active question index.
func (t *Taker) Index() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index
}

// Question returns the active question.
func (t *Taker) Question() model.StudentQuestion {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.questions[t.index]
}

// Count returns the number of questions.
func (t *Taker) Count() int {
	return len(t.questions)
}

// CanPrev reports whether backward navigation is possible.
func (t *Taker) CanPrev() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index > 0
}

// CanNext reports whether forward navigation is possible.
func (t *Taker) CanNext() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.index < len(t.questions)-1
}

// Select stages an option for the active question. Nothing is sent until
// the student navigates away. Re-selecting the option the server already
// holds un-stages, so revisiting without a change costs no network call.
func (t *Taker) Select(option string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	qID := t.questions[t.index].ID
	if t.synced[qID] == option {
		delete(t.staged, qID)
		return
	}
	t.staged[qID] = option
}

// Displayed returns the option to show for a question: the staged choice
// if one exists, otherwise the last server-confirmed one.
func (t *Taker) Displayed(questionID uuid.UUID) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if option, ok := t.staged[questionID]; ok {
		return option, true
	}
	option, ok := t.synced[questionID]
	return option, ok
}

// Answered reports whether the server holds a response for the question.
func (t *Taker) Answered(questionID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.synced[questionID]
	return ok
}

// AnsweredCount returns how many questions have a server-confirmed answer.
func (t *Taker) AnsweredCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.synced)
}

// SyncedOption returns the server-confirmed option for a question, if any.
func (t *Taker) SyncedOption(questionID uuid.UUID) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	option, ok := t.synced[questionID]
	return option, ok
}

// Prev flushes the staged answer for the question being left, then moves
// back one question. A flush failure is returned for display but never
// blocks the move.
func (t *Taker) Prev(ctx context.Context) error {
	return t.Jump(ctx, t.Index()-1)
}

// Next flushes and moves forward one question.
func (t *Taker) Next(ctx context.Context) error {
	return t.Jump(ctx, t.Index()+1)
}

// Jump flushes the staged answer for the active question, then moves to
// index k. Out-of-bounds targets are a no-op. The sync error, if any, is
// returned after the index has already changed.
func (t *Taker) Jump(ctx context.Context, k int) error {
	if k < 0 || k >= len(t.questions) {
		return nil
	}

	err := t.flush(ctx)

	t.mu.Lock()
	t.index = k
	t.mu.Unlock()
	return err
}

// flush sends the staged answer for the active question, if one exists,
// and reconciles the synced set from the server's response.
func (t *Taker) flush(ctx context.Context) error {
	t.mu.Lock()
	qID := t.questions[t.index].ID
	option, ok := t.staged[qID]
	t.mu.Unlock()
	if !ok {
		return nil
	}

	detail, err := t.api.UpsertResponse(ctx, t.attemptID, qID, option)
	if err != nil {
		// Keep the staged value; revisiting the question re-offers it and
		// a later navigation retries the sync.
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.staged, qID)
	t.reconcile(detail)
	return nil
}

// reconcile rebuilds the synced set from a server response. Callers hold t.mu.
func (t *Taker) reconcile(detail *model.AttemptDetail) {
	t.synced = make(map[uuid.UUID]string, len(detail.Responses))
	for _, r := range detail.Responses {
		t.synced[r.QuestionID] = r.SelectedOption
	}
}

// Finalize completes the attempt. Exactly one finalize call reaches the
// server even when the countdown expiry and a manual submit race: the
// loser of the race gets ErrSubmitInFlight, and calls after a success
// return the finalized attempt again without another request. On failure
// the attempt stays in progress and Finalize may be retried.
func (t *Taker) Finalize(ctx context.Context) (*model.AttemptDetail, error) {
	t.mu.Lock()
	if t.submitted {
		final := t.final
		t.mu.Unlock()
		return final, nil
	}
	if t.submitting {
		t.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	t.submitting = true
	t.mu.Unlock()

	detail, err := t.api.CompleteAttempt(ctx, t.attemptID)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.submitting = false
	if err != nil {
		return nil, err
	}
	t.submitted = true
	t.final = detail
	t.reconcile(detail)
	return detail, nil
}

// Submitted reports whether the attempt has been finalized.
func (t *Taker) Submitted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.submitted
}
