package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestForStudentStripsAnswer(t *testing.T) {
	q := Question{
		ID:      uuid.New(),
		ExamID:  uuid.New(),
		Text:    "Capital of France?",
		Options: []string{"Paris", "Lyon", "", ""},
		Answer:  "Paris",
	}

	sq := q.ForStudent()
	raw, err := json.Marshal(sq)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "answer") {
		t.Errorf("student question leaks the answer: %s", raw)
	}
	if sq.ID != q.ID || sq.Text != q.Text {
		t.Error("student question lost id or text")
	}
}

func TestDisplayOptionsFiltersEmptySlots(t *testing.T) {
	sq := StudentQuestion{Options: []string{"A", "", "C", ""}}
	got := sq.DisplayOptions()
	if len(got) != 2 || got[0] != "A" || got[1] != "C" {
		t.Errorf("DisplayOptions = %v, want [A C]", got)
	}
}

func TestExamPaperDeadline(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := ExamPaper{TimeLimit: 45}
	want := start.Add(45 * time.Minute)
	if got := p.Deadline(start); !got.Equal(want) {
		t.Errorf("Deadline = %v, want %v", got, want)
	}
}
