package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/hakraj/exboard/internal/model"
)

func envelopeOK(data interface{}) []byte {
	raw, _ := json.Marshal(map[string]interface{}{"data": data})
	return raw
}

func envelopeErr(code, message string) []byte {
	raw, _ := json.Marshal(map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
	return raw
}

func TestClientLoginInstallsIdentity(t *testing.T) {
	user := model.User{ID: uuid.New(), Name: "Ada Obi", RegNo: "REG-2041", Role: model.RoleStudent}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Write(envelopeOK(model.LoginResponse{Token: "durable", User: user}))
	}))
	defer srv.Close()

	session := NewSession(NewMemoryStorage())
	client := NewClient(srv.URL, session)

	identity, err := client.Login(context.Background(), "REG-2041", "secret123")
	if err != nil {
		t.Fatal(err)
	}
	if identity.Token != "durable" || identity.Role != "student" {
		t.Errorf("identity = %+v", identity)
	}
	if !session.Authenticated() {
		t.Error("session not authenticated after login")
	}
	if session.Identity().Name != "Ada Obi" {
		t.Errorf("session name = %q", session.Identity().Name)
	}
}

func TestClientUnauthorizedLogsOutOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write(envelopeErr("TOKEN_EXPIRED", "The authentication token has expired."))
	}))
	defer srv.Close()

	session := NewSession(NewMemoryStorage())
	session.Login(testIdentity())
	client := NewClient(srv.URL, session)

	_, err := client.GetAttempt(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Status != http.StatusUnauthorized || apiErr.Code != "TOKEN_EXPIRED" {
		t.Fatalf("err = %v, want 401 TOKEN_EXPIRED", err)
	}
	if session.Authenticated() {
		t.Fatal("session still authenticated after 401")
	}

	// A second 401 from another in-flight call changes nothing.
	_, _ = client.GetAttempt(context.Background(), uuid.New())
	if session.Authenticated() {
		t.Fatal("session authenticated after repeated 401")
	}
	if calls.Load() != 2 {
		t.Fatalf("server calls = %d, want 2", calls.Load())
	}
}

func TestClientStartAttemptStoresExamToken(t *testing.T) {
	examID := uuid.New()
	attemptID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/api/v1/student/exams/" + examID.String() + "/start"
		if r.URL.Path != wantPath {
			t.Errorf("path = %s, want %s", r.URL.Path, wantPath)
		}
		var body struct {
			Password string `json:"password"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret123" {
			t.Errorf("password = %q", body.Password)
		}
		w.Write(envelopeOK(model.StartAttemptResponse{
			ExamToken: "scoped",
			Attempt: model.AttemptDetail{
				Attempt: model.Attempt{ID: attemptID},
			},
		}))
	}))
	defer srv.Close()

	session := NewSession(NewMemoryStorage())
	session.Login(testIdentity())
	client := NewClient(srv.URL, session)

	started, err := client.StartAttempt(context.Background(), examID, "secret123")
	if err != nil {
		t.Fatal(err)
	}
	if started.Attempt.ID != attemptID {
		t.Errorf("attempt id = %s, want %s", started.Attempt.ID, attemptID)
	}
	if got := session.Identity().ExamToken; got != "scoped" {
		t.Errorf("session exam token = %q, want scoped", got)
	}
}

func TestClientCompleteClearsExamToken(t *testing.T) {
	attemptID := uuid.New()
	completed := "2026-03-01T09:05:00Z"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer exam-token" {
			t.Errorf("authorization = %q, want the exam-scoped token", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"data":{"attempt":{"id":"` + attemptID.String() + `","completed_at":"` + completed + `"}}}`))
	}))
	defer srv.Close()

	session := NewSession(NewMemoryStorage())
	session.Login(testIdentity())
	client := NewClient(srv.URL, session)

	detail, err := client.CompleteAttempt(context.Background(), attemptID)
	if err != nil {
		t.Fatal(err)
	}
	if detail.CompletedAt == nil {
		t.Fatal("completed attempt has no timestamp")
	}
	if session.Identity().ExamToken != "" {
		t.Error("exam token survived completion")
	}
	if session.Identity().Token == "" {
		t.Error("durable token lost on completion")
	}
}

func TestClientRequestErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write(envelopeErr("ATTEMPT_COMPLETED", "This attempt has already been submitted."))
	}))
	defer srv.Close()

	session := NewSession(NewMemoryStorage())
	session.Login(testIdentity())
	client := NewClient(srv.URL, session)

	_, err := client.UpsertResponse(context.Background(), uuid.New(), uuid.New(), "A")
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Code != "ATTEMPT_COMPLETED" {
		t.Fatalf("err = %v, want ATTEMPT_COMPLETED", err)
	}
	// Non-401 failures never touch the session.
	if !session.Authenticated() {
		t.Error("session logged out by a non-authorization error")
	}
}
