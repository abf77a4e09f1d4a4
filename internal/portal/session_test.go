package portal

import (
	"path/filepath"
	"testing"
)

func testIdentity() Identity {
	return Identity{
		Name:      "Ada Obi",
		RegNo:     "REG-2041",
		Role:      "student",
		Token:     "durable-token",
		ExamToken: "exam-token",
	}
}

func TestSessionPersistenceRoundTrip(t *testing.T) {
	storage := NewMemoryStorage()

	first := NewSession(storage)
	first.Login(testIdentity())

	// Simulate a reload: a fresh session over the same storage.
	second := NewSession(storage)
	if !second.Authenticated() {
		t.Fatal("restored session is not authenticated")
	}
	if got := second.Identity(); got != testIdentity() {
		t.Fatalf("restored identity = %+v, want %+v", got, testIdentity())
	}
}

func TestSessionFileStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	first := NewSession(NewFileStorage(path))
	first.Login(testIdentity())

	second := NewSession(NewFileStorage(path))
	if !second.Authenticated() {
		t.Fatal("restored session is not authenticated")
	}
	if got := second.Identity(); got != testIdentity() {
		t.Fatalf("restored identity = %+v, want %+v", got, testIdentity())
	}
}

func TestSessionMalformedDataFallsBack(t *testing.T) {
	storage := NewMemoryStorage()
	storage.Set(keyAuthenticated, "true")
	storage.Set(keyIdentity, "{not json")

	s := NewSession(storage)
	if s.Authenticated() {
		t.Error("session authenticated despite malformed identity")
	}
	if got := s.Identity(); got != (Identity{}) {
		t.Errorf("identity = %+v, want empty", got)
	}
}

func TestSessionMissingDataFallsBack(t *testing.T) {
	s := NewSession(NewMemoryStorage())
	if s.Authenticated() {
		t.Error("empty storage produced an authenticated session")
	}
}

func TestLogoutClearsExamToken(t *testing.T) {
	storage := NewMemoryStorage()
	s := NewSession(storage)
	s.Login(testIdentity())

	s.Logout()

	if s.Authenticated() {
		t.Error("authenticated after logout")
	}
	if got := s.Identity(); got.ExamToken != "" || got.Token != "" {
		t.Errorf("credentials survived logout: %+v", got)
	}

	// The cleared state is what persists.
	restored := NewSession(storage)
	if restored.Authenticated() {
		t.Error("logout state did not persist")
	}
}

func TestUpdateKeepsAuthenticatedFlag(t *testing.T) {
	s := NewSession(NewMemoryStorage())
	s.Login(testIdentity())

	updated := testIdentity()
	updated.Name = "Ada O."
	s.Update(updated)

	if !s.Authenticated() {
		t.Error("Update changed the authenticated flag")
	}
	if got := s.Identity().Name; got != "Ada O." {
		t.Errorf("Name = %q, want %q", got, "Ada O.")
	}
}

func TestHandleUnauthorizedLogsOutOnce(t *testing.T) {
	s := NewSession(NewMemoryStorage())
	s.Login(testIdentity())

	s.HandleUnauthorized()
	if s.Authenticated() {
		t.Fatal("still authenticated after unauthorized response")
	}

	// A second 401 from another in-flight call is a no-op; in
	// particular it must not clobber a fresh login that raced in.
	s.Login(testIdentity())
	if !s.Authenticated() {
		t.Fatal("re-login failed")
	}
	s.HandleUnauthorized()
	if s.Authenticated() {
		t.Fatal("still authenticated after second unauthorized response")
	}
	s.HandleUnauthorized() // already logged out, must not panic or change state
	if s.Authenticated() {
		t.Fatal("state changed by redundant unauthorized handling")
	}
}

func TestSetAndClearExamToken(t *testing.T) {
	s := NewSession(NewMemoryStorage())
	identity := testIdentity()
	identity.ExamToken = ""
	s.Login(identity)

	s.SetExamToken("scoped")
	if got := s.Identity().ExamToken; got != "scoped" {
		t.Fatalf("ExamToken = %q, want %q", got, "scoped")
	}

	s.ClearExamToken()
	if got := s.Identity(); got.ExamToken != "" {
		t.Errorf("ExamToken survived clear: %q", got.ExamToken)
	} else if got.Token != "durable-token" {
		t.Errorf("durable token lost on exam token clear: %q", got.Token)
	}
}
