package portal

import (
	"encoding/json"
	"sync"
)

// Storage keys. Both entries are written on every change and reset to
// sentinel values on logout.
const (
	keyAuthenticated = "authenticated"
	keyIdentity      = "user"
)

// Identity is the authenticated principal. ExamToken is present only while
// an attempt is active; Token is the durable credential.
type Identity struct {
	Name      string `json:"name"`
	RegNo     string `json:"reg_no"`
	Role      string `json:"role"`
	Token     string `json:"token"`
	ExamToken string `json:"exam_token,omitempty"`
}

// Session is the single source of truth for who is logged in and which
// credentials are active. All mutations go through Login, Logout and
// Update; nothing else may touch identity state.
type Session struct {
	mu            sync.Mutex
	authenticated bool
	identity      Identity
	storage       Storage
}

// NewSession restores session state from storage. Absent or malformed
// persisted data falls back to an unauthenticated empty identity; startup
// never fails on bad data.
func NewSession(storage Storage) *Session {
	s := &Session{storage: storage}

	if raw, ok := storage.Get(keyAuthenticated); ok {
		var authenticated bool
		if err := json.Unmarshal([]byte(raw), &authenticated); err == nil {
			s.authenticated = authenticated
		}
	}
	if raw, ok := storage.Get(keyIdentity); ok {
		var identity Identity
		if err := json.Unmarshal([]byte(raw), &identity); err == nil {
			s.identity = identity
		} else {
			s.authenticated = false
		}
	}
	return s
}

// Login marks the session authenticated and stores the identity.
func (s *Session) Login(identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
	s.identity = identity
	s.persist()
}

// Logout resets the session to the unauthenticated empty shape and writes
// the sentinels back to storage.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.identity = Identity{}
	s.persist()
}

// Update replaces identity fields without changing the authenticated flag.
// Used when the server issues an exam-scoped token or after a profile edit.
func (s *Session) Update(identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
	s.persist()
}

// SetExamToken stores the exam-scoped credential on the current identity.
func (s *Session) SetExamToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity.ExamToken = token
	s.persist()
}

// ClearExamToken drops the exam-scoped credential, keeping the durable one.
func (s *Session) ClearExamToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity.ExamToken = ""
	s.persist()
}

// HandleUnauthorized forces logout on an authorization failure from the
// server. The logout fires at most once: repeated 401s from interleaved
// in-flight calls after the session is already cleared are no-ops.
func (s *Session) HandleUnauthorized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authenticated {
		return
	}
	s.authenticated = false
	s.identity = Identity{}
	s.persist()
}

// Authenticated reports whether a login is active.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Identity returns a copy of the current identity.
func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// persist writes both entries. Callers hold s.mu.
func (s *Session) persist() {
	authRaw, _ := json.Marshal(s.authenticated)
	identityRaw, _ := json.Marshal(s.identity)
	s.storage.Set(keyAuthenticated, string(authRaw))
	s.storage.Set(keyIdentity, string(identityRaw))
}
