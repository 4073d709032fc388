package web

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/Kellerman81/go_business_admin/modal"
)

const (
	// SessionCookie carries the session id.
	SessionCookie   = "session_id"
	CSRFTokenLength = 16
	SessionIDLength = 32
	// DefaultSessionDuration applies when no lifetime is configured.
	DefaultSessionDuration = 12 * time.Hour
)

// Session is one logged in browser. Token is the bearer credential of the
// backend and never leaves the server.
type Session struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time
	CSRFToken string
	Token     string
	User      modal.CurrentUser
	Lang      string
	// OAuthInfo is the GitHub connection reported by the backend, if any.
	OAuthInfo map[string]any
}

// SessionStore holds active sessions.
type SessionStore struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
	duration time.Duration
	now      func() time.Time
}

func NewSessionStore(duration time.Duration) *SessionStore {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	return &SessionStore{sessions: make(map[string]*Session), duration: duration, now: time.Now}
}

// generateSecureToken creates a cryptographically secure token of length bytes.
func generateSecureToken(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// Create stores a new session for the backend token and user.
func (ss *SessionStore) Create(token string, user modal.CurrentUser, lang string) *Session {
	now := ss.now()
	session := &Session{
		ID:        generateSecureToken(SessionIDLength),
		CreatedAt: now,
		ExpiresAt: now.Add(ss.duration),
		CSRFToken: generateSecureToken(CSRFTokenLength),
		Token:     token,
		User:      user,
		Lang:      lang,
	}

	ss.mutex.Lock()
	ss.sessions[session.ID] = session
	ss.mutex.Unlock()
	return session
}

// Get returns a copy of the session id. Expired sessions are removed.
func (ss *SessionStore) Get(id string) (Session, bool) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	session, exists := ss.sessions[id]
	if !exists {
		return Session{}, false
	}
	if ss.now().After(session.ExpiresAt) {
		delete(ss.sessions, id)
		return Session{}, false
	}
	return *session, true
}

// Update applies fn to the stored session.
func (ss *SessionStore) Update(id string, fn func(*Session)) bool {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	session, exists := ss.sessions[id]
	if !exists {
		return false
	}
	fn(session)
	return true
}

func (ss *SessionStore) Delete(id string) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	delete(ss.sessions, id)
}

// Cleanup removes expired sessions and returns their ids.
func (ss *SessionStore) Cleanup() []string {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	now := ss.now()
	var removed []string
	for id, session := range ss.sessions {
		if now.After(session.ExpiresAt) {
			delete(ss.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}

func (ss *SessionStore) Len() int {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()
	return len(ss.sessions)
}
