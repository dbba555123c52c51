// Package session holds login sessions in server memory keyed by an opaque
// cookie-carried token.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// CookieName is the cookie that carries the session token.
const CookieName = "pathpal_session"

// Session is a snapshot of the user captured at login time. The TTL is
// absolute from creation; there is no sliding renewal.
type Session struct {
	Token     string `json:"-"`
	UserID    int    `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	UserType  string `json:"user_type"`
	ExpiresAt time.Time
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create issues a new session for the user and returns a copy of it with a
// fresh opaque token. Callers never hold the stored entry; mutation stays
// confined to the map under the lock.
func (s *Store) Create(userID int, username, email, userType string) *Session {
	sess := &Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		Username:  username,
		Email:     email,
		UserType:  userType,
		ExpiresAt: time.Now().Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[sess.Token] = sess
	snapshot := *sess
	s.mu.Unlock()

	return &snapshot
}

// Get returns a copy of the session for the token, or nil if the token is
// unknown or the session has expired. Expired entries are evicted on lookup.
func (s *Store) Get(token string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	var snapshot Session
	if ok {
		snapshot = *sess
	}
	s.mu.RUnlock()

	if !ok {
		return nil
	}
	if time.Now().After(snapshot.ExpiresAt) {
		s.Delete(token)
		return nil
	}
	return &snapshot
}

func (s *Store) Delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Update rewrites the snapshot fields of an existing session, used when a
// profile change makes the login-time snapshot stale. The token and expiry
// are unchanged.
func (s *Store) Update(token string, username, email string) {
	s.mu.Lock()
	if sess, ok := s.sessions[token]; ok {
		sess.Username = username
		sess.Email = email
	}
	s.mu.Unlock()
}

// DeleteExpired removes all expired sessions and returns how many were
// evicted.
func (s *Store) DeleteExpired() int {
	now := time.Now()
	evicted := 0

	s.mu.Lock()
	for token, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, token)
			evicted++
		}
	}
	s.mu.Unlock()

	return evicted
}
