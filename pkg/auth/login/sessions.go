package login

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ssobridge/ssobridge/pkg/auth"
)

// SessionStore keeps logged-in identities in memory, bounded in size and age.
// Nothing is persisted; a restart logs everyone out.
type SessionStore struct {
	sessions *expirable.LRU[string, *auth.Identity]
	now      func() time.Time
}

// NewSessionStore creates a store holding at most size sessions for ttl each.
func NewSessionStore(size int, ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: expirable.NewLRU[string, *auth.Identity](size, nil, ttl),
		now:      time.Now,
	}
}

// Create stores identity under a new random session ID.
func (s *SessionStore) Create(identity *auth.Identity) string {
	id := uuid.NewString()
	s.sessions.Add(id, identity)
	return id
}

// Get returns the identity of a live session. A session whose access token
// has expired is dropped.
func (s *SessionStore) Get(id string) (*auth.Identity, bool) {
	identity, ok := s.sessions.Get(id)
	if !ok {
		return nil, false
	}
	if exp, err := jwt.MapClaims(identity.Claims).GetExpirationTime(); err == nil && exp != nil && exp.Before(s.now()) {
		s.sessions.Remove(id)
		return nil, false
	}
	return identity, true
}

// Delete ends a session.
func (s *SessionStore) Delete(id string) {
	s.sessions.Remove(id)
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	return s.sessions.Len()
}
