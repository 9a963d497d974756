// Package session maps opaque bearer tokens to authenticated usernames.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	username  string
	createdAt time.Time
}

// Store holds the live sessions. It is constructed explicitly and handed
// to the parts of the system that need it; all methods are safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]entry
	ttl      time.Duration
}

// NewStore creates an empty session store. A ttl of zero means sessions
// only end on explicit removal.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]entry),
		ttl:      ttl,
	}
}

// Create registers a fresh session for username and returns its token.
func (s *Store) Create(username string) string {
	token := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[token] = entry{username: username, createdAt: time.Now()}

	return token
}

// Validate returns the username bound to token. An expired or unknown
// token reports false. Validate never mutates the store.
func (s *Store) Validate(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[token]
	if !ok {
		return "", false
	}

	if s.ttl > 0 && time.Since(e.createdAt) > s.ttl {
		return "", false
	}

	return e.username, true
}

// Remove deletes token. Removing an absent token is not an error.
func (s *Store) Remove(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
}

// Len returns the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}
