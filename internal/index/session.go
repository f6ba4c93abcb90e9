package index

import (
	"sync"

	"docqa/internal/config"
)

type sessionEntry struct {
	index  *Index
	status string
}

// Session memoizes initialized indexes per credential set for the life of
// the process. Only the most recent credential set is kept.
type Session struct {
	mu      sync.Mutex
	entries map[config.Credentials]sessionEntry
}

func NewSession() *Session {
	return &Session{entries: make(map[config.Credentials]sessionEntry)}
}

func (s *Session) lookup(creds config.Credentials) (sessionEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[creds]
	if !ok {
		// different credentials: drop indexes bound to the old ones
		clear(s.entries)
	}
	return e, ok
}

func (s *Session) store(creds config.Credentials, e sessionEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[creds] = e
}

// Evict drops every memoized index.
func (s *Session) Evict() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
}

// Len returns the number of memoized indexes.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
