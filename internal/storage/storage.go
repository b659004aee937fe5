// Package storage keeps the live workflow sessions in memory. Sessions are
// single-operator and never persisted across restarts.
package storage

import (
	"sync"

	"github.com/thomasbroadsword/PhotoGenSeo/internal/workflow"
)

type SessionStore struct {
	sessions map[string]*workflow.Session
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*workflow.Session),
	}
}

func (s *SessionStore) Get(sessionID string) (*workflow.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *SessionStore) Set(sessionID string, session *workflow.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = session
}

func (s *SessionStore) GetAll() []*workflow.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*workflow.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		result = append(result, session)
	}
	return result
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
