package dataset

import (
	"sort"
	"sync"
)

// Store is the session-scoped dataset storage. One primary frame per session
// id, last write wins. Implementations must be safe for concurrent use.
type Store interface {
	Get(sessionID string) (*Frame, bool)
	Put(sessionID string, frame *Frame)
	Delete(sessionID string)
	List() []string
}

// MemoryStore is the in-process Store. A single RWMutex closes the
// read/write race between concurrent requests on the same session.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Frame
}

// NewMemoryStore creates an empty session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Frame)}
}

// Get returns the frame stored for a session, if any.
func (s *MemoryStore) Get(sessionID string) (*Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.sessions[sessionID]
	return f, ok
}

// Put stores a frame for a session, replacing any previous one.
func (s *MemoryStore) Put(sessionID string, frame *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = frame
}

// Delete removes a session and its data.
func (s *MemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// List returns all session ids, sorted.
func (s *MemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
