package orchestrator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/rickgao/wsstress/internal/engine"
)

// ConnSet holds every connection handle issued during a run. Entries are
// never removed; the engine owns connection lifetime.
type ConnSet struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]engine.Conn
}

// NewConnSet creates an empty set.
func NewConnSet() *ConnSet {
	return &ConnSet{conns: make(map[uuid.UUID]engine.Conn)}
}

// Add inserts c. Adding the same handle twice is a no-op.
func (s *ConnSet) Add(c engine.Conn) {
	s.mu.Lock()
	s.conns[c.ID()] = c
	s.mu.Unlock()
}

// Get returns the handle for id.
func (s *ConnSet) Get(id uuid.UUID) (engine.Conn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	return c, ok
}

// Len returns the number of handles issued.
func (s *ConnSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
