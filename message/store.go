package message

import (
	"sync"
	"time"
)

// Store defines operations for per-session message logs.
type Store interface {
	// List returns all messages for a session in send order.
	List(sessionID string) ([]Message, error)
	// Count returns the number of messages stored for a session.
	Count(sessionID string) (int, error)
	// Append stores a message and stamps its SentAt.
	Append(msg Message) (Message, error)
}

// MemoryStore implements Store with in-memory per-session logs.
type MemoryStore struct {
	mu   sync.RWMutex
	logs map[string][]Message
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[string][]Message)}
}

// List returns all messages for sessionID in send order. A session with no
// messages yields an empty slice, not an error.
func (s *MemoryStore) List(sessionID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.logs[sessionID]
	out := make([]Message, len(log))
	copy(out, log)
	return out, nil
}

// Count returns the number of messages stored for sessionID.
func (s *MemoryStore) Count(sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.logs[sessionID]), nil
}

// Append stores msg at the end of its session log and stamps SentAt.
func (s *MemoryStore) Append(msg Message) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.SentAt = time.Now()
	s.logs[msg.SessionID] = append(s.logs[msg.SessionID], msg)
	return msg, nil
}
