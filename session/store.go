package session

import (
	"sync"
	"time"
)

// Store defines operations for session management.
type Store interface {
	List() ([]Session, error)
	ListForUser(userID string) ([]Session, error)
	Get(sessionID string) (Session, bool, error)
	// FindByParticipants returns the newest session whose participant set is
	// exactly {userA, userB}, if any.
	FindByParticipants(userA, userB string) (Session, bool, error)
	Create(sessionID string, creator, invitee ParticipantInfo) (Session, error)
	Join(sessionID, userID string) (Session, error)
	Activate(sessionID string) error
	Touch(sessionID string) error
}

// MemoryStore implements Store with in-memory state. Sessions are kept
// newest first.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions []Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// List returns all sessions, newest first.
func (s *MemoryStore) List() ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.clone())
	}
	return out, nil
}

// ListForUser returns the sessions userID participates in, newest first.
func (s *MemoryStore) ListForUser(userID string) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Session
	for _, sess := range s.sessions {
		if sess.HasParticipant(userID) {
			out = append(out, sess.clone())
		}
	}
	return out, nil
}

// Get returns a session by ID. Returns (session, found, error).
func (s *MemoryStore) Get(sessionID string) (Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if sess.ID == sessionID {
			return sess.clone(), true, nil
		}
	}
	return Session{}, false, nil
}

// FindByParticipants returns the newest session between exactly the two users.
func (s *MemoryStore) FindByParticipants(userA, userB string) (Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sess := range s.sessions {
		if len(sess.Participants) == 2 &&
			sess.HasParticipant(userA) && sess.HasParticipant(userB) {
			return sess.clone(), true, nil
		}
	}
	return Session{}, false, nil
}

// Create creates a new session between creator and invitee. The creator is
// recorded as joined immediately; the invitee joins later via Join or by
// sending a message.
func (s *MemoryStore) Create(sessionID string, creator, invitee ParticipantInfo) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess := Session{
		ID:        sessionID,
		CreatedAt: now,
		UpdatedAt: now,
		Participants: []Participant{
			{UserID: creator.ID, Username: creator.Username, Joined: true, JoinedAt: now},
			{UserID: invitee.ID, Username: invitee.Username},
		},
	}

	// Prepend new session (newest first)
	s.sessions = append([]Session{sess}, s.sessions...)
	return sess.clone(), nil
}

// Join marks userID as joined. Joining is idempotent: a second join keeps
// the original JoinedAt so the activation settle window is not reset.
// Returns ErrNotFound or ErrNotParticipant as appropriate.
func (s *MemoryStore) Join(sessionID, userID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.sessions {
		if s.sessions[i].ID != sessionID {
			continue
		}
		sess := &s.sessions[i]
		for j := range sess.Participants {
			if sess.Participants[j].UserID != userID {
				continue
			}
			if !sess.Participants[j].Joined {
				now := time.Now()
				sess.Participants[j].Joined = true
				sess.Participants[j].JoinedAt = now
				sess.UpdatedAt = now
			}
			return sess.clone(), nil
		}
		return Session{}, ErrNotParticipant
	}
	return Session{}, ErrNotFound
}

// Activate marks a session active. The flip is one-way: once active a
// session never returns to inactive. Returns ErrNotFound if the session
// does not exist.
func (s *MemoryStore) Activate(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.sessions {
		if s.sessions[i].ID != sessionID {
			continue
		}
		if !s.sessions[i].Active {
			now := time.Now()
			s.sessions[i].Active = true
			s.sessions[i].ActivatedAt = now
			s.sessions[i].UpdatedAt = now
		}
		return nil
	}
	return ErrNotFound
}

// Touch bumps a session's UpdatedAt, used when a message is appended.
// Returns ErrNotFound if the session does not exist.
func (s *MemoryStore) Touch(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.sessions {
		if s.sessions[i].ID != sessionID {
			continue
		}
		s.sessions[i].UpdatedAt = time.Now()
		return nil
	}
	return ErrNotFound
}
