package session

import (
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrNotParticipant = errors.New("user is not a session participant")
)

// Participant is one of the two users attached to a session, with the
// server-side record of whether they have joined it yet.
type Participant struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Joined   bool      `json:"joined"`
	JoinedAt time.Time `json:"joined_at"`
}

// Session is the server-authoritative state of one two-party chat.
// Active is flipped by the activation sweeper, never synchronously on join,
// so clients are expected to observe sessions that carry messages while
// still reported inactive.
type Session struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Active       bool          `json:"active"`
	ActivatedAt  time.Time     `json:"activated_at"`
	Participants []Participant `json:"participants"`
}

// ParticipantInfo identifies a participant without lifecycle flags.
// Used for session creation and in per-viewer snapshots.
type ParticipantInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Snapshot is a session as seen by one participant: the activation flag,
// that viewer's own joined flag, and the remaining participants.
type Snapshot struct {
	ID                string            `json:"id"`
	IsActive          bool              `json:"is_active"`
	HasJoined         bool              `json:"has_joined"`
	OtherParticipants []ParticipantInfo `json:"other_participants"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Participant returns the participant record for userID.
func (s Session) Participant(userID string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// HasParticipant reports whether userID belongs to this session.
func (s Session) HasParticipant(userID string) bool {
	_, ok := s.Participant(userID)
	return ok
}

// AllJoined reports whether every participant has joined.
func (s Session) AllJoined() bool {
	for _, p := range s.Participants {
		if !p.Joined {
			return false
		}
	}
	return true
}

// LastJoinedAt returns the newest JoinedAt among joined participants.
// The zero time is returned while nobody has joined.
func (s Session) LastJoinedAt() time.Time {
	var last time.Time
	for _, p := range s.Participants {
		if p.Joined && p.JoinedAt.After(last) {
			last = p.JoinedAt
		}
	}
	return last
}

// View renders the session as seen by viewerID.
func (s Session) View(viewerID string) Snapshot {
	snap := Snapshot{
		ID:        s.ID,
		IsActive:  s.Active,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, p := range s.Participants {
		if p.UserID == viewerID {
			snap.HasJoined = p.Joined
			continue
		}
		snap.OtherParticipants = append(snap.OtherParticipants, ParticipantInfo{
			ID:       p.UserID,
			Username: p.Username,
		})
	}
	return snap
}

func (s Session) clone() Session {
	out := s
	out.Participants = make([]Participant, len(s.Participants))
	copy(out.Participants, s.Participants)
	return out
}
