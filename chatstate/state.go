// Package chatstate keeps a local view of one chat session trustworthy while
// the server's reported flags lag behind reality. Activation is flipped
// asynchronously on the server, so a fetched snapshot may claim a session is
// inactive or unjoined even though messages for it already exist. This
// package reconciles those signals into a usable {active, joined, ready}
// state, polls until the server catches up, and promotes the state
// optimistically when a send succeeds.
package chatstate

import "github.com/parleychat/parley/rpc"

// LocalChatState is the derived view of the selected session. It may run
// ahead of the server's reported flags, never behind them.
type LocalChatState struct {
	IsActive  bool
	HasJoined bool
	IsReady   bool
}

// Compute derives the local state from the last fetched snapshot and the
// number of locally known messages. Message presence proves the session was
// usable at least once, so it overrides stale server flags.
func Compute(snap rpc.SessionSnapshot, messageCount int) LocalChatState {
	forced := messageCount > 0
	return LocalChatState{
		IsActive:  forced || snap.IsActive,
		HasJoined: forced || snap.HasJoined,
		IsReady:   forced || (snap.IsActive && snap.HasJoined),
	}
}

// NeedsPolling reports whether the snapshot itself still disagrees with a
// settled session. It deliberately ignores the message-count override:
// readiness can be forced locally, but the snapshot should still catch up so
// the view does not lean on the override forever.
func NeedsPolling(snap rpc.SessionSnapshot) bool {
	return !(snap.IsActive && snap.HasJoined)
}

// Phase is the user-visible summary of a LocalChatState.
type Phase int

const (
	// PhasePending: the session is not known to be active yet.
	PhasePending Phase = iota
	// PhaseVerifying: the session is active but this user's join has not
	// been confirmed.
	PhaseVerifying
	// PhaseReady: the session is usable. Terminal while it stays selected.
	PhaseReady
)

func (s LocalChatState) Phase() Phase {
	switch {
	case s.IsReady:
		return PhaseReady
	case s.IsActive:
		return PhaseVerifying
	default:
		return PhasePending
	}
}

func (p Phase) String() string {
	switch p {
	case PhaseReady:
		return "ready"
	case PhaseVerifying:
		return "verifying"
	default:
		return "pending"
	}
}
