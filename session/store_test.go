package session

import (
	"errors"
	"testing"
	"time"
)

func TestCreateRecordsCreatorAsJoined(t *testing.T) {
	store := NewMemoryStore()

	sess, err := store.Create("s1",
		ParticipantInfo{ID: "u1", Username: "alice"},
		ParticipantInfo{ID: "u2", Username: "bob"},
	)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if sess.Active {
		t.Error("new session should not be active")
	}
	creator, ok := sess.Participant("u1")
	if !ok || !creator.Joined {
		t.Errorf("creator should be joined, got %+v", creator)
	}
	if creator.JoinedAt.IsZero() {
		t.Error("creator JoinedAt should be set")
	}
	invitee, ok := sess.Participant("u2")
	if !ok || invitee.Joined {
		t.Errorf("invitee should not be joined yet, got %+v", invitee)
	}
}

func TestGetReturnsFoundFlag(t *testing.T) {
	store := NewMemoryStore()

	_, found, err := store.Get("missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("expected found=false for missing session")
	}

	if _, err := store.Create("s1", ParticipantInfo{ID: "u1"}, ParticipantInfo{ID: "u2"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	sess, found, err := store.Get("s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found || sess.ID != "s1" {
		t.Errorf("expected to find s1, got found=%v id=%q", found, sess.ID)
	}
}

func TestListForUserFiltersAndOrders(t *testing.T) {
	store := NewMemoryStore()

	if _, err := store.Create("s1", ParticipantInfo{ID: "u1"}, ParticipantInfo{ID: "u2"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create("s2", ParticipantInfo{ID: "u1"}, ParticipantInfo{ID: "u3"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Create("s3", ParticipantInfo{ID: "u2"}, ParticipantInfo{ID: "u3"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	sessions, err := store.ListForUser("u1")
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions for u1, got %d", len(sessions))
	}
	// Newest first
	if sessions[0].ID != "s2" || sessions[1].ID != "s1" {
		t.Errorf("expected [s2 s1], got [%s %s]", sessions[0].ID, sessions[1].ID)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Create("s1", ParticipantInfo{ID: "u1"}, ParticipantInfo{ID: "u2"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first, err := store.Join("s1", "u2")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	p, _ := first.Participant("u2")
	if !p.Joined {
		t.Fatal("u2 should be joined after Join")
	}
	joinedAt := p.JoinedAt

	time.Sleep(5 * time.Millisecond)
	second, err := store.Join("s1", "u2")
	if err != nil {
		t.Fatalf("second Join failed: %v", err)
	}
	p2, _ := second.Participant("u2")
	if !p2.JoinedAt.Equal(joinedAt) {
		t.Errorf("second Join changed JoinedAt: %v -> %v", joinedAt, p2.JoinedAt)
	}
}

func TestJoinErrors(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Create("s1", ParticipantInfo{ID: "u1"}, ParticipantInfo{ID: "u2"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := store.Join("missing", "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Join("s1", "u3"); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("expected ErrNotParticipant, got %v", err)
	}
}

func TestActivateIsOneWay(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Create("s1", ParticipantInfo{ID: "u1"}, ParticipantInfo{ID: "u2"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Activate("s1"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	sess, _, _ := store.Get("s1")
	if !sess.Active {
		t.Fatal("session should be active")
	}
	activatedAt := sess.ActivatedAt

	time.Sleep(5 * time.Millisecond)
	if err := store.Activate("s1"); err != nil {
		t.Fatalf("second Activate failed: %v", err)
	}
	sess, _, _ = store.Get("s1")
	if !sess.ActivatedAt.Equal(activatedAt) {
		t.Errorf("second Activate changed ActivatedAt: %v -> %v", activatedAt, sess.ActivatedAt)
	}

	if err := store.Activate("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindByParticipants(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Create("s1", ParticipantInfo{ID: "u1"}, ParticipantInfo{ID: "u2"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	sess, found, err := store.FindByParticipants("u2", "u1")
	if err != nil {
		t.Fatalf("FindByParticipants failed: %v", err)
	}
	if !found || sess.ID != "s1" {
		t.Errorf("expected to find s1 regardless of argument order, got found=%v id=%q", found, sess.ID)
	}

	_, found, err = store.FindByParticipants("u1", "u3")
	if err != nil {
		t.Fatalf("FindByParticipants failed: %v", err)
	}
	if found {
		t.Error("expected no session between u1 and u3")
	}
}

func TestViewIsPerParticipant(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Create("s1",
		ParticipantInfo{ID: "u1", Username: "alice"},
		ParticipantInfo{ID: "u2", Username: "bob"},
	); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	sess, _, _ := store.Get("s1")

	creatorView := sess.View("u1")
	if !creatorView.HasJoined {
		t.Error("creator view should report hasJoined=true")
	}
	if len(creatorView.OtherParticipants) != 1 || creatorView.OtherParticipants[0].Username != "bob" {
		t.Errorf("creator view others = %+v, want [bob]", creatorView.OtherParticipants)
	}

	inviteeView := sess.View("u2")
	if inviteeView.HasJoined {
		t.Error("invitee view should report hasJoined=false before joining")
	}
	if len(inviteeView.OtherParticipants) != 1 || inviteeView.OtherParticipants[0].Username != "alice" {
		t.Errorf("invitee view others = %+v, want [alice]", inviteeView.OtherParticipants)
	}
}

func TestReturnedSessionsAreCopies(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Create("s1", ParticipantInfo{ID: "u1"}, ParticipantInfo{ID: "u2"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	sess, _, _ := store.Get("s1")
	sess.Participants[1].Joined = true

	fresh, _, _ := store.Get("s1")
	p, _ := fresh.Participant("u2")
	if p.Joined {
		t.Error("mutating a returned session should not affect the store")
	}
}

func TestLastJoinedAt(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Create("s1", ParticipantInfo{ID: "u1"}, ParticipantInfo{ID: "u2"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	sess, _, _ := store.Get("s1")
	creator, _ := sess.Participant("u1")
	if !sess.LastJoinedAt().Equal(creator.JoinedAt) {
		t.Errorf("LastJoinedAt = %v, want creator join time %v", sess.LastJoinedAt(), creator.JoinedAt)
	}

	time.Sleep(5 * time.Millisecond)
	joined, err := store.Join("s1", "u2")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	p2, _ := joined.Participant("u2")
	if !joined.LastJoinedAt().Equal(p2.JoinedAt) {
		t.Errorf("LastJoinedAt = %v, want invitee join time %v", joined.LastJoinedAt(), p2.JoinedAt)
	}
	if !joined.AllJoined() {
		t.Error("AllJoined should be true after both join")
	}
}
