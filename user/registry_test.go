package user

import (
	"errors"
	"testing"

	"github.com/parleychat/parley/settings"
)

func testUsers() []settings.UserConfig {
	return []settings.UserConfig{
		{Username: "alice", Password: "wonderland"},
		{Username: "bob", Password: "builder"},
	}
}

func TestLoginIssuesToken(t *testing.T) {
	r := NewRegistry(testUsers())

	u, token, err := r.Login("alice", "wonderland")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if u.Username != "alice" || u.ID == "" {
		t.Errorf("unexpected user %+v", u)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	got, ok := r.Authenticate(token)
	if !ok {
		t.Fatal("token should authenticate")
	}
	if got.ID != u.ID {
		t.Errorf("Authenticate returned ID %q, want %q", got.ID, u.ID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	r := NewRegistry(testUsers())

	if _, _, err := r.Login("alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := r.Login("mallory", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateRejectsUnknownToken(t *testing.T) {
	r := NewRegistry(testUsers())

	if _, ok := r.Authenticate("not-a-token"); ok {
		t.Error("unknown token should not authenticate")
	}
}

func TestMultipleLoginsStayValid(t *testing.T) {
	r := NewRegistry(testUsers())

	_, t1, err := r.Login("alice", "wonderland")
	if err != nil {
		t.Fatalf("first Login failed: %v", err)
	}
	_, t2, err := r.Login("alice", "wonderland")
	if err != nil {
		t.Fatalf("second Login failed: %v", err)
	}
	if t1 == t2 {
		t.Error("each login should issue a distinct token")
	}

	if _, ok := r.Authenticate(t1); !ok {
		t.Error("first token should remain valid")
	}
	if _, ok := r.Authenticate(t2); !ok {
		t.Error("second token should remain valid")
	}
}

func TestLookup(t *testing.T) {
	r := NewRegistry(testUsers())

	u, ok := r.Lookup("bob")
	if !ok || u.Username != "bob" {
		t.Errorf("Lookup(bob) = %+v, %v", u, ok)
	}
	if _, ok := r.Lookup("mallory"); ok {
		t.Error("Lookup of unknown user should report false")
	}
}

func TestReloadPreservesIDs(t *testing.T) {
	r := NewRegistry(testUsers())

	before, _ := r.Lookup("alice")

	s := settings.Default()
	s.Users = []settings.UserConfig{
		{Username: "alice", Password: "newpassword"},
		{Username: "carol", Password: "pw"},
	}
	r.OnSettingsChange(s)

	after, ok := r.Lookup("alice")
	if !ok {
		t.Fatal("alice should survive the reload")
	}
	if after.ID != before.ID {
		t.Errorf("alice ID changed across reload: %q -> %q", before.ID, after.ID)
	}

	// New password takes effect
	if _, _, err := r.Login("alice", "wonderland"); err == nil {
		t.Error("old password should no longer work")
	}
	if _, _, err := r.Login("alice", "newpassword"); err != nil {
		t.Errorf("new password should work, got %v", err)
	}

	if _, ok := r.Lookup("carol"); !ok {
		t.Error("carol should exist after reload")
	}
}

func TestReloadRevokesRemovedUserTokens(t *testing.T) {
	r := NewRegistry(testUsers())

	_, bobToken, err := r.Login("bob", "builder")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	_, aliceToken, err := r.Login("alice", "wonderland")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	s := settings.Default()
	s.Users = []settings.UserConfig{{Username: "alice", Password: "wonderland"}}
	r.OnSettingsChange(s)

	if _, ok := r.Authenticate(bobToken); ok {
		t.Error("removed user's token should be revoked")
	}
	if _, ok := r.Authenticate(aliceToken); !ok {
		t.Error("remaining user's token should stay valid")
	}
}
