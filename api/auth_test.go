package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/parleychat/parley/middleware"
	"github.com/parleychat/parley/rpc"
	"github.com/parleychat/parley/settings"
	"github.com/parleychat/parley/user"
)

func newRegistry() *user.Registry {
	return user.NewRegistry([]settings.UserConfig{
		{Username: "alice", Password: "pw-alice"},
		{Username: "bob", Password: "pw-bob"},
	})
}

func TestHandleLogin(t *testing.T) {
	handler := NewAuthHandler(newRegistry())

	body := strings.NewReader(`{"username":"alice","password":"pw-alice"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	rec := httptest.NewRecorder()

	handler.HandleLogin(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp rpc.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Token == "" {
		t.Error("expected a token")
	}
	if resp.Username != "alice" || resp.UserID == "" {
		t.Errorf("unexpected identity in response: %+v", resp)
	}
}

func TestHandleLogin_TokenAuthenticates(t *testing.T) {
	registry := newRegistry()
	handler := NewAuthHandler(registry)

	body := strings.NewReader(`{"username":"bob","password":"pw-bob"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	rec := httptest.NewRecorder()
	handler.HandleLogin(rec, req)

	var resp rpc.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	u, ok := registry.Authenticate(resp.Token)
	if !ok {
		t.Fatal("issued token should authenticate")
	}
	if u.Username != "bob" {
		t.Errorf("token resolves to %q, want bob", u.Username)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	handler := NewAuthHandler(newRegistry())

	for _, body := range []string{
		`{"username":"alice","password":"wrong"}`,
		`{"username":"mallory","password":"whatever"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleLogin(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("body %s: expected status 401, got %d", body, rec.Code)
		}
	}
}

func TestHandleLogin_BadRequest(t *testing.T) {
	handler := NewAuthHandler(newRegistry())

	for _, body := range []string{
		`not json`,
		`{}`,
		`{"username":"alice"}`,
		`{"password":"pw-alice"}`,
		`{"username":"   ","password":"pw-alice"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(body))
		rec := httptest.NewRecorder()

		handler.HandleLogin(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected status 400, got %d", body, rec.Code)
		}
	}
}

func TestHandleProfile(t *testing.T) {
	handler := NewAuthHandler(newRegistry())

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), user.User{ID: "u-1", Username: "alice"}))
	rec := httptest.NewRecorder()

	handler.HandleProfile(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp rpc.UserProfileResult
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.UserID != "u-1" || resp.Username != "alice" {
		t.Errorf("unexpected profile: %+v", resp)
	}
}

func TestHandleProfile_NoIdentity(t *testing.T) {
	handler := NewAuthHandler(newRegistry())

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	rec := httptest.NewRecorder()

	handler.HandleProfile(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestRegister_RejectsWrongMethod(t *testing.T) {
	handler := NewAuthHandler(newRegistry())
	mux := http.NewServeMux()
	handler.Register(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/login", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
}
