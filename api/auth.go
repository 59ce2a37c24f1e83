// Package api provides the plain HTTP endpoints that sit next to the
// WebSocket RPC surface: login and profile.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/parleychat/parley/middleware"
	"github.com/parleychat/parley/rpc"
	"github.com/parleychat/parley/user"
)

// AuthHandler serves token issuance and identity lookup. Login is the one
// endpoint reachable without a bearer token; profile relies on
// middleware.Auth having decorated the request context.
type AuthHandler struct {
	registry *user.Registry
}

func NewAuthHandler(registry *user.Registry) *AuthHandler {
	return &AuthHandler{registry: registry}
}

func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", h.HandleLogin)
	mux.HandleFunc("GET /api/profile", h.HandleProfile)
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req rpc.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	u, token, err := h.registry.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		slog.Error("login failed", "username", req.Username, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	slog.Info("user logged in", "userId", u.ID, "username", u.Username)
	writeJSON(w, http.StatusOK, rpc.LoginResponse{
		Token:    token,
		UserID:   u.ID,
		Username: u.Username,
	})
}

func (h *AuthHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := middleware.UserFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, rpc.UserProfileResult{UserID: u.ID, Username: u.Username})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
