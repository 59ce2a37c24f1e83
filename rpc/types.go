// Package rpc defines the wire format types of the HTTP and JSON-RPC 2.0
// APIs, shared by the server handlers and the Go client.
package rpc

import (
	"github.com/parleychat/parley/message"
	"github.com/parleychat/parley/session"
)

// SessionSnapshot is a session as reported to one authenticated viewer.
type SessionSnapshot = session.Snapshot

// ParticipantInfo identifies a session participant on the wire.
type ParticipantInfo = session.ParticipantInfo

// Message is one chat message on the wire.
type Message = message.Message

// Client → Server

type AuthParams struct {
	Token string `json:"token"`
}

type AuthResult struct {
	Version  string `json:"version"`
	Server   string `json:"server"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Session namespace

type SessionListResult struct {
	Sessions []SessionSnapshot `json:"sessions"`
}

type SessionCreateParams struct {
	// Username of the peer to open a session with.
	Username string `json:"username"`
}

type SessionCreateResult struct {
	Session SessionSnapshot `json:"session"`
	// Existing is true when the server returned an already existing session
	// between the same two users instead of creating a new one.
	Existing bool `json:"existing"`
}

type SessionJoinParams struct {
	SessionID string `json:"session_id"`
}

type SessionJoinResult struct {
	Session SessionSnapshot `json:"session"`
}

// Chat namespace

type ChatHistoryParams struct {
	SessionID string `json:"session_id"`
}

type ChatHistoryResult struct {
	Messages []Message `json:"messages"`
}

type ChatSendParams struct {
	SessionID string `json:"session_id"`
	Body      string `json:"body"`
}

type ChatSendResult struct {
	Message Message `json:"message"`
}

// User namespace

type UserProfileResult struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// HTTP API (POST /api/login)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}
