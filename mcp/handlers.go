package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/parleychat/parley/rpc"
)

// Tool output uses explicit wire shapes so agents get stable JSON even if
// the server-side types grow fields.

type sessionItem struct {
	ID        string    `json:"id"`
	Peer      string    `json:"peer,omitempty"`
	IsActive  bool      `json:"is_active"`
	HasJoined bool      `json:"has_joined"`
	CreatedAt time.Time `json:"created_at"`
}

type messageItem struct {
	ID     string    `json:"id"`
	Sender string    `json:"sender"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

func sessionToItem(snap rpc.SessionSnapshot) sessionItem {
	item := sessionItem{
		ID:        snap.ID,
		IsActive:  snap.IsActive,
		HasJoined: snap.HasJoined,
		CreatedAt: snap.CreatedAt,
	}
	if len(snap.OtherParticipants) > 0 {
		item.Peer = snap.OtherParticipants[0].Username
	}
	return item
}

func messageToItem(m rpc.Message) messageItem {
	return messageItem{
		ID:     m.ID,
		Sender: m.Sender,
		Body:   m.Body,
		SentAt: m.SentAt,
	}
}

func (s *Server) handleWhoami(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := s.api.Identity()
	return jsonResult(map[string]string{
		"user_id":  id.UserID,
		"username": id.Username,
		"server":   id.Server,
		"version":  id.Version,
	})
}

func (s *Server) handleSessionList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	refresh := req.GetBool("refresh", false)

	snaps, err := s.api.Sessions(ctx, refresh)
	if err != nil {
		return toolError(err, "session", ""), nil
	}

	items := make([]sessionItem, len(snaps))
	for i, snap := range snaps {
		items[i] = sessionToItem(snap)
	}
	return jsonResult(items)
}

func (s *Server) handleSessionCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	username, err := req.RequireString("username")
	if err != nil {
		return ValidationError("username is required"), nil
	}

	res, err := s.api.CreateSession(ctx, username)
	if err != nil {
		return toolError(err, "user", username), nil
	}
	return jsonResult(struct {
		Session  sessionItem `json:"session"`
		Existing bool        `json:"existing"`
	}{sessionToItem(res.Session), res.Existing})
}

func (s *Server) handleSessionJoin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return ValidationError("session_id is required"), nil
	}

	snap, err := s.api.JoinSession(ctx, id)
	if err != nil {
		return toolError(err, "session", id), nil
	}
	return jsonResult(sessionToItem(snap))
}

func (s *Server) handleChatHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return ValidationError("session_id is required"), nil
	}

	msgs, err := s.api.Messages(ctx, id)
	if err != nil {
		return toolError(err, "session", id), nil
	}

	items := make([]messageItem, len(msgs))
	for i, m := range msgs {
		items[i] = messageToItem(m)
	}
	return jsonResult(items)
}

func (s *Server) handleChatSend(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return ValidationError("session_id is required"), nil
	}
	body, err := req.RequireString("body")
	if err != nil {
		return ValidationError("body is required"), nil
	}

	msg, err := s.api.Send(ctx, id, body)
	if err != nil {
		return toolError(err, "session", id), nil
	}
	return jsonResult(messageToItem(msg))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}
