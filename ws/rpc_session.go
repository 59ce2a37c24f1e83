package ws

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/parleychat/parley/rpc"
	"github.com/parleychat/parley/session"
	"github.com/parleychat/parley/user"
	"github.com/sourcegraph/jsonrpc2"
)

func (h *rpcMethodHandler) handleSessionList(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, u user.User) {
	sessions, err := h.sessions.ListForUser(u.ID)
	if err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "failed to list sessions")
		return
	}

	// Snapshots are rendered per viewer: the same session reports a
	// different has_joined to each participant.
	result := rpc.SessionListResult{
		Sessions: make([]rpc.SessionSnapshot, 0, len(sessions)),
	}
	for _, sess := range sessions {
		result.Sessions = append(result.Sessions, sess.View(u.ID))
	}

	if err := conn.Reply(ctx, req.ID, result); err != nil {
		h.log.Error("failed to send session list response", "error", err)
	}
}

func (h *rpcMethodHandler) handleSessionCreate(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, u user.User) {
	var params rpc.SessionCreateParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	if params.Username == "" {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "username is required")
		return
	}
	if params.Username == u.Username {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "cannot open a session with yourself")
		return
	}

	peer, ok := h.registry.Lookup(params.Username)
	if !ok {
		h.replyError(ctx, conn, req.ID, rpc.CodeNotFound, "unknown user: "+params.Username)
		return
	}

	// A pair of users shares one session; re-creating returns the existing one.
	if existing, found, err := h.sessions.FindByParticipants(u.ID, peer.ID); err == nil && found {
		result := rpc.SessionCreateResult{
			Session:  existing.View(u.ID),
			Existing: true,
		}
		if err := conn.Reply(ctx, req.ID, result); err != nil {
			h.log.Error("failed to send session create response", "error", err)
		}
		return
	}

	sessionID := uuid.Must(uuid.NewV7()).String()
	sess, err := h.sessions.Create(sessionID,
		session.ParticipantInfo{ID: u.ID, Username: u.Username},
		session.ParticipantInfo{ID: peer.ID, Username: peer.Username},
	)
	if err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "failed to create session")
		return
	}

	h.log.Info("session created", "sessionId", sessionID, "creator", u.Username, "peer", peer.Username)

	result := rpc.SessionCreateResult{Session: sess.View(u.ID)}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		h.log.Error("failed to send session create response", "error", err)
	}
}

func (h *rpcMethodHandler) handleSessionJoin(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, u user.User) {
	var params rpc.SessionJoinParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}
	if params.SessionID == "" {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "session_id is required")
		return
	}

	sess, err := h.sessions.Join(params.SessionID, u.ID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			h.replyError(ctx, conn, req.ID, rpc.CodeNotFound, "session not found")
		case errors.Is(err, session.ErrNotParticipant):
			h.replyError(ctx, conn, req.ID, rpc.CodeNotParticipant, "not a session participant")
		default:
			h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "failed to join session")
		}
		return
	}

	h.log.Info("session joined", "sessionId", params.SessionID, "userId", u.ID)

	result := rpc.SessionJoinResult{Session: sess.View(u.ID)}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		h.log.Error("failed to send session join response", "error", err)
	}
}
