package ws

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/parleychat/parley/logger"
	"github.com/parleychat/parley/message"
	"github.com/parleychat/parley/rpc"
	"github.com/parleychat/parley/user"
	"github.com/sourcegraph/jsonrpc2"
)

// bodyLogMaxLen limits message body length in logs for privacy.
const bodyLogMaxLen = 50

func (h *rpcMethodHandler) handleChatHistory(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, u user.User) {
	var params rpc.ChatHistoryParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	if _, ok := h.getParticipantSession(ctx, conn, req, params.SessionID, u); !ok {
		return
	}

	msgs, err := h.messages.List(params.SessionID)
	if err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "failed to list messages")
		return
	}

	result := rpc.ChatHistoryResult{Messages: msgs}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		h.log.Error("failed to send chat history response", "error", err)
	}
}

func (h *rpcMethodHandler) handleChatSend(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, u user.User) {
	var params rpc.ChatSendParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		return
	}

	log := h.log.With("sessionId", params.SessionID)

	body := strings.TrimSpace(params.Body)
	if body == "" {
		h.replyError(ctx, conn, req.ID, rpc.CodeInvalidMessage, "message body is empty")
		return
	}
	if max := h.settingsStore.Get().MaxMessageLength; len(body) > max {
		h.replyError(ctx, conn, req.ID, rpc.CodeInvalidMessage, "message body too long")
		return
	}

	if _, ok := h.getParticipantSession(ctx, conn, req, params.SessionID, u); !ok {
		return
	}

	// Sending counts as joining: a participant who writes into a session is
	// in it, whether or not they ever called session.join. Messages are also
	// accepted before the sweeper activates the session, so clients can
	// legitimately observe message traffic in sessions still reported
	// inactive.
	if _, err := h.sessions.Join(params.SessionID, u.ID); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "failed to join session")
		return
	}

	msg, err := h.messages.Append(message.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SessionID: params.SessionID,
		SenderID:  u.ID,
		Sender:    u.Username,
		Body:      body,
	})
	if err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "failed to store message")
		return
	}

	if err := h.sessions.Touch(params.SessionID); err != nil {
		log.Warn("failed to touch session", "error", err)
	}

	log.Info("message stored", "messageId", msg.ID, "sender", u.Username,
		"body", logger.Truncate(body, bodyLogMaxLen))

	result := rpc.ChatSendResult{Message: msg}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		log.Error("failed to send chat send response", "error", err)
	}
}
