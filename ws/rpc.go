// Package ws serves the JSON-RPC 2.0 API over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/parleychat/parley/logger"
	"github.com/parleychat/parley/message"
	"github.com/parleychat/parley/rpc"
	"github.com/parleychat/parley/session"
	"github.com/parleychat/parley/settings"
	"github.com/parleychat/parley/user"
	"github.com/sourcegraph/jsonrpc2"
)

// RPCHandler handles JSON-RPC 2.0 over WebSocket.
type RPCHandler struct {
	version       string
	devMode       bool
	registry      *user.Registry
	sessions      session.Store
	messages      message.Store
	settingsStore *settings.Store
}

func NewRPCHandler(version string, devMode bool, registry *user.Registry, sessions session.Store, messages message.Store, settingsStore *settings.Store) *RPCHandler {
	return &RPCHandler{
		version:       version,
		devMode:       devMode,
		registry:      registry,
		sessions:      sessions,
		messages:      messages,
		settingsStore: settingsStore,
	}
}

func (h *RPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: h.devMode,
	})
	if err != nil {
		slog.Error("failed to accept websocket", "error", err)
		return
	}

	h.handleConnection(r.Context(), conn)
}

func (h *RPCHandler) handleConnection(ctx context.Context, wsConn *websocket.Conn) {
	stream := rpc.NewWebSocketStream(wsConn)
	connID := uuid.Must(uuid.NewV7()).String()
	h.HandleStream(ctx, stream, connID)
}

// HandleStream runs the RPC loop on an already established stream and
// blocks until the peer disconnects.
func (h *RPCHandler) HandleStream(ctx context.Context, stream jsonrpc2.ObjectStream, connID string) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r, "websocket connection crashed", "connId", connID)
		}
	}()

	log := slog.With("connId", connID)
	log.Info("new connection")

	state := &rpcConnState{
		connID: connID,
		log:    log,
		// user is set after auth
	}

	handler := &rpcMethodHandler{
		RPCHandler: h,
		state:      state,
		log:        log,
	}

	rpcConn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.AsyncHandler(handler))

	<-rpcConn.DisconnectNotify()

	log.Info("connection closed")
}

// rpcConnState tracks per-connection state.
type rpcConnState struct {
	mu     sync.Mutex
	connID string
	log    *slog.Logger
	user   *user.User // set after auth
}

func (s *rpcConnState) getUser() *user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *rpcConnState) setUser(u user.User) {
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
}

type rpcMethodHandler struct {
	*RPCHandler
	state *rpcConnState
	log   *slog.Logger
}

func (h *rpcMethodHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	defer func() {
		if r := recover(); r != nil {
			logger.LogPanic(r, "rpc handler panic", "method", req.Method, "connId", h.state.connID)
		}
	}()

	h.log.Debug("received request", "method", req.Method, "id", req.ID)

	// Auth must be the first request
	u := h.state.getUser()
	if u == nil {
		if req.Method != "auth" {
			h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidRequest, "first request must be auth")
			conn.Close()
			return
		}
		h.handleAuth(ctx, conn, req)
		return
	}

	// Dispatch to method handlers
	switch req.Method {
	// session namespace
	case "session.list":
		h.handleSessionList(ctx, conn, req, *u)
	case "session.create":
		h.handleSessionCreate(ctx, conn, req, *u)
	case "session.join":
		h.handleSessionJoin(ctx, conn, req, *u)
	// chat namespace
	case "chat.history":
		h.handleChatHistory(ctx, conn, req, *u)
	case "chat.send":
		h.handleChatSend(ctx, conn, req, *u)
	// user namespace
	case "user.profile":
		h.handleUserProfile(ctx, conn, req, *u)
	default:
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeMethodNotFound, "method not found: "+req.Method)
	}
}

func (h *rpcMethodHandler) handleAuth(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params rpc.AuthParams
	if err := unmarshalParams(req, &params); err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "invalid params")
		conn.Close()
		return
	}

	u, ok := h.registry.Authenticate(params.Token)
	if !ok {
		h.log.Warn("invalid auth token")
		h.replyError(ctx, conn, req.ID, rpc.CodeUnauthorized, "invalid token")
		conn.Close()
		return
	}

	h.state.setUser(u)
	h.log.Info("authenticated", "userId", u.ID, "username", u.Username)

	result := rpc.AuthResult{
		Version:  h.version,
		Server:   h.settingsStore.Get().ServerName,
		UserID:   u.ID,
		Username: u.Username,
	}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		h.log.Error("failed to send auth response", "error", err)
	}
}

func (h *rpcMethodHandler) replyError(ctx context.Context, conn *jsonrpc2.Conn, id jsonrpc2.ID, code int64, message string) {
	err := &jsonrpc2.Error{
		Code:    code,
		Message: message,
	}
	if replyErr := conn.ReplyWithError(ctx, id, err); replyErr != nil {
		h.log.Error("failed to send error response", "error", replyErr)
	}
}

func unmarshalParams(req *jsonrpc2.Request, v interface{}) error {
	if req.Params == nil {
		return errors.New("params required")
	}
	return json.Unmarshal(*req.Params, v)
}

// getParticipantSession loads a session and verifies u belongs to it,
// replying with the appropriate error when it doesn't. The bool reports
// whether the caller may proceed.
func (h *rpcMethodHandler) getParticipantSession(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, sessionID string, u user.User) (session.Session, bool) {
	if sessionID == "" {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInvalidParams, "session_id is required")
		return session.Session{}, false
	}

	sess, found, err := h.sessions.Get(sessionID)
	if err != nil {
		h.replyError(ctx, conn, req.ID, jsonrpc2.CodeInternalError, "failed to get session")
		return session.Session{}, false
	}
	if !found {
		h.replyError(ctx, conn, req.ID, rpc.CodeNotFound, "session not found")
		return session.Session{}, false
	}
	if !sess.HasParticipant(u.ID) {
		h.replyError(ctx, conn, req.ID, rpc.CodeNotParticipant, "not a session participant")
		return session.Session{}, false
	}
	return sess, true
}
