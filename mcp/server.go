// Package mcp exposes a parley account as Model Context Protocol tools over
// stdio, so coding agents can hold a chat through the same RPC surface the
// terminal UI uses.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"github.com/parleychat/parley/rpc"
)

// API is the slice of the chat client the tool handlers need.
// *client.Client satisfies it.
type API interface {
	Identity() rpc.AuthResult
	Sessions(ctx context.Context, forceRefresh bool) ([]rpc.SessionSnapshot, error)
	CreateSession(ctx context.Context, username string) (rpc.SessionCreateResult, error)
	JoinSession(ctx context.Context, sessionID string) (rpc.SessionSnapshot, error)
	Messages(ctx context.Context, sessionID string) ([]rpc.Message, error)
	Send(ctx context.Context, sessionID, body string) (rpc.Message, error)
}

// Server bridges MCP tool calls to the chat API.
type Server struct {
	api API
	mcp *server.MCPServer
}

// NewServer builds the bridge and registers every chat tool on it.
func NewServer(api API, version string) *Server {
	s := &Server{api: api}
	srv := server.NewMCPServer("parley", version,
		server.WithToolCapabilities(false),
	)
	for _, t := range s.tools() {
		srv.AddTool(t.def, t.handle)
	}
	s.mcp = srv
	return s
}

// ServeStdio answers MCP requests on stdin/stdout until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}
