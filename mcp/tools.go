package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type tool struct {
	def    mcp.Tool
	handle server.ToolHandlerFunc
}

func (s *Server) tools() []tool {
	return []tool{
		{
			def: mcp.NewTool("whoami",
				mcp.WithDescription("Report the authenticated user and the server answering for them."),
			),
			handle: s.handleWhoami,
		},
		{
			def: mcp.NewTool("session_list",
				mcp.WithDescription("List chat sessions visible to the authenticated user, with their activation and join flags."),
				mcp.WithBoolean("refresh", mcp.Description("Bypass the client-side session cache and ask the server directly")),
			),
			handle: s.handleSessionList,
		},
		{
			def: mcp.NewTool("session_create",
				mcp.WithDescription("Open a chat session with another user. Returns the existing session when one is already open between the two."),
				mcp.WithString("username", mcp.Required(), mcp.Description("Username of the peer to chat with")),
			),
			handle: s.handleSessionCreate,
		},
		{
			def: mcp.NewTool("session_join",
				mcp.WithDescription("Join a chat session you participate in."),
				mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
			),
			handle: s.handleSessionJoin,
		},
		{
			def: mcp.NewTool("chat_history",
				mcp.WithDescription("Fetch the messages of a session, oldest first."),
				mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
			),
			handle: s.handleChatHistory,
		},
		{
			def: mcp.NewTool("chat_send",
				mcp.WithDescription("Send a message to a session. Sending joins the session implicitly."),
				mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
				mcp.WithString("body", mcp.Required(), mcp.Description("Message text")),
			),
			handle: s.handleChatSend,
		},
	}
}
