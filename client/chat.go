package client

import (
	"context"

	"github.com/parleychat/parley/rpc"
)

// Messages returns the full message list of one session, oldest first. It is
// always fetched fresh: message presence is the liveness signal the state
// reconciler depends on, so it must never come from a cache.
func (c *Client) Messages(ctx context.Context, sessionID string) ([]rpc.Message, error) {
	var res rpc.ChatHistoryResult
	if err := c.call(ctx, "chat.history", rpc.ChatHistoryParams{SessionID: sessionID}, &res); err != nil {
		return nil, err
	}
	return res.Messages, nil
}

// Send posts a message to a session. The server counts a successful send as
// joining, so the session cache is invalidated.
func (c *Client) Send(ctx context.Context, sessionID, body string) (rpc.Message, error) {
	var res rpc.ChatSendResult
	if err := c.call(ctx, "chat.send", rpc.ChatSendParams{SessionID: sessionID, Body: body}, &res); err != nil {
		return rpc.Message{}, err
	}
	c.invalidateSessions()
	return res.Message, nil
}
