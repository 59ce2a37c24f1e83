package ws

import (
	"context"

	"github.com/parleychat/parley/rpc"
	"github.com/parleychat/parley/user"
	"github.com/sourcegraph/jsonrpc2"
)

func (h *rpcMethodHandler) handleUserProfile(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, u user.User) {
	result := rpc.UserProfileResult{
		UserID:   u.ID,
		Username: u.Username,
	}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		h.log.Error("failed to send user profile response", "error", err)
	}
}
