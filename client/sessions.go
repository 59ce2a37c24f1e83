package client

import (
	"context"
	"time"

	"github.com/parleychat/parley/rpc"
)

// Sessions lists the sessions visible to this user. forceRefresh bypasses
// the short-lived cache; reconciliation polls must set it so server-side
// flag flips are actually observed.
func (c *Client) Sessions(ctx context.Context, forceRefresh bool) ([]rpc.SessionSnapshot, error) {
	if !forceRefresh {
		if snaps, ok := c.cachedSessions(); ok {
			return snaps, nil
		}
	}

	var res rpc.SessionListResult
	if err := c.call(ctx, "session.list", struct{}{}, &res); err != nil {
		return nil, err
	}
	c.storeSessions(res.Sessions)
	return res.Sessions, nil
}

// CreateSession opens a session with another user, or returns the existing
// one for the pair.
func (c *Client) CreateSession(ctx context.Context, username string) (rpc.SessionCreateResult, error) {
	var res rpc.SessionCreateResult
	if err := c.call(ctx, "session.create", rpc.SessionCreateParams{Username: username}, &res); err != nil {
		return rpc.SessionCreateResult{}, err
	}
	c.invalidateSessions()
	return res, nil
}

// JoinSession records this user as joined and returns the updated snapshot.
func (c *Client) JoinSession(ctx context.Context, sessionID string) (rpc.SessionSnapshot, error) {
	var res rpc.SessionJoinResult
	if err := c.call(ctx, "session.join", rpc.SessionJoinParams{SessionID: sessionID}, &res); err != nil {
		return rpc.SessionSnapshot{}, err
	}
	c.invalidateSessions()
	return res.Session, nil
}

func (c *Client) cachedSessions() ([]rpc.SessionSnapshot, bool) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if c.cacheTTL <= 0 || c.cached == nil || time.Since(c.cachedAt) > c.cacheTTL {
		return nil, false
	}
	return append([]rpc.SessionSnapshot(nil), c.cached...), true
}

func (c *Client) storeSessions(snaps []rpc.SessionSnapshot) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if c.cacheTTL <= 0 {
		return
	}
	c.cached = make([]rpc.SessionSnapshot, 0, len(snaps))
	c.cached = append(c.cached, snaps...)
	c.cachedAt = time.Now()
}

// invalidateSessions drops the cache after any mutation that can change
// session state: create, join, and send (sending implies joining).
func (c *Client) invalidateSessions() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cached = nil
}
