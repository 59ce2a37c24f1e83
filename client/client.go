// Package client implements the Go client for a parley server: HTTP login,
// then the JSON-RPC 2.0 WebSocket API for everything after.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/parleychat/parley/chatstate"
	"github.com/parleychat/parley/rpc"
	"github.com/sourcegraph/jsonrpc2"
)

const (
	defaultHTTPTimeout     = 10 * time.Second
	defaultSessionCacheTTL = 2 * time.Second
)

// Client is an authenticated connection to one server. It is safe for
// concurrent use; RPC calls are multiplexed over a single WebSocket.
type Client struct {
	conn     *jsonrpc2.Conn
	identity rpc.AuthResult

	cacheTTL time.Duration
	cacheMu  sync.Mutex
	cached   []rpc.SessionSnapshot
	cachedAt time.Time
}

var _ chatstate.API = (*Client)(nil)

// Option configures a Client at dial time.
type Option func(*Client)

// WithSessionCacheTTL sets how long a fetched session list may serve
// non-forced reads. Zero disables the cache entirely.
func WithSessionCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cacheTTL = ttl }
}

// Login exchanges credentials for a bearer token over plain HTTP.
func Login(ctx context.Context, serverURL, username, password string) (rpc.LoginResponse, error) {
	body, err := json.Marshal(rpc.LoginRequest{Username: username, Password: password})
	if err != nil {
		return rpc.LoginResponse{}, err
	}

	endpoint := strings.TrimRight(serverURL, "/") + "/api/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return rpc.LoginResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := &http.Client{Timeout: defaultHTTPTimeout}
	resp, err := httpClient.Do(req)
	if err != nil {
		return rpc.LoginResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rpc.LoginResponse{}, decodeAPIError(resp)
	}

	var out rpc.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return rpc.LoginResponse{}, fmt.Errorf("decode login response: %w", err)
	}
	return out, nil
}

// Dial connects to the server's WebSocket endpoint and authenticates with
// the token. The returned Client is ready for RPC calls.
func Dial(ctx context.Context, serverURL, token string, opts ...Option) (*Client, error) {
	endpoint, err := wsURL(serverURL)
	if err != nil {
		return nil, err
	}

	wsConn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", endpoint, err)
	}

	c := &Client{cacheTTL: defaultSessionCacheTTL}
	for _, opt := range opts {
		opt(c)
	}

	// The connection outlives the dial context; each call carries its own.
	c.conn = jsonrpc2.NewConn(context.Background(), rpc.NewWebSocketStream(wsConn), noopHandler{})

	var res rpc.AuthResult
	if err := c.conn.Call(ctx, "auth", rpc.AuthParams{Token: token}, &res); err != nil {
		c.conn.Close()
		return nil, fmt.Errorf("authenticate: %w", rpc.FromCallError(err))
	}
	c.identity = res
	return c, nil
}

// noopHandler ignores server-initiated requests; the protocol is pure
// request/response from the client's side.
type noopHandler struct{}

func (noopHandler) Handle(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) {}

// Identity reports who this client authenticated as and which server
// answered.
func (c *Client) Identity() rpc.AuthResult { return c.identity }

// Disconnected is closed once the underlying connection is gone.
func (c *Client) Disconnected() <-chan struct{} { return c.conn.DisconnectNotify() }

func (c *Client) Close() error { return c.conn.Close() }

// Profile returns the authenticated user's profile.
func (c *Client) Profile(ctx context.Context) (rpc.UserProfileResult, error) {
	var res rpc.UserProfileResult
	if err := c.call(ctx, "user.profile", struct{}{}, &res); err != nil {
		return rpc.UserProfileResult{}, err
	}
	return res, nil
}

// call wraps conn.Call, converting server rejections to *rpc.Error.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	if err := c.conn.Call(ctx, method, params, result); err != nil {
		return rpc.FromCallError(err)
	}
	return nil
}

func wsURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q in server URL", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// APIError is a non-2xx response from the HTTP API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
