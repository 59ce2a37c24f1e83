package chatstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/parleychat/parley/rpc"
)

const defaultNoticeTTL = 5 * time.Second

var (
	ErrNoSession       = errors.New("no session selected")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrSessionNotFound = errors.New("session not found")
)

// API is the capability surface the controller needs from a chat client.
type API interface {
	Sessions(ctx context.Context, forceRefresh bool) ([]rpc.SessionSnapshot, error)
	Messages(ctx context.Context, sessionID string) ([]rpc.Message, error)
	Send(ctx context.Context, sessionID, body string) (rpc.Message, error)
}

// SendNotice is a user-facing send failure. It stays visible until dismissed
// or until its TTL expires.
type SendNotice struct {
	Text string
	At   time.Time
}

// View is a read-only snapshot of the controller state for rendering.
type View struct {
	Session  *rpc.SessionSnapshot
	Messages []rpc.Message
	State    LocalChatState
	Notice   *SendNotice
}

// Options tune a Controller. The zero value uses production defaults.
type Options struct {
	StatusInterval  time.Duration // activation poll cadence, default 3s
	MessageInterval time.Duration // message poll cadence, default 5s
	NoticeTTL       time.Duration // send failure notice lifetime, default 5s
	Logger          *slog.Logger
	// OnUpdate, when set, is called after every observable state change,
	// outside the controller lock. Intended for UI repaint scheduling.
	OnUpdate func()
}

// Controller owns the selected session's local state and the two pollers
// that feed it. The pollers live and die with the selection: switching or
// closing cancels both as a unit. Results that arrive for a superseded
// selection are discarded by generation, so a slow in-flight fetch for the
// previous session can never touch the next one's state.
type Controller struct {
	api API
	log *slog.Logger

	statusInterval  time.Duration
	messageInterval time.Duration
	noticeTTL       time.Duration
	onUpdate        func()

	mu         sync.Mutex
	generation int
	session    *rpc.SessionSnapshot
	messages   []rpc.Message
	state      LocalChatState
	notice     *SendNotice
	noticeSeq  int

	activationPoller *ActivationPoller
	messagePoller    *MessagePoller
}

func NewController(api API, opts Options) *Controller {
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = defaultStatusInterval
	}
	if opts.MessageInterval <= 0 {
		opts.MessageInterval = defaultMessageInterval
	}
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = defaultNoticeTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		api:             api,
		log:             opts.Logger,
		statusInterval:  opts.StatusInterval,
		messageInterval: opts.MessageInterval,
		noticeTTL:       opts.NoticeTTL,
		onUpdate:        opts.OnUpdate,
	}
}

// SelectSession makes sessionID the current session: it cancels the previous
// selection's pollers, fetches a fresh snapshot, and starts the message
// poller plus, while the snapshot is unsettled, the activation poller.
func (c *Controller) SelectSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.stopPollersLocked()
	c.session = nil
	c.messages = nil
	c.state = LocalChatState{}
	c.clearNoticeLocked()
	c.mu.Unlock()
	c.notifyUpdate()

	snaps, err := c.api.Sessions(ctx, true)
	if err != nil {
		return fmt.Errorf("fetch sessions: %w", err)
	}
	snap, ok := findSession(snaps, sessionID)
	if !ok {
		return ErrSessionNotFound
	}

	c.mu.Lock()
	if c.generation != gen {
		// A newer selection superseded this one while fetching.
		c.mu.Unlock()
		return nil
	}
	c.session = &snap
	c.state = Compute(snap, 0)

	c.messagePoller = NewMessagePoller(MessagePollerConfig{
		SessionID: sessionID,
		Interval:  c.messageInterval,
		Fetch:     c.api.Messages,
		OnFetched: func(msgs []rpc.Message) { c.applyMessages(gen, msgs) },
		Log:       c.log,
	})
	c.messagePoller.Start()

	if NeedsPolling(snap) {
		c.activationPoller = NewActivationPoller(ActivationPollerConfig{
			SessionID:    sessionID,
			Interval:     c.statusInterval,
			Fetch:        c.api.Sessions,
			MessageCount: func() int { return c.messageCountFor(gen) },
			OnSettled:    func(s rpc.SessionSnapshot) { c.applySnapshot(gen, s) },
			Log:          c.log,
		})
		c.activationPoller.Start()
	}
	c.mu.Unlock()
	c.notifyUpdate()
	return nil
}

// Send trims and sends text to the current session. On success the local
// state is promoted to ready immediately; the sent message itself shows up
// with the next message fetch. On failure a notice is set for display and
// the state is left untouched; the send is not retried.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	gen := c.generation
	sessionID := c.session.ID
	c.mu.Unlock()

	_, err := c.api.Send(ctx, sessionID, text)

	c.mu.Lock()
	if c.generation != gen {
		// The selection changed mid-send; the result belongs to the old one.
		c.mu.Unlock()
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
		return nil
	}

	if err != nil {
		c.setNoticeLocked(sendNoticeText(err))
		c.mu.Unlock()
		c.notifyUpdate()
		return fmt.Errorf("send message: %w", err)
	}

	// A successful send is proof of usability; promote now instead of
	// waiting for the next poll round.
	c.state = LocalChatState{IsActive: true, HasJoined: true, IsReady: true}
	c.mu.Unlock()
	c.notifyUpdate()
	return nil
}

// Refresh performs one reconciliation fetch outside the poll cadence.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrNoSession
	}
	gen := c.generation
	sessionID := c.session.ID
	c.mu.Unlock()

	snaps, err := c.api.Sessions(ctx, true)
	if err != nil {
		return fmt.Errorf("fetch sessions: %w", err)
	}
	if snap, ok := findSession(snaps, sessionID); ok {
		c.applySnapshot(gen, snap)
	}
	return nil
}

// State returns a copy of the current view for rendering.
func (c *Controller) State() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{State: c.state}
	if c.session != nil {
		snap := *c.session
		v.Session = &snap
	}
	if len(c.messages) > 0 {
		v.Messages = append([]rpc.Message(nil), c.messages...)
	}
	if c.notice != nil {
		n := *c.notice
		v.Notice = &n
	}
	return v
}

// DismissNotice clears the send failure notice before its TTL expires.
func (c *Controller) DismissNotice() {
	c.mu.Lock()
	changed := c.notice != nil
	c.clearNoticeLocked()
	c.mu.Unlock()
	if changed {
		c.notifyUpdate()
	}
}

// Close deselects the session and cancels both pollers. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	c.generation++
	c.stopPollersLocked()
	c.session = nil
	c.messages = nil
	c.state = LocalChatState{}
	c.clearNoticeLocked()
	c.mu.Unlock()
	c.notifyUpdate()
}

func (c *Controller) applyMessages(gen int, msgs []rpc.Message) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.messages = msgs
	c.recomputeLocked()
	c.mu.Unlock()
	c.notifyUpdate()
}

func (c *Controller) applySnapshot(gen int, snap rpc.SessionSnapshot) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		return
	}
	c.session = &snap
	c.recomputeLocked()
	c.mu.Unlock()
	c.notifyUpdate()
}

// recomputeLocked re-derives the local state. Readiness is terminal for the
// current selection: once reached it never downgrades, whatever later
// fetches report.
func (c *Controller) recomputeLocked() {
	if c.state.IsReady || c.session == nil {
		return
	}
	c.state = Compute(*c.session, len(c.messages))
}

func (c *Controller) messageCountFor(gen int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return 0
	}
	return len(c.messages)
}

func (c *Controller) setNoticeLocked(text string) {
	c.noticeSeq++
	seq := c.noticeSeq
	c.notice = &SendNotice{Text: text, At: time.Now()}
	time.AfterFunc(c.noticeTTL, func() { c.expireNotice(seq) })
}

func (c *Controller) expireNotice(seq int) {
	c.mu.Lock()
	if c.noticeSeq != seq || c.notice == nil {
		c.mu.Unlock()
		return
	}
	c.notice = nil
	c.mu.Unlock()
	c.notifyUpdate()
}

// clearNoticeLocked drops the notice and invalidates any pending expiry.
func (c *Controller) clearNoticeLocked() {
	c.noticeSeq++
	c.notice = nil
}

func (c *Controller) stopPollersLocked() {
	if c.activationPoller != nil {
		c.activationPoller.Stop()
		c.activationPoller = nil
	}
	if c.messagePoller != nil {
		c.messagePoller.Stop()
		c.messagePoller = nil
	}
}

func (c *Controller) notifyUpdate() {
	if c.onUpdate != nil {
		c.onUpdate()
	}
}

// sendNoticeText renders a send failure for display. Server rejections carry
// their own message; transport failures get a generic one.
func sendNoticeText(err error) string {
	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Message
	}
	return "failed to send message"
}

func findSession(snaps []rpc.SessionSnapshot, id string) (rpc.SessionSnapshot, bool) {
	for _, snap := range snaps {
		if snap.ID == id {
			return snap, true
		}
	}
	return rpc.SessionSnapshot{}, false
}
