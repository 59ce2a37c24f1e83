package chatstate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parleychat/parley/rpc"
)

const defaultMessageInterval = 5 * time.Second

// MessageFetcher returns the full message list of one session, oldest first.
type MessageFetcher func(ctx context.Context, sessionID string) ([]rpc.Message, error)

// MessagePoller keeps the message list of the selected session fresh. It
// runs unconditionally, regardless of activation state: messages can exist
// for a session the server has not marked active yet, and their presence is
// exactly the signal the reconciler depends on. Each successful fetch
// replaces the whole list; failures are logged and the cadence continues.
type MessagePoller struct {
	sessionID string
	interval  time.Duration
	fetch     MessageFetcher
	onFetched func([]rpc.Message)
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
}

// MessagePollerConfig carries the capabilities a MessagePoller needs.
// Fetch and OnFetched are required.
type MessagePollerConfig struct {
	SessionID string
	// Interval between fetches. Defaults to 5s.
	Interval time.Duration
	Fetch    MessageFetcher
	// OnFetched receives each successfully fetched list, replace-on-fetch.
	OnFetched func([]rpc.Message)
	Log       *slog.Logger
}

func NewMessagePoller(cfg MessagePollerConfig) *MessagePoller {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultMessageInterval
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MessagePoller{
		sessionID: cfg.SessionID,
		interval:  cfg.Interval,
		fetch:     cfg.Fetch,
		onFetched: cfg.OnFetched,
		log:       cfg.Log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (p *MessagePoller) Start() {
	p.startOnce.Do(func() {
		go p.pollLoop()
		p.log.Debug("message poller started",
			"sessionId", p.sessionID,
			"interval", p.interval)
	})
}

// Stop ends the loop. Idempotent.
func (p *MessagePoller) Stop() {
	p.cancel()
}

func (p *MessagePoller) pollLoop() {
	// A fresh selection should not wait a full interval for its history.
	p.fetchOnce()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.fetchOnce()
		}
	}
}

func (p *MessagePoller) fetchOnce() {
	msgs, err := p.fetch(p.ctx, p.sessionID)
	if err != nil {
		p.log.Warn("message fetch failed",
			"sessionId", p.sessionID,
			"error", err)
		return
	}
	p.onFetched(msgs)
}
