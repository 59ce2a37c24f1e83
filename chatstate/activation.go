package chatstate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parleychat/parley/rpc"
)

const defaultStatusInterval = 3 * time.Second

// SessionFetcher lists the sessions visible to the authenticated user.
// forceRefresh bypasses any client-side cache.
type SessionFetcher func(ctx context.Context, forceRefresh bool) ([]rpc.SessionSnapshot, error)

// ActivationPoller re-fetches the session list until the watched session
// settles, then stops itself. A session counts as settled once the server
// reports it active or messages for it are already known locally. Fetch
// failures are logged and retried on the next tick, with no backoff and no
// failure limit; only settling or Stop ends the loop.
type ActivationPoller struct {
	sessionID    string
	interval     time.Duration
	fetch        SessionFetcher
	messageCount func() int
	onSettled    func(rpc.SessionSnapshot)
	log          *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
}

// ActivationPollerConfig carries the capabilities an ActivationPoller needs.
// Fetch, MessageCount and OnSettled are required.
type ActivationPollerConfig struct {
	SessionID string
	// Interval between fetches. Defaults to 3s.
	Interval time.Duration
	Fetch    SessionFetcher
	// MessageCount reports how many messages are currently known locally
	// for the session. Consulted on every tick.
	MessageCount func() int
	// OnSettled receives the settling snapshot. Called at most once.
	OnSettled func(rpc.SessionSnapshot)
	Log       *slog.Logger
}

func NewActivationPoller(cfg ActivationPollerConfig) *ActivationPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultStatusInterval
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ActivationPoller{
		sessionID:    cfg.SessionID,
		interval:     cfg.Interval,
		fetch:        cfg.Fetch,
		messageCount: cfg.MessageCount,
		onSettled:    cfg.OnSettled,
		log:          cfg.Log,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (p *ActivationPoller) Start() {
	p.startOnce.Do(func() {
		go p.pollLoop()
		p.log.Debug("activation poller started",
			"sessionId", p.sessionID,
			"interval", p.interval)
	})
}

// Stop ends the loop. Idempotent; safe to call after the poller has settled.
func (p *ActivationPoller) Stop() {
	p.cancel()
}

func (p *ActivationPoller) pollLoop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if p.checkSettled() {
				p.cancel()
				return
			}
		}
	}
}

// checkSettled fetches a fresh session list and reports whether the watched
// session has settled.
func (p *ActivationPoller) checkSettled() bool {
	// Reconciliation exists to observe server-side flips, so it must not be
	// served from a cache.
	snaps, err := p.fetch(p.ctx, true)
	if err != nil {
		p.log.Warn("session status fetch failed",
			"sessionId", p.sessionID,
			"error", err)
		return false
	}

	for _, snap := range snaps {
		if snap.ID != p.sessionID {
			continue
		}
		if snap.IsActive || p.messageCount() > 0 {
			p.log.Debug("session settled",
				"sessionId", p.sessionID,
				"isActive", snap.IsActive)
			p.onSettled(snap)
			return true
		}
		return false
	}

	// The session may not be visible yet; keep polling.
	return false
}
