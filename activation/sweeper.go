// Package activation flips sessions to active once both participants have
// joined and the membership has settled.
package activation

import (
	"context"
	"log/slog"
	"time"

	"github.com/parleychat/parley/session"
	"github.com/parleychat/parley/settings"
)

// ConfigSource yields the current activation tuning.
// Satisfied by *settings.Store.
type ConfigSource interface {
	Get() settings.Settings
}

// Sweeper periodically scans sessions and activates the ones where every
// participant has joined and the newest join is at least a settle delay old.
//
// Activation is deliberately asynchronous: a join never flips the flag in
// the same request, so clients observing a session right after its second
// join will still see it inactive for up to a sweep interval plus the
// settle delay. Client-side reconciliation covers that window.
type Sweeper struct {
	sessions session.Store
	config   ConfigSource
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewSweeper(sessions session.Store, config ConfigSource) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		sessions: sessions,
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the sweep loop. The sweep interval is read once at start;
// the settle delay is re-read on every sweep so settings edits apply live.
func (s *Sweeper) Start() {
	cfg := s.config.Get()
	go s.sweepLoop(cfg.SweepInterval())
	slog.Info("activation sweeper started",
		"sweepInterval", cfg.SweepInterval(), "settleDelay", cfg.SettleDelay())
}

// Stop cancels the sweep loop.
func (s *Sweeper) Stop() {
	s.cancel()
	slog.Info("activation sweeper stopped")
}

func (s *Sweeper) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	sessions, err := s.sessions.List()
	if err != nil {
		slog.Warn("activation sweep failed to list sessions", "error", err)
		return
	}

	settleDelay := s.config.Get().SettleDelay()
	now := time.Now()

	for _, sess := range sessions {
		if sess.Active || !sess.AllJoined() {
			continue
		}
		if now.Sub(sess.LastJoinedAt()) < settleDelay {
			continue
		}
		if err := s.sessions.Activate(sess.ID); err != nil {
			slog.Warn("failed to activate session", "sessionId", sess.ID, "error", err)
			continue
		}
		slog.Info("session activated", "sessionId", sess.ID)
	}
}
