package chatstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parleychat/parley/rpc"
)

// sessionFeed is a scriptable SessionFetcher.
type sessionFeed struct {
	mu        sync.Mutex
	snaps     []rpc.SessionSnapshot
	err       error
	calls     int
	lastForce bool
}

func (f *sessionFeed) fetch(ctx context.Context, forceRefresh bool) ([]rpc.SessionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastForce = forceRefresh
	if f.err != nil {
		return nil, f.err
	}
	return append([]rpc.SessionSnapshot(nil), f.snaps...), nil
}

func (f *sessionFeed) set(snaps ...rpc.SessionSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = snaps
	f.err = nil
}

func (f *sessionFeed) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *sessionFeed) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// settleRecorder records onSettled invocations.
type settleRecorder struct {
	mu    sync.Mutex
	snaps []rpc.SessionSnapshot
}

func (r *settleRecorder) record(snap rpc.SessionSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *settleRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *settleRecorder) last() rpc.SessionSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[len(r.snaps)-1]
}

func newTestActivationPoller(feed *sessionFeed, rec *settleRecorder, messageCount func() int) *ActivationPoller {
	if messageCount == nil {
		messageCount = func() int { return 0 }
	}
	return NewActivationPoller(ActivationPollerConfig{
		SessionID:    "s1",
		Interval:     10 * time.Millisecond,
		Fetch:        feed.fetch,
		MessageCount: messageCount,
		OnSettled:    rec.record,
	})
}

func TestActivationPoller_SettlesOnActiveAndStops(t *testing.T) {
	feed := &sessionFeed{}
	feed.set(rpc.SessionSnapshot{ID: "s1"})
	rec := &settleRecorder{}

	p := newTestActivationPoller(feed, rec, nil)
	p.Start()
	defer p.Stop()

	// Unsettled: the poller keeps fetching without settling.
	waitFor(t, func() bool { return feed.callCount() >= 2 })
	if rec.count() != 0 {
		t.Fatal("poller settled on an inactive session")
	}

	feed.set(rpc.SessionSnapshot{ID: "s1", IsActive: true, HasJoined: true})
	waitFor(t, func() bool { return rec.count() == 1 })

	if !rec.last().IsActive {
		t.Error("onSettled should receive the settling snapshot")
	}

	// Self-cancelled: no further fetches after settling.
	settled := feed.callCount()
	time.Sleep(60 * time.Millisecond)
	if extra := feed.callCount() - settled; extra > 1 {
		t.Errorf("poller kept fetching after settle (%d extra calls)", extra)
	}
	if rec.count() != 1 {
		t.Errorf("onSettled called %d times, want 1", rec.count())
	}
}

func TestActivationPoller_LocalMessagesForceSettle(t *testing.T) {
	feed := &sessionFeed{}
	feed.set(rpc.SessionSnapshot{ID: "s1"}) // stays inactive
	rec := &settleRecorder{}

	p := newTestActivationPoller(feed, rec, func() int { return 2 })
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return rec.count() == 1 })
	if rec.last().IsActive {
		t.Error("settling snapshot should still report inactive")
	}
}

func TestActivationPoller_RetriesOnFetchError(t *testing.T) {
	feed := &sessionFeed{}
	feed.setErr(errors.New("connection refused"))
	rec := &settleRecorder{}

	p := newTestActivationPoller(feed, rec, nil)
	p.Start()
	defer p.Stop()

	// Failures never end the loop.
	waitFor(t, func() bool { return feed.callCount() >= 3 })
	if rec.count() != 0 {
		t.Fatal("poller settled despite fetch errors")
	}

	feed.set(rpc.SessionSnapshot{ID: "s1", IsActive: true, HasJoined: true})
	waitFor(t, func() bool { return rec.count() == 1 })
}

func TestActivationPoller_IgnoresOtherSessions(t *testing.T) {
	feed := &sessionFeed{}
	feed.set(rpc.SessionSnapshot{ID: "other", IsActive: true, HasJoined: true})
	rec := &settleRecorder{}

	p := newTestActivationPoller(feed, rec, nil)
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return feed.callCount() >= 3 })
	if rec.count() != 0 {
		t.Fatal("poller settled on a different session's snapshot")
	}

	feed.set(
		rpc.SessionSnapshot{ID: "other", IsActive: true, HasJoined: true},
		rpc.SessionSnapshot{ID: "s1", IsActive: true, HasJoined: true},
	)
	waitFor(t, func() bool { return rec.count() == 1 })
	if rec.last().ID != "s1" {
		t.Errorf("settled on session %q, want s1", rec.last().ID)
	}
}

func TestActivationPoller_FetchBypassesCache(t *testing.T) {
	feed := &sessionFeed{}
	feed.set(rpc.SessionSnapshot{ID: "s1"})
	rec := &settleRecorder{}

	p := newTestActivationPoller(feed, rec, nil)
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return feed.callCount() >= 1 })

	feed.mu.Lock()
	force := feed.lastForce
	feed.mu.Unlock()
	if !force {
		t.Error("reconciliation fetches must request a refresh")
	}
}

func TestActivationPoller_StopIsIdempotent(t *testing.T) {
	feed := &sessionFeed{}
	feed.set(rpc.SessionSnapshot{ID: "s1"})
	rec := &settleRecorder{}

	p := newTestActivationPoller(feed, rec, nil)
	p.Start()

	waitFor(t, func() bool { return feed.callCount() >= 1 })
	p.Stop()
	p.Stop()

	stopped := feed.callCount()
	time.Sleep(60 * time.Millisecond)
	if extra := feed.callCount() - stopped; extra > 1 {
		t.Errorf("poller kept fetching after Stop (%d extra calls)", extra)
	}
}
