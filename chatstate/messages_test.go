package chatstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/parleychat/parley/rpc"
)

// messageFeed is a scriptable MessageFetcher.
type messageFeed struct {
	mu    sync.Mutex
	msgs  []rpc.Message
	err   error
	calls int
	ids   []string
}

func (f *messageFeed) fetch(ctx context.Context, sessionID string) ([]rpc.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ids = append(f.ids, sessionID)
	if f.err != nil {
		return nil, f.err
	}
	return append([]rpc.Message(nil), f.msgs...), nil
}

func (f *messageFeed) set(msgs ...rpc.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = msgs
	f.err = nil
}

func (f *messageFeed) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *messageFeed) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fetchRecorder records onFetched deliveries.
type fetchRecorder struct {
	mu      sync.Mutex
	batches [][]rpc.Message
}

func (r *fetchRecorder) record(msgs []rpc.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, msgs)
}

func (r *fetchRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *fetchRecorder) lastLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.batches) == 0 {
		return -1
	}
	return len(r.batches[len(r.batches)-1])
}

func newTestMessagePoller(feed *messageFeed, rec *fetchRecorder, interval time.Duration) *MessagePoller {
	return NewMessagePoller(MessagePollerConfig{
		SessionID: "s1",
		Interval:  interval,
		Fetch:     feed.fetch,
		OnFetched: rec.record,
	})
}

func TestMessagePoller_FetchesImmediately(t *testing.T) {
	feed := &messageFeed{}
	feed.set(rpc.Message{ID: "m1", Body: "hello"})
	rec := &fetchRecorder{}

	// Interval far beyond the test duration: only the immediate fetch fires.
	p := newTestMessagePoller(feed, rec, time.Hour)
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return rec.count() == 1 })
	if rec.lastLen() != 1 {
		t.Errorf("delivered %d messages, want 1", rec.lastLen())
	}

	feed.mu.Lock()
	requested := feed.ids[0]
	feed.mu.Unlock()
	if requested != "s1" {
		t.Errorf("fetched session %q, want s1", requested)
	}
}

func TestMessagePoller_ReplacesListEachFetch(t *testing.T) {
	feed := &messageFeed{}
	feed.set(rpc.Message{ID: "m1"})
	rec := &fetchRecorder{}

	p := newTestMessagePoller(feed, rec, 10*time.Millisecond)
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return rec.lastLen() == 1 })

	feed.set(rpc.Message{ID: "m1"}, rpc.Message{ID: "m2"}, rpc.Message{ID: "m3"})
	waitFor(t, func() bool { return rec.lastLen() == 3 })
}

func TestMessagePoller_ContinuesAfterError(t *testing.T) {
	feed := &messageFeed{}
	feed.setErr(errors.New("temporarily unavailable"))
	rec := &fetchRecorder{}

	p := newTestMessagePoller(feed, rec, 10*time.Millisecond)
	p.Start()
	defer p.Stop()

	waitFor(t, func() bool { return feed.callCount() >= 3 })
	if rec.count() != 0 {
		t.Fatal("failed fetches must not be delivered")
	}

	feed.set(rpc.Message{ID: "m1"})
	waitFor(t, func() bool { return rec.count() >= 1 })
}

func TestMessagePoller_StopIsIdempotent(t *testing.T) {
	feed := &messageFeed{}
	rec := &fetchRecorder{}

	p := newTestMessagePoller(feed, rec, 10*time.Millisecond)
	p.Start()

	waitFor(t, func() bool { return feed.callCount() >= 2 })
	p.Stop()
	p.Stop()

	stopped := feed.callCount()
	time.Sleep(60 * time.Millisecond)
	if extra := feed.callCount() - stopped; extra > 1 {
		t.Errorf("poller kept fetching after Stop (%d extra calls)", extra)
	}
}
