package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

const idlePollInterval = 100 * time.Millisecond

// networkTracker counts in-flight requests of the tab so navigation can wait
// for the network to settle rather than only for the load event.
type networkTracker struct {
	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	changed  time.Time
	now      func() time.Time
}

func newNetworkTracker() *networkTracker {
	return &networkTracker{
		inflight: make(map[network.RequestID]struct{}),
		changed:  time.Now(),
		now:      time.Now,
	}
}

// handle is registered with chromedp.ListenTarget. It runs on the event loop
// and must not block.
func (t *networkTracker) handle(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.start(e.RequestID)
	case *network.EventLoadingFinished:
		t.finish(e.RequestID)
	case *network.EventLoadingFailed:
		t.finish(e.RequestID)
	}
}

func (t *networkTracker) start(id network.RequestID) {
	t.mu.Lock()
	t.inflight[id] = struct{}{}
	t.changed = t.now()
	t.mu.Unlock()
}

func (t *networkTracker) finish(id network.RequestID) {
	t.mu.Lock()
	if _, ok := t.inflight[id]; ok {
		delete(t.inflight, id)
		t.changed = t.now()
	}
	t.mu.Unlock()
}

// reset forgets requests belonging to the previous document.
func (t *networkTracker) reset() {
	t.mu.Lock()
	t.inflight = make(map[network.RequestID]struct{})
	t.changed = t.now()
	t.mu.Unlock()
}

// idle reports whether at most maxInflight requests have been pending for at
// least quiet.
func (t *networkTracker) idle(maxInflight int, quiet time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) <= maxInflight && t.now().Sub(t.changed) >= quiet
}

func (t *networkTracker) pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

func (t *networkTracker) waitIdle(ctx context.Context, maxInflight int, quiet time.Duration) error {
	if t.idle(maxInflight, quiet) {
		return nil
	}
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("network still busy (%d pending): %w", t.pending(), ctx.Err())
		case <-ticker.C:
			if t.idle(maxInflight, quiet) {
				return nil
			}
		}
	}
}
