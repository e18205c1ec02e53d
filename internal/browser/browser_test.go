package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConfigWithDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, DefaultStartupTimeout, cfg.StartupTimeout)
	assert.Equal(t, DefaultNavigationTimeout, cfg.NavigationTimeout)
	assert.Equal(t, DefaultElementTimeout, cfg.ElementTimeout)
	assert.Equal(t, DefaultIdleConnections, cfg.IdleConnections)
	assert.Equal(t, DefaultIdleQuiet, cfg.IdleQuiet)

	custom := Config{UserAgent: "bot/1.0", ElementTimeout: time.Second}.withDefaults()
	assert.Equal(t, "bot/1.0", custom.UserAgent)
	assert.Equal(t, time.Second, custom.ElementTimeout)
}

func TestLaunchFlags(t *testing.T) {
	t.Parallel()

	flags := launchFlags(Config{})
	require.Equal(t, true, flags["headless"])
	require.Equal(t, true, flags["no-sandbox"])
	require.Equal(t, true, flags["single-process"])
	require.Equal(t, true, flags["disable-gpu"])
	require.Equal(t, true, flags["disable-dev-shm-usage"])

	flags = launchFlags(Config{Headed: true, Sandbox: true, MultiProcess: true})
	require.Equal(t, false, flags["headless"])
	require.Equal(t, false, flags["no-sandbox"])
	require.Equal(t, false, flags["single-process"])
	require.Equal(t, true, flags["disable-gpu"])
}

func TestNetworkTrackerIdle(t *testing.T) {
	t.Parallel()

	now := time.Unix(0, 0)
	tr := newNetworkTracker()
	tr.now = func() time.Time { return now }
	tr.reset()

	for i := 0; i < 3; i++ {
		tr.handle(&network.EventRequestWillBeSent{RequestID: network.RequestID(fmt.Sprint(i))})
	}
	now = now.Add(time.Second)
	require.False(t, tr.idle(2, 500*time.Millisecond), "three requests pending")

	tr.handle(&network.EventLoadingFinished{RequestID: "0"})
	require.False(t, tr.idle(2, 500*time.Millisecond), "quiet period restarts on change")

	now = now.Add(500 * time.Millisecond)
	require.True(t, tr.idle(2, 500*time.Millisecond))

	tr.handle(&network.EventLoadingFailed{RequestID: "1"})
	tr.handle(&network.EventLoadingFinished{RequestID: "unknown"})
	require.Equal(t, 1, tr.pending())

	tr.reset()
	require.Equal(t, 0, tr.pending())
}

func TestNetworkTrackerWaitIdleHonoursContext(t *testing.T) {
	t.Parallel()

	tr := newNetworkTracker()
	tr.handle(&network.EventRequestWillBeSent{RequestID: "a"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := tr.waitIdle(ctx, 0, time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNetworkTrackerWaitIdleReturnsOnceSettled(t *testing.T) {
	t.Parallel()

	tr := newNetworkTracker()
	tr.handle(&network.EventRequestWillBeSent{RequestID: "a"})
	go func() {
		time.Sleep(20 * time.Millisecond)
		tr.handle(&network.EventLoadingFinished{RequestID: "a"})
	}()
	require.NoError(t, tr.waitIdle(context.Background(), 0, 10*time.Millisecond))
}

type fakeScroller struct {
	mu     sync.Mutex
	calls  int
	failAt int
}

func (f *fakeScroller) ScrollToBottom(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAt > 0 && f.calls == f.failAt {
		return errors.New("target closed")
	}
	return nil
}

func TestPagerRunsAllAttempts(t *testing.T) {
	t.Parallel()

	s := &fakeScroller{}
	got := NewPager(4, 0, zap.NewNop()).Paginate(context.Background(), s)
	require.Equal(t, 4, got)
	require.Equal(t, 4, s.calls)
}

func TestPagerStopsOnScrollError(t *testing.T) {
	t.Parallel()

	s := &fakeScroller{failAt: 3}
	got := NewPager(10, 0, nil).Paginate(context.Background(), s)
	require.Equal(t, 2, got)
	require.Equal(t, 3, s.calls)
}

func TestPagerStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &fakeScroller{}
	require.Equal(t, 0, NewPager(5, time.Hour, nil).Paginate(ctx, s))
	require.Zero(t, s.calls)
}

func TestNewPagerDefaults(t *testing.T) {
	t.Parallel()

	p := NewPager(0, -time.Second, nil)
	if p.maxAttempts != DefaultPagerAttempts {
		t.Fatalf("expected default attempts, got %d", p.maxAttempts)
	}
	if p.delay != 0 {
		t.Fatalf("expected zero delay, got %v", p.delay)
	}
}

func TestForwardCancel(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()
	cancelParent()

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child context was not cancelled")
	}
}

func TestReleaseNilSession(t *testing.T) {
	t.Parallel()

	var s *Session
	s.Release()
}

func TestSessionAgainstLocalPage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!doctype html><html><body style="height:5000px">
<ul id="results"><li>one</li></ul>
<button class="more" onclick="document.getElementById('results').insertAdjacentHTML('beforeend','<li>two</li>')">more</button>
</body></html>`)
	}))
	defer srv.Close()

	m := NewManager(Config{StartupTimeout: 20 * time.Second}, zap.NewNop())
	ctx := context.Background()
	s, err := m.Acquire(ctx)
	if err != nil {
		t.Skipf("chrome unavailable: %v", err)
	}
	defer s.Release()

	require.NoError(t, s.Navigate(ctx, srv.URL))
	require.NoError(t, s.WaitFor(ctx, "#results"))

	clicked, err := s.ClickIfPresent(ctx, "button.more")
	require.NoError(t, err)
	require.True(t, clicked)

	clicked, err = s.ClickIfPresent(ctx, "button.absent")
	require.NoError(t, err)
	require.False(t, clicked)

	require.NoError(t, s.ScrollToBottom(ctx))

	html, err := s.HTML(ctx)
	require.NoError(t, err)
	require.True(t, strings.Contains(html, "<li>two</li>"))

	s.cfg.ElementTimeout = 200 * time.Millisecond
	err = s.WaitFor(ctx, "div.never")
	require.ErrorIs(t, err, ErrNoElement)

	s.Release()
	s.Release()
}
