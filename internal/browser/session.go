package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Manager launches browser sessions. It is safe for concurrent use; every
// Acquire starts a dedicated Chrome process.
type Manager struct {
	cfg    Config
	logger *zap.Logger
}

// NewManager returns a Manager using cfg with defaults applied.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg.withDefaults(), logger: logger}
}

// launchFlags lists the Chrome switches layered over chromedp's defaults.
// A false boolean removes the switch.
func launchFlags(cfg Config) map[string]any {
	return map[string]any{
		"headless":               !cfg.Headed,
		"disable-gpu":            true,
		"no-sandbox":             !cfg.Sandbox,
		"single-process":         !cfg.MultiProcess,
		"disable-dev-shm-usage":  true,
		"hide-scrollbars":        true,
		"enable-automation":      false,
		"disable-blink-features": "AutomationControlled",
	}
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range launchFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Acquire launches Chrome, opens a single tab and applies the session user
// agent. The returned Session must be released by the caller.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(m.cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	tracker := newNetworkTracker()
	chromedp.ListenTarget(tabCtx, tracker.handle)

	// The first Run starts the browser and must use the tab context itself;
	// a derived timeout context would tear the process down with it.
	stopForward := forwardCancel(ctx, tabCancel)
	timer := time.AfterFunc(m.cfg.StartupTimeout, tabCancel)
	err := chromedp.Run(tabCtx,
		network.Enable(),
		emulation.SetUserAgentOverride(m.cfg.UserAgent),
	)
	timer.Stop()
	stopForward()
	if err == nil {
		err = tabCtx.Err()
	}
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	m.logger.Debug("browser session started",
		zap.Bool("headless", !m.cfg.Headed),
		zap.Bool("single_process", !m.cfg.MultiProcess),
		zap.String("exec_path", m.cfg.ExecPath),
	)
	return &Session{
		cfg:         m.cfg,
		logger:      m.logger,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		tracker:     tracker,
	}, nil
}

// Session is one running browser with exactly one open tab. Page operations
// are not safe for concurrent use.
type Session struct {
	cfg         Config
	logger      *zap.Logger
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	tracker     *networkTracker
	releaseOnce sync.Once
}

var _ Page = (*Session)(nil)

// Release closes the tab and terminates the browser process. It is safe to
// call more than once and on a nil Session.
func (s *Session) Release() {
	if s == nil {
		return
	}
	s.releaseOnce.Do(func() {
		if err := chromedp.Cancel(s.tabCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("close browser tab", zap.Error(err))
		}
		s.tabCancel()
		s.allocCancel()
		s.logger.Debug("browser session released")
	})
}

// taskContext derives a bounded context from the tab that also ends when the
// caller's context does.
func (s *Session) taskContext(parent context.Context, timeout time.Duration) (context.Context, func()) {
	taskCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	stop := forwardCancel(parent, cancel)
	return taskCtx, func() {
		stop()
		cancel()
	}
}

// Navigate loads rawURL and waits until no more than the configured number of
// requests have been in flight for the quiet period.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	taskCtx, done := s.taskContext(ctx, s.cfg.NavigationTimeout)
	defer done()

	s.tracker.reset()
	if err := chromedp.Run(taskCtx, chromedp.Navigate(rawURL)); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	if err := s.tracker.waitIdle(taskCtx, s.cfg.IdleConnections, s.cfg.IdleQuiet); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	return nil
}

// WaitFor blocks until selector matches or the element timeout elapses, in
// which case the error wraps ErrNoElement.
func (s *Session) WaitFor(ctx context.Context, selector string) error {
	taskCtx, done := s.taskContext(ctx, s.cfg.ElementTimeout)
	defer done()

	err := chromedp.Run(taskCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("wait for %q: %w", selector, ErrNoElement)
	}
	return fmt.Errorf("wait for %q: %w", selector, err)
}

// ClickIfPresent clicks the first match of selector, if any.
func (s *Session) ClickIfPresent(ctx context.Context, selector string) (bool, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return false, fmt.Errorf("encode selector: %w", err)
	}
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) { return false; }
		el.click();
		return true;
	})()`, quoted)

	taskCtx, done := s.taskContext(ctx, s.cfg.ElementTimeout)
	defer done()

	var clicked bool
	if err := chromedp.Run(taskCtx, chromedp.Evaluate(expr, &clicked)); err != nil {
		return false, fmt.Errorf("click %q: %w", selector, err)
	}
	return clicked, nil
}

// ScrollToBottom scrolls the window to the end of the document.
func (s *Session) ScrollToBottom(ctx context.Context) error {
	taskCtx, done := s.taskContext(ctx, s.cfg.ElementTimeout)
	defer done()

	if err := chromedp.Run(taskCtx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil)); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// HTML returns the outer HTML of the document element.
func (s *Session) HTML(ctx context.Context) (string, error) {
	taskCtx, done := s.taskContext(ctx, s.cfg.ElementTimeout)
	defer done()

	var html string
	if err := chromedp.Run(taskCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
