// Package browser owns the headless Chrome process used by a crawl: session
// acquisition and release, page operations, and scroll-driven lazy loading.
package browser

import (
	"context"
	"errors"
	"time"
)

// DefaultUserAgent is the identifying string sent with every request of a session.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Default timings applied when the corresponding Config field is zero.
const (
	DefaultStartupTimeout    = 30 * time.Second
	DefaultNavigationTimeout = 60 * time.Second
	DefaultElementTimeout    = 10 * time.Second
	DefaultIdleConnections   = 2
	DefaultIdleQuiet         = 500 * time.Millisecond
)

// ErrNoElement is returned when an expected element never appears.
var ErrNoElement = errors.New("element not found")

// Page is the set of operations source adapters perform against the single
// tab of a session. Every call blocks until it completes or its own timeout
// elapses.
type Page interface {
	// Navigate loads rawURL and waits for the network to settle.
	Navigate(ctx context.Context, rawURL string) error
	// WaitFor blocks until selector matches an element in the document.
	WaitFor(ctx context.Context, selector string) error
	// ClickIfPresent clicks the first element matching selector, reporting
	// whether one existed.
	ClickIfPresent(ctx context.Context, selector string) (bool, error)
	Scroller
	// HTML returns the serialized document.
	HTML(ctx context.Context) (string, error)
}

// Scroller triggers scroll-based lazy loading.
type Scroller interface {
	ScrollToBottom(ctx context.Context) error
}

// Config controls how the browser process is launched and how long page
// operations may block. The zero value launches headless, without the
// sandbox and in single-process mode; the Headed, Sandbox and MultiProcess
// switches opt out of each.
type Config struct {
	UserAgent         string
	ExecPath          string
	Headed            bool
	Sandbox           bool
	MultiProcess      bool
	StartupTimeout    time.Duration
	NavigationTimeout time.Duration
	ElementTimeout    time.Duration
	IdleConnections   int
	IdleQuiet         time.Duration
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = DefaultNavigationTimeout
	}
	if c.ElementTimeout <= 0 {
		c.ElementTimeout = DefaultElementTimeout
	}
	if c.IdleConnections <= 0 {
		c.IdleConnections = DefaultIdleConnections
	}
	if c.IdleQuiet <= 0 {
		c.IdleQuiet = DefaultIdleQuiet
	}
	return c
}
