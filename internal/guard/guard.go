// Package guard keeps crawls single-flight within a process and, optionally,
// across processes sharing a lock file.
package guard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gofrs/flock"
)

// ErrBusy is returned when a crawl is already in progress.
var ErrBusy = errors.New("crawl already running")

// Guard admits one run at a time.
type Guard struct {
	running atomic.Bool
	lock    *flock.Flock
}

// New returns a Guard. A non-empty lockPath also takes an exclusive file lock
// for the duration of each run.
func New(lockPath string) *Guard {
	g := &Guard{}
	if lockPath != "" {
		g.lock = flock.New(lockPath)
	}
	return g
}

// Running reports whether a run is in progress in this process.
func (g *Guard) Running() bool {
	return g.running.Load()
}

// Acquire takes the guard without blocking. The returned release func must
// be called exactly once when the run ends. ErrBusy is returned when another
// run holds the guard.
func (g *Guard) Acquire() (release func() error, err error) {
	if !g.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	if g.lock == nil {
		return func() error {
			g.running.Store(false)
			return nil
		}, nil
	}

	locked, err := g.lock.TryLock()
	if err != nil {
		g.running.Store(false)
		return nil, fmt.Errorf("acquire crawl lock: %w", err)
	}
	if !locked {
		g.running.Store(false)
		return nil, ErrBusy
	}
	return func() error {
		defer g.running.Store(false)
		if err := g.lock.Unlock(); err != nil {
			return fmt.Errorf("release crawl lock: %w", err)
		}
		return nil
	}, nil
}

// Run executes fn unless another run holds the guard, in which case it
// returns ErrBusy without calling fn. The guard is released when fn returns
// or panics.
func (g *Guard) Run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	release, err := g.Acquire()
	if err != nil {
		return err
	}
	defer func() {
		if releaseErr := release(); releaseErr != nil && err == nil {
			err = releaseErr
		}
	}()
	return fn(ctx)
}
