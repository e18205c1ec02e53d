package guard

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	g := New("")
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- g.Run(context.Background(), func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	require.True(t, g.Running())
	err := g.Run(context.Background(), func(context.Context) error {
		t.Fatal("second run must not execute")
		return nil
	})
	require.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	require.False(t, g.Running())
}

func TestRunClearsFlagOnErrorAndPanic(t *testing.T) {
	t.Parallel()

	g := New("")
	boom := errors.New("boom")
	require.ErrorIs(t, g.Run(context.Background(), func(context.Context) error { return boom }), boom)
	require.False(t, g.Running())

	require.Panics(t, func() {
		_ = g.Run(context.Background(), func(context.Context) error { panic("adapter") })
	})
	require.False(t, g.Running())
	require.NoError(t, g.Run(context.Background(), func(context.Context) error { return nil }))
}

func TestRunFileLockAcrossGuards(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "crawl.lock")
	first := New(path)
	second := New(path)

	err := first.Run(context.Background(), func(context.Context) error {
		return second.Run(context.Background(), func(context.Context) error {
			t.Fatal("second guard must not run while the file is locked")
			return nil
		})
	})
	require.ErrorIs(t, err, ErrBusy)

	require.NoError(t, second.Run(context.Background(), func(context.Context) error { return nil }))
}

func TestAcquireHoldsUntilRelease(t *testing.T) {
	t.Parallel()

	g := New(filepath.Join(t.TempDir(), "crawl.lock"))
	release, err := g.Acquire()
	require.NoError(t, err)
	require.True(t, g.Running())

	_, err = g.Acquire()
	require.ErrorIs(t, err, ErrBusy)

	require.NoError(t, release())
	require.False(t, g.Running())

	release, err = g.Acquire()
	require.NoError(t, err)
	require.NoError(t, release())
}
