// Package scheduler triggers recurring crawls at a fixed wall-clock time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-crawler/internal/guard"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// ErrInvalidClock is returned for a time of day not in HH:MM form.
var ErrInvalidClock = errors.New("time of day must be HH:MM")

// ParseClock parses a 24h "HH:MM" time of day.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	hour, errH := strconv.Atoi(parts[0])
	minute, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return hour, minute, nil
}

// NextRun returns the first instant strictly after now that falls on at, in
// now's location.
func NextRun(now time.Time, at string) (time.Time, error) {
	hour, minute, err := ParseClock(at)
	if err != nil {
		return time.Time{}, err
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}

// Daily runs task once a day at the given time until ctx is done. Task
// errors are logged and never stop the loop; a run skipped because another
// crawl is in progress is logged as such.
func Daily(ctx context.Context, at string, clock Clock, task Task, logger *zap.Logger) error {
	if _, _, err := ParseClock(at); err != nil {
		return err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("daily_at", at))

	for {
		now := clock.Now()
		next, err := NextRun(now, at)
		if err != nil {
			return err
		}
		logger.Info("next scheduled crawl", zap.Time("at", next))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		switch err := task(ctx); {
		case errors.Is(err, guard.ErrBusy):
			logger.Warn("scheduled crawl skipped, previous run still in progress")
		case err != nil:
			logger.Error("scheduled crawl failed", zap.Error(err))
		default:
			logger.Info("scheduled crawl completed")
		}
	}
}
