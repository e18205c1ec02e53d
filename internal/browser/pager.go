package browser

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pager defaults.
const (
	DefaultPagerAttempts = 10
	DefaultPagerDelay    = 2 * time.Second
)

// Pager repeatedly scrolls a page to the bottom so lazily loaded results get
// appended to the document.
type Pager struct {
	maxAttempts int
	delay       time.Duration
	logger      *zap.Logger
}

// NewPager builds a Pager. A non-positive maxAttempts selects the default and
// a negative delay is treated as zero.
func NewPager(maxAttempts int, delay time.Duration, logger *zap.Logger) *Pager {
	if maxAttempts <= 0 {
		maxAttempts = DefaultPagerAttempts
	}
	if delay < 0 {
		delay = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pager{maxAttempts: maxAttempts, delay: delay, logger: logger}
}

// Paginate scrolls up to the configured number of times, waiting after each
// scroll. It never fails: a scroll error or a cancelled context stops paging
// early. The number of completed scrolls is returned.
func (p *Pager) Paginate(ctx context.Context, s Scroller) int {
	done := 0
	for done < p.maxAttempts {
		if ctx.Err() != nil {
			return done
		}
		if err := s.ScrollToBottom(ctx); err != nil {
			p.logger.Warn("scroll failed, keeping loaded results",
				zap.Int("attempt", done+1),
				zap.Error(err),
			)
			return done
		}
		done++
		if !sleep(ctx, p.delay) {
			return done
		}
	}
	return done
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
