package crawler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-crawler/internal/browser"
	"github.com/JakeFAU/job-listing-crawler/internal/listing"
)

// ErrNoSession marks a crawl that could not start a browser.
var ErrNoSession = errors.New("browser session unavailable")

// Config tunes the engine.
type Config struct {
	// FetchTimeout bounds a single (keyword, source) fetch. Zero leaves it
	// to the page operation timeouts.
	FetchTimeout time.Duration
}

// Engine runs crawls. Each crawl uses its own session and visits every
// (keyword, source) pair sequentially.
type Engine struct {
	cfg      Config
	sessions SessionSource
	adapters []Adapter
	observer Observer
	clock    Clock
	ids      IDGenerator
	logger   *zap.Logger
}

// NewEngine wires an Engine. Adapters are visited in the given order for every
// keyword. Nil observer, clock and logger are replaced with no-op or real
// implementations.
func NewEngine(
	cfg Config,
	sessions SessionSource,
	adapters []Adapter,
	observer Observer,
	clock Clock,
	ids IDGenerator,
	logger *zap.Logger,
) *Engine {
	if observer == nil {
		observer = nopObserver{}
	}
	if clock == nil {
		clock = utcClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		sessions: sessions,
		adapters: append([]Adapter(nil), adapters...),
		observer: observer,
		clock:    clock,
		ids:      ids,
		logger:   logger,
	}
}

// Listings runs a crawl and returns only the deduplicated listings.
func (e *Engine) Listings(ctx context.Context, keywords []string) []listing.Listing {
	return e.Crawl(ctx, keywords).Listings
}

// Crawl searches every source for every keyword and returns the combined,
// deduplicated result. It never fails: a session that cannot be started
// yields an empty report with Err set, and a failing source contributes no
// listings while the others still run.
func (e *Engine) Crawl(ctx context.Context, keywords []string) Report {
	started := e.clock.Now()
	report := Report{
		ID:        e.newID(started),
		StartedAt: started,
		Keywords:  NormalizeKeywords(keywords),
		Listings:  []listing.Listing{},
		Outcomes:  []Outcome{},
	}
	logger := e.logger.With(zap.String("crawl_id", report.ID))
	e.observer.CrawlStarted(report.ID)

	if len(report.Keywords) == 0 || len(e.adapters) == 0 {
		logger.Info("nothing to crawl",
			zap.Int("keywords", len(report.Keywords)),
			zap.Int("sources", len(e.adapters)),
		)
		return e.finish(report)
	}

	logger.Info("crawl started", zap.Strings("keywords", report.Keywords))
	session, err := e.sessions.Acquire(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrNoSession, err)
		logger.Error("crawl aborted", zap.Error(err))
		report.Err = err.Error()
		return e.finish(report)
	}

	collected := e.collect(ctx, session, &report, logger)
	report.Raw = len(collected)
	report.Listings = listing.Dedupe(collected)

	report = e.finish(report)
	logger.Info("crawl finished",
		zap.Int("raw", report.Raw),
		zap.Int("count", len(report.Listings)),
		zap.Duration("duration", report.Duration()),
	)
	return report
}

// collect visits every pair over session and releases it before returning.
func (e *Engine) collect(ctx context.Context, session Session, report *Report, logger *zap.Logger) []listing.Listing {
	defer session.Release()

	var out []listing.Listing
	for _, kw := range report.Keywords {
		for _, a := range e.adapters {
			outcome := Outcome{Keyword: kw, Source: a.Source()}
			start := e.clock.Now()

			var got []listing.Listing
			var err error
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			} else {
				got, err = e.safeFetch(ctx, a, session, kw)
			}
			outcome.Duration = e.clock.Now().Sub(start)

			fields := []zap.Field{zap.String("keyword", kw), zap.String("source", string(outcome.Source))}
			switch {
			case err != nil:
				outcome.Status = StatusError
				outcome.Error = err.Error()
				logger.Warn("fetch failed", append(fields, zap.Error(err))...)
			case len(got) == 0:
				outcome.Status = StatusEmpty
				logger.Info("no listings found", fields...)
			default:
				outcome.Status = StatusSuccess
				outcome.Count = len(got)
				out = append(out, got...)
				logger.Info("listings fetched", append(fields, zap.Int("count", len(got)))...)
			}
			report.Outcomes = append(report.Outcomes, outcome)
			e.observer.FetchFinished(report.ID, outcome)
		}
	}
	return out
}

// safeFetch runs one adapter and turns a panic into an error.
func (e *Engine) safeFetch(ctx context.Context, a Adapter, page browser.Page, keyword string) (out []listing.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("%s adapter panicked: %v", a.Source(), r)
		}
	}()
	if e.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.FetchTimeout)
		defer cancel()
	}
	out, err = a.Fetch(ctx, page, keyword)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) finish(report Report) Report {
	report.FinishedAt = e.clock.Now()
	e.observer.CrawlFinished(report)
	return report
}

func (e *Engine) newID(now time.Time) string {
	if e.ids != nil {
		id, err := e.ids.NewID()
		if err == nil {
			return id
		}
		e.logger.Warn("crawl id generation failed", zap.Error(err))
	}
	return "crawl-" + strconv.FormatInt(now.UnixNano(), 10)
}
