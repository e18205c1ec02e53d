package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-crawler/internal/crawler"
	"github.com/JakeFAU/job-listing-crawler/internal/guard"
	"github.com/JakeFAU/job-listing-crawler/internal/listing"
	"github.com/JakeFAU/job-listing-crawler/internal/storage"
)

// Crawler runs one crawl over a set of keywords.
type Crawler interface {
	Crawl(ctx context.Context, keywords []string) crawler.Report
}

// ListingStore persists deduplicated listings and crawl summaries.
type ListingStore interface {
	SaveListings(ctx context.Context, crawlID string, at time.Time, listings []listing.Listing) (int64, error)
	RecordCrawl(ctx context.Context, report crawler.Report) error
}

// Publisher hands crawl results to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Sinks are the optional destinations of a crawl. Nil members are skipped.
type Sinks struct {
	Blobs     storage.BlobStore
	Listings  ListingStore
	Publisher Publisher
	Topic     string
}

// Notification is the message published after a crawl with results.
type Notification struct {
	CrawlID  string            `json:"crawl_id"`
	Keywords []string          `json:"keywords"`
	Listings []listing.Listing `json:"listings"`
}

// Pipeline runs crawls one at a time and delivers their results to the sinks.
type Pipeline struct {
	guard   *guard.Guard
	crawler Crawler
	sinks   Sinks
	logger  *zap.Logger

	wg     sync.WaitGroup
	mu     sync.RWMutex
	latest *crawler.Report
}

// NewPipeline wires a Pipeline. A nil guard admits one run per Pipeline.
func NewPipeline(g *guard.Guard, c Crawler, sinks Sinks, logger *zap.Logger) *Pipeline {
	if g == nil {
		g = guard.New("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{guard: g, crawler: c, sinks: sinks, logger: logger}
}

// Run crawls keywords and delivers the result. It returns guard.ErrBusy
// without crawling when another run is in progress. Sink failures are joined
// into the returned error; the report is returned regardless.
func (p *Pipeline) Run(ctx context.Context, keywords []string) (crawler.Report, error) {
	var report crawler.Report
	err := p.guard.Run(ctx, func(ctx context.Context) error {
		var runErr error
		report, runErr = p.run(ctx, keywords)
		return runErr
	})
	return report, err
}

// Start acquires the guard and runs the crawl in the background. It returns
// guard.ErrBusy immediately when a run is already in progress.
func (p *Pipeline) Start(ctx context.Context, keywords []string) error {
	release, err := p.guard.Acquire()
	if err != nil {
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_, err := p.run(ctx, keywords)
		if releaseErr := release(); releaseErr != nil {
			err = errors.Join(err, releaseErr)
		}
		if err != nil {
			p.logger.Error("background crawl finished with errors", zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until every run started with Start has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Busy reports whether a run is in progress in this process.
func (p *Pipeline) Busy() bool {
	return p.guard.Running()
}

// Latest returns the report of the most recent completed crawl.
func (p *Pipeline) Latest() (crawler.Report, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return crawler.Report{}, false
	}
	return *p.latest, true
}

func (p *Pipeline) run(ctx context.Context, keywords []string) (crawler.Report, error) {
	report := p.crawler.Crawl(ctx, keywords)
	p.mu.Lock()
	p.latest = &report
	p.mu.Unlock()

	logger := p.logger.With(zap.String("crawl_id", report.ID))
	if len(report.Listings) == 0 {
		logger.Info("crawl produced no listings, skipping delivery",
			zap.Int("outcomes", len(report.Outcomes)),
			zap.String("error", report.Err),
		)
		return report, nil
	}
	return report, p.deliver(ctx, report, logger)
}

func (p *Pipeline) deliver(ctx context.Context, report crawler.Report, logger *zap.Logger) error {
	var errs []error

	if p.sinks.Blobs != nil {
		if err := p.archive(ctx, report, logger); err != nil {
			logger.Error("archive report failed", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if p.sinks.Listings != nil {
		n, err := p.sinks.Listings.SaveListings(ctx, report.ID, report.FinishedAt, report.Listings)
		if err != nil {
			logger.Error("store listings failed", zap.Error(err))
			errs = append(errs, err)
		} else {
			logger.Info("listings stored", zap.Int64("inserted", n))
		}
		if err := p.sinks.Listings.RecordCrawl(ctx, report); err != nil {
			logger.Error("record crawl failed", zap.Error(err))
			errs = append(errs, err)
		}
	}

	if p.sinks.Publisher != nil && p.sinks.Topic != "" {
		msg := Notification{CrawlID: report.ID, Keywords: report.Keywords, Listings: report.Listings}
		id, err := p.sinks.Publisher.Publish(ctx, p.sinks.Topic, msg)
		if err != nil {
			err = fmt.Errorf("publish listings: %w", err)
			logger.Error("publish failed", zap.Error(err))
			errs = append(errs, err)
		} else {
			logger.Info("listings published", zap.String("message_id", id), zap.String("topic", p.sinks.Topic))
		}
	}

	return errors.Join(errs...)
}

func (p *Pipeline) archive(ctx context.Context, report crawler.Report, logger *zap.Logger) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	uri, err := p.sinks.Blobs.PutObject(ctx, storage.ReportPath(report.ID, report.StartedAt), storage.ReportContentType, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("archive report: %w", err)
	}
	logger.Info("report archived", zap.String("uri", uri))
	return nil
}
