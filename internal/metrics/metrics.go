// Package metrics exposes Prometheus collectors for the job crawler.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JakeFAU/job-listing-crawler/internal/crawler"
	"github.com/JakeFAU/job-listing-crawler/internal/listing"
)

// Crawl result label values.
const (
	ResultOK        = "ok"
	ResultPartial   = "partial"
	ResultEmpty     = "empty"
	ResultNoSession = "no_session"
)

var (
	crawlsTotal                *prometheus.CounterVec
	fetchOutcomesTotal         *prometheus.CounterVec
	listingsTotal              *prometheus.CounterVec
	crawlDurationSeconds       prometheus.Histogram
	crawlRunning               prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_crawls_total",
				Help: "Total number of crawls, labeled by result.",
			},
			[]string{"result"},
		)

		fetchOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_fetch_outcomes_total",
				Help: "Per keyword and source fetch outcomes, labeled by source and status.",
			},
			[]string{"source", "status"},
		)

		listingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobcrawler_listings_total",
				Help: "Deduplicated listings produced, labeled by source.",
			},
			[]string{"source"},
		)

		crawlDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobcrawler_crawl_duration_seconds",
				Help:    "Histogram of crawl wall time.",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
			},
		)

		crawlRunning = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobcrawler_crawl_running",
				Help: "1 while a crawl is in progress.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ResultOf maps a finished crawl to its result label.
func ResultOf(r crawler.Report) string {
	switch {
	case r.Err != "":
		return ResultNoSession
	case r.Failed():
		return ResultPartial
	case len(r.Listings) == 0:
		return ResultEmpty
	default:
		return ResultOK
	}
}

// Observer records crawl lifecycle events. It satisfies crawler.Observer.
type Observer struct{}

var _ crawler.Observer = Observer{}

// NewObserver initializes the collectors and returns an Observer.
func NewObserver() Observer {
	Init()
	return Observer{}
}

// CrawlStarted marks a crawl as running.
func (Observer) CrawlStarted(string) {
	crawlRunning.Set(1)
}

// FetchFinished counts one fetch outcome.
func (Observer) FetchFinished(_ string, o crawler.Outcome) {
	fetchOutcomesTotal.WithLabelValues(string(o.Source), string(o.Status)).Inc()
}

// CrawlFinished records the crawl result, duration and listing counts.
func (Observer) CrawlFinished(r crawler.Report) {
	crawlRunning.Set(0)
	crawlsTotal.WithLabelValues(ResultOf(r)).Inc()
	crawlDurationSeconds.Observe(r.Duration().Seconds())
	for src, n := range listing.CountBySource(r.Listings) {
		listingsTotal.WithLabelValues(string(src)).Add(float64(n))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
