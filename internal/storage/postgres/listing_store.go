// Package postgres persists crawl results in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/job-listing-crawler/internal/crawler"
	"github.com/JakeFAU/job-listing-crawler/internal/listing"
)

// DefaultTable is used when no table name is configured.
const DefaultTable = "job_listings"

// listingColumns is the number of bound parameters per inserted listing.
const listingColumns = 8

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for listing rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ListingStore writes listings and crawl summaries into Postgres. Listings
// live in Table; crawl summaries in Table_runs.
type ListingStore struct {
	pool  execCloser
	table string
}

// NewListingStore connects to Postgres using cfg.
func NewListingStore(ctx context.Context, cfg Config) (*ListingStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ListingStore{pool: pool, table: table}, nil
}

// NewListingStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewListingStoreWithPool(pool execCloser, table string) (*ListingStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ListingStore{pool: pool, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *ListingStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the listing and crawl tables when missing.
func (s *ListingStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	crawl_id    TEXT        NOT NULL,
	crawled_at  TIMESTAMPTZ NOT NULL,
	source      TEXT        NOT NULL,
	title       TEXT        NOT NULL,
	company     TEXT        NOT NULL,
	location    TEXT        NOT NULL DEFAULT '',
	link        TEXT        NOT NULL,
	description TEXT        NOT NULL,
	PRIMARY KEY (crawl_id, title, company)
);
CREATE TABLE IF NOT EXISTS %[1]s_runs (
	id            TEXT        PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL,
	keywords      TEXT[]      NOT NULL,
	raw_count     INTEGER     NOT NULL,
	listing_count INTEGER     NOT NULL,
	error         TEXT        NOT NULL DEFAULT ''
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveListings inserts the listings of one crawl in a single statement and
// returns how many rows were written. Rows already present for the same
// crawl, title and company are left untouched.
func (s *ListingStore) SaveListings(ctx context.Context, crawlID string, at time.Time, listings []listing.Listing) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, errors.New("listing store is not configured")
	}
	if crawlID == "" {
		return 0, errors.New("crawl id is required")
	}
	if len(listings) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (crawl_id, crawled_at, source, title, company, location, link, description) VALUES ", s.table)
	args := make([]any, 0, len(listings)*listingColumns)
	for i, l := range listings {
		if i > 0 {
			sb.WriteString(",")
		}
		base := i * listingColumns
		sb.WriteString("(")
		for c := 1; c <= listingColumns; c++ {
			if c > 1 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "$%d", base+c)
		}
		sb.WriteString(")")
		args = append(args, crawlID, at, string(l.Source), l.Title, l.Company, l.Location, l.Link, l.Description)
	}
	sb.WriteString(" ON CONFLICT DO NOTHING")

	tag, err := s.pool.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("insert listings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RecordCrawl upserts the summary row of a finished crawl.
func (s *ListingStore) RecordCrawl(ctx context.Context, report crawler.Report) error {
	if s == nil || s.pool == nil {
		return errors.New("listing store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s_runs (id, started_at, finished_at, keywords, raw_count, listing_count, error)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE
SET finished_at = EXCLUDED.finished_at,
	raw_count = EXCLUDED.raw_count,
	listing_count = EXCLUDED.listing_count,
	error = EXCLUDED.error`, s.table)

	keywords := report.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	if _, err := s.pool.Exec(ctx, query,
		report.ID,
		report.StartedAt,
		report.FinishedAt,
		keywords,
		report.Raw,
		len(report.Listings),
		report.Err,
	); err != nil {
		return fmt.Errorf("record crawl: %w", err)
	}
	return nil
}
