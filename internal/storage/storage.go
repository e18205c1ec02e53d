// Package storage defines where crawl reports are archived and provides a
// fan-out over several blob stores.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ReportContentType is the content type of archived crawl reports.
const ReportContentType = "application/json"

// BlobStore writes one object and returns a URI for it.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// ReportPath returns the object path for a crawl report, partitioned by the
// UTC day the crawl started.
func ReportPath(crawlID string, startedAt time.Time) string {
	return fmt.Sprintf("reports/%s/%s.json", startedAt.UTC().Format("2006/01/02"), crawlID)
}

// Multi writes every object to all of its stores.
type Multi []BlobStore

// PutObject buffers data once and writes it to every store. It returns the
// URI from the first store that succeeded and the joined errors of the rest.
func (m Multi) PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error) {
	if len(m) == 0 {
		return "", errors.New("no blob stores configured")
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read object: %w", err)
	}
	var (
		uri  string
		errs []error
	)
	for _, s := range m {
		got, err := s.PutObject(ctx, path, contentType, bytes.NewReader(body))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if uri == "" {
			uri = got
		}
	}
	return uri, errors.Join(errs...)
}
