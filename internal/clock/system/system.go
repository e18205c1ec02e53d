// Package system provides the wall clock.
package system

import "time"

// Resolution is the precision of returned timestamps. It matches Postgres
// timestamptz so a stored crawl time compares equal to the in-memory report.
const Resolution = time.Microsecond

// Clock is the wall clock used by the crawl engine and the daily scheduler.
type Clock struct {
	loc *time.Location
}

// New creates a Clock that reports UTC.
func New() *Clock {
	return &Clock{loc: time.UTC}
}

// NewIn creates a Clock that reports times in loc. A nil loc means UTC.
func NewIn(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time in the clock's location truncated to
// Resolution, without a monotonic reading.
func (c *Clock) Now() time.Time {
	loc := c.loc
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().In(loc).Truncate(Resolution)
}
