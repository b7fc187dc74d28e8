// Package feed models the upcoming-CFP snapshot the refill cycle consumes.
package feed

import (
	"context"
	"time"
)

// Event is one call-for-papers deadline.
type Event struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Due       string `json:"due"` // UTC calendar date, "2006-01-02"
	Highlight bool   `json:"highlight,omitempty"`
}

// Snapshot is the bucketed view of upcoming deadlines relative to a
// reference moment. All buckets preserve the source order (due date, then
// input order).
type Snapshot struct {
	Today      []Event
	Tomorrow   []Event
	ThisWeek   []Event
	Highlights []Event

	// Feed is the flattened list of events worth announcing: everything
	// due within the announce window plus highlighted events.
	Feed []Event

	// Weekday of the reference moment (UTC).
	Weekday time.Weekday
}

// Source produces a snapshot for a reference moment.
// Implementations may hit the network; errors mean "no content this cycle".
type Source interface {
	Fetch(ctx context.Context, ref time.Time) (*Snapshot, error)
}
