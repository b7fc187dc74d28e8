package queue

import (
	"context"
	"time"

	"cfpbot/internal/dates"
)

// Channel names an outbound delivery mechanism.
type Channel string

const (
	ChannelSlack    Channel = "slack"
	ChannelTelegram Channel = "telegram"
)

// Message is one scheduled announcement.
//
// SendAt is the earliest unix-milli moment delivery may occur. Sent flips
// to true exactly once, synchronously with persistence, when the dispatch
// cycle hands the message to its channel. Preview marks messages produced
// by the next-day preview pass; those are filed under today with SendAt set
// to the enqueue moment and routed to the preview destination.
type Message struct {
	Channel Channel `json:"channel"`
	Body    string  `json:"body"`
	SendAt  int64   `json:"send_at"`
	Sent    bool    `json:"sent"`
	Preview bool    `json:"preview,omitempty"`
}

// Config configures the queue store.
//
// Driver values:
//   - "file" (default): JSON files, fully rewritten on every mutation
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the dispatch cycles.
//
// Implementations persist synchronously: when a mutating call returns, the
// change is on disk. Messages within a day keep insertion order; a day's
// sequence is created lazily on first Append and never pruned here.
type Store interface {
	// Day returns a snapshot copy of the day's messages in insertion order.
	Day(ctx context.Context, day dates.DayKey) ([]Message, error)
	Append(ctx context.Context, day dates.DayKey, msg Message) error
	// MarkSent sets sent=true on the idx-th message of the day.
	MarkSent(ctx context.Context, day dates.DayKey, idx int) error

	// LastRun is the last day key the refill cycle completed for.
	// ok=false means no value has been persisted yet.
	LastRun(ctx context.Context) (day dates.DayKey, ok bool, err error)
	SetLastRun(ctx context.Context, day dates.DayKey) error

	Close() error
}
