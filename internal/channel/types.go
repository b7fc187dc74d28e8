// Package channel implements the outbound delivery channels.
//
// Senders are fire-and-forget from the dispatcher's point of view: errors
// are returned for logging only and never gate queue state.
package channel

import "context"

// Sender delivers one announcement. preview routes the message to the
// channel's preview destination instead of the public one.
type Sender interface {
	Name() string
	Send(ctx context.Context, text string, preview bool) error
}
