// Package format renders announcement text from a feed snapshot.
// Everything here is pure; no I/O, no failure modes.
package format

import (
	"fmt"
	"strings"

	"cfpbot/internal/feed"
)

// WeeklyDigest renders the Monday morning Slack digest over the whole feed.
func WeeklyDigest(events []feed.Event) string {
	var b strings.Builder
	b.WriteString("📅 CFP deadlines this week:\n")
	for _, e := range events {
		fmt.Fprintf(&b, "• %s — closes %s\n", e.Name, e.Due)
	}
	b.WriteString("Submit your talks!")
	return b.String()
}

// DailyMessages renders one Slack message per CFP closing today.
func DailyMessages(s *feed.Snapshot) []string {
	msgs := make([]string, 0, len(s.Today))
	for _, e := range s.Today {
		var b strings.Builder
		fmt.Fprintf(&b, "⏰ Last day to submit to %s!", e.Name)
		if e.Highlight {
			b.WriteString(" ⭐")
		}
		if e.URL != "" {
			b.WriteString("\n")
			b.WriteString(e.URL)
		}
		msgs = append(msgs, b.String())
	}
	return msgs
}
