package format

import (
	"fmt"
	"strings"

	"cfpbot/internal/feed"
)

// Digest renders the single composite Telegram message for a snapshot.
func Digest(s *feed.Snapshot) string {
	var b strings.Builder
	b.WriteString("📣 Upcoming CFP deadlines\n")

	writeSection(&b, "Closing today", s.Today)
	writeSection(&b, "Closing tomorrow", s.Tomorrow)
	writeSection(&b, "This week", s.ThisWeek)

	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, title string, events []feed.Event) {
	if len(events) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, e := range events {
		b.WriteString("• ")
		b.WriteString(e.Name)
		if e.URL != "" {
			b.WriteString(" — ")
			b.WriteString(e.URL)
		}
		b.WriteString("\n")
	}
}
