package feed

import (
	"sort"
	"time"

	"cfpbot/internal/dates"
)

// announceWindowDays bounds how far ahead an event may be and still appear
// in the flattened feed.
const announceWindowDays = 7

// BuildSnapshot buckets raw events relative to ref (UTC calendar days).
// Events with unparseable or past due dates are dropped.
func BuildSnapshot(events []Event, ref time.Time) *Snapshot {
	today := dates.Day(ref, 0)
	tomorrow := dates.Day(ref, 1)
	weekEnd := dates.Day(ref, announceWindowDays)

	upcoming := make([]Event, 0, len(events))
	for _, e := range events {
		due := dates.DayKey(e.Due)
		if due.Time().IsZero() {
			continue
		}
		if today.After(due) {
			continue
		}
		upcoming = append(upcoming, e)
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].Due < upcoming[j].Due
	})

	s := &Snapshot{Weekday: ref.UTC().Weekday()}
	for _, e := range upcoming {
		due := dates.DayKey(e.Due)
		switch due {
		case today:
			s.Today = append(s.Today, e)
		case tomorrow:
			s.Tomorrow = append(s.Tomorrow, e)
		}
		if !due.After(weekEnd) {
			s.ThisWeek = append(s.ThisWeek, e)
		}
		if e.Highlight {
			s.Highlights = append(s.Highlights, e)
		}
		if !due.After(weekEnd) || e.Highlight {
			s.Feed = append(s.Feed, e)
		}
	}
	return s
}
