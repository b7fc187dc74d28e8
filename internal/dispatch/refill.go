package dispatch

import (
	"context"
	"time"

	"cfpbot/internal/dates"
	"cfpbot/internal/format"
	"cfpbot/internal/queue"
	"cfpbot/pkg/logx"
)

// refill fetches the upcoming-CFP snapshot and enqueues today's
// announcements. shiftDays moves the reference moment (1 = tomorrow's
// preview pass); the storage key is always the unshifted current day, so
// preview messages sit next to today's real ones, flagged.
//
// A fetch failure is logged and swallowed: the cycle simply produces no
// entries until the next day change.
func (d *Dispatcher) refill(ctx context.Context, shiftDays int, preview bool) {
	now := d.clock.Now()
	ref := now.AddDate(0, 0, shiftDays)
	if shiftDays != 0 {
		d.log.Info("refill using shifted reference", logx.Time("ref", ref))
	}

	snap, err := d.source.Fetch(ctx, ref)
	if err != nil {
		d.log.Warn("cfp fetch failed, skipping refill", logx.Err(err))
		return
	}

	weekly := snap.Weekday == time.Monday
	d.log.Debug("refill snapshot",
		logx.Int("today", len(snap.Today)),
		logx.Int("tomorrow", len(snap.Tomorrow)),
		logx.Int("this_week", len(snap.ThisWeek)),
		logx.Int("highlights", len(snap.Highlights)),
		logx.Bool("weekly", weekly),
	)

	if len(snap.Today) == 0 && len(snap.Tomorrow) == 0 {
		if !weekly || len(snap.ThisWeek) == 0 {
			d.log.Info("no upcoming cfps, nothing to enqueue")
			return
		}
	}
	if len(snap.Feed) == 0 {
		d.log.Info("empty feed, nothing to enqueue")
		return
	}

	if d.cfg.Slack != nil {
		var msgs []string
		if weekly {
			msgs = append(msgs, format.WeeklyDigest(snap.Feed))
		}
		msgs = append(msgs, format.DailyMessages(snap)...)
		d.enqueueList(ctx, queue.ChannelSlack, msgs, d.cfg.Slack.Hour, d.cfg.Slack.Minute, d.cfg.Slack.Step, preview)
	}

	if d.cfg.Telegram != nil {
		d.enqueueOne(ctx, queue.ChannelTelegram, format.Digest(snap), d.cfg.Telegram.Hour, d.cfg.Telegram.Minute, preview)
	}
}

// enqueueList appends an ordered message list with stepped send times.
func (d *Dispatcher) enqueueList(ctx context.Context, ch queue.Channel, bodies []string, hour, minute int, step time.Duration, preview bool) {
	now := d.clock.Now()
	day := dates.Day(now, 0)
	ts := dates.At(now, hour, minute)

	for _, body := range bodies {
		m := queue.Message{Channel: ch, Body: body, SendAt: ts}
		if preview {
			m.SendAt = now.UnixMilli()
			m.Body = previewMark + body
			m.Preview = true
		}
		if err := d.store.Append(ctx, day, m); err != nil {
			d.log.Error("enqueue persist failed", logx.String("channel", string(ch)), logx.Err(err))
		} else {
			d.log.Info("enqueued", logx.String("channel", string(ch)), logx.Int64("send_at", m.SendAt), logx.Bool("preview", m.Preview))
		}
		ts += step.Milliseconds()
	}
}

func (d *Dispatcher) enqueueOne(ctx context.Context, ch queue.Channel, body string, hour, minute int, preview bool) {
	now := d.clock.Now()
	day := dates.Day(now, 0)

	m := queue.Message{Channel: ch, Body: body, SendAt: dates.At(now, hour, minute)}
	if preview {
		m.SendAt = now.UnixMilli()
		m.Body = previewMark + body
		m.Preview = true
	}
	if err := d.store.Append(ctx, day, m); err != nil {
		d.log.Error("enqueue persist failed", logx.String("channel", string(ch)), logx.Err(err))
	} else {
		d.log.Info("enqueued", logx.String("channel", string(ch)), logx.Int64("send_at", m.SendAt), logx.Bool("preview", m.Preview))
	}
}
