package dispatch

import (
	"context"
	"sync"
	"time"

	"cfpbot/internal/channel"
	"cfpbot/internal/dates"
	"cfpbot/internal/feed"
	"cfpbot/internal/queue"
	"cfpbot/pkg/logx"
)

// previewMark prefixes the body of next-day preview messages.
const previewMark = "🔜"

// SlackPlan schedules the list-type Slack channel: messages start at
// Hour:Minute UTC and advance by Step each.
type SlackPlan struct {
	Hour   int
	Minute int
	Step   time.Duration
}

// TelegramPlan schedules the single composite Telegram message.
type TelegramPlan struct {
	Hour   int
	Minute int
}

// Config controls the cycles. A nil channel plan disables that channel.
type Config struct {
	// Debug turns non-preview sends into log-only test sends.
	Debug bool
	// Previews enables the next-day preview pass on day change.
	Previews bool
	// Interval between driver ticks.
	Interval time.Duration

	Slack    *SlackPlan
	Telegram *TelegramPlan
}

// Dispatcher owns the queue store and last-run marker for the process
// lifetime. All cycle state lives here; Tick serializes on mu so at most
// one mutation sequence is ever in flight against the store.
type Dispatcher struct {
	cfg     Config
	store   queue.Store
	source  feed.Source
	senders map[queue.Channel]channel.Sender
	clock   dates.Clock
	log     logx.Logger

	mu sync.Mutex
}

func New(cfg Config, store queue.Store, source feed.Source, senders map[queue.Channel]channel.Sender, clock dates.Clock, log logx.Logger) *Dispatcher {
	if clock == nil {
		clock = dates.SystemClock{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if senders == nil {
		senders = map[queue.Channel]channel.Sender{}
	}
	return &Dispatcher{
		cfg:     cfg,
		store:   store,
		source:  source,
		senders: senders,
		clock:   clock,
		log:     log,
	}
}

// Tick runs one dispatch cycle: day-change detection (with refill), then
// delivery of today's due, unsent messages in insertion order.
func (d *Dispatcher) Tick(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	today := dates.Day(now, 0)

	last, ok, err := d.store.LastRun(ctx)
	if err != nil {
		d.log.Error("last-run marker read failed", logx.Err(err))
	}
	if !ok {
		// First run ever: pretend yesterday was processed so today refills.
		last = dates.Day(now, -1)
	}

	if today.After(last) {
		if d.cfg.Previews {
			// Best-effort look at tomorrow's content on the preview destinations.
			d.refill(ctx, 1, true)
		}
		d.refill(ctx, 0, false)

		if err := d.store.SetLastRun(ctx, today); err != nil {
			d.log.Error("last-run marker write failed", logx.Err(err))
		} else {
			d.log.Info("last-run marker advanced", logx.String("day", today.String()))
		}
	}

	d.dispatchDue(ctx, now, today)
}

// dispatchDue sends every unsent message under today whose send time has
// passed. The sent flag flips synchronously with persistence regardless of
// delivery outcome; a failed delivery is never retried (deliberate policy,
// see the channel package).
func (d *Dispatcher) dispatchDue(ctx context.Context, now time.Time, today dates.DayKey) {
	msgs, err := d.store.Day(ctx, today)
	if err != nil {
		d.log.Error("queue read failed", logx.String("day", today.String()), logx.Err(err))
		return
	}

	nowMS := now.UnixMilli()
	for i, m := range msgs {
		if m.Sent || m.SendAt >= nowMS {
			continue
		}

		d.send(ctx, m)

		if err := d.store.MarkSent(ctx, today, i); err != nil {
			d.log.Error("mark-sent persist failed", logx.String("day", today.String()), logx.Int("idx", i), logx.Err(err))
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, m queue.Message) {
	sender, ok := d.senders[m.Channel]
	if !ok {
		d.log.Warn("no sender for channel", logx.String("channel", string(m.Channel)))
		return
	}

	// Preview routing takes priority over the global debug flag.
	switch {
	case m.Preview:
		if err := sender.Send(ctx, m.Body, true); err != nil {
			d.log.Warn("preview send failed", logx.String("channel", sender.Name()), logx.Err(err))
		} else {
			d.log.Info("preview sent", logx.String("channel", sender.Name()))
		}
	case d.cfg.Debug:
		d.log.Info("test send (debug)", logx.String("channel", sender.Name()), logx.String("body", m.Body))
	default:
		if err := sender.Send(ctx, m.Body, false); err != nil {
			d.log.Warn("send failed", logx.String("channel", sender.Name()), logx.Err(err))
		} else {
			d.log.Info("sent", logx.String("channel", sender.Name()))
		}
	}
}
