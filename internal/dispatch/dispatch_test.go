package dispatch

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cfpbot/internal/channel"
	"cfpbot/internal/dates"
	"cfpbot/internal/feed"
	"cfpbot/internal/queue"
	"cfpbot/pkg/logx"
)

// Monday and Wednesday anchors for weekday-sensitive cases.
var (
	monday    = time.Date(2025, 7, 7, 0, 10, 0, 0, time.UTC)
	wednesday = time.Date(2025, 7, 9, 0, 10, 0, 0, time.UTC)
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeSource struct {
	mu     sync.Mutex
	events []feed.Event
	err    error
	refs   []time.Time
}

func (s *fakeSource) Fetch(_ context.Context, ref time.Time) (*feed.Snapshot, error) {
	s.mu.Lock()
	s.refs = append(s.refs, ref)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return feed.BuildSnapshot(s.events, ref), nil
}

func (s *fakeSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refs)
}

type sentRec struct {
	body    string
	preview bool
}

type fakeSender struct {
	name string
	err  error

	mu    sync.Mutex
	sends []sentRec
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(_ context.Context, text string, preview bool) error {
	f.mu.Lock()
	f.sends = append(f.sends, sentRec{body: text, preview: preview})
	f.mu.Unlock()
	return f.err
}

func (f *fakeSender) sent() []sentRec {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentRec, len(f.sends))
	copy(out, f.sends)
	return out
}

type fixture struct {
	d        *Dispatcher
	store    queue.Store
	clock    *fakeClock
	source   *fakeSource
	slack    *fakeSender
	telegram *fakeSender
}

func newFixture(t *testing.T, cfg Config, events []feed.Event, at time.Time) *fixture {
	t.Helper()
	store, err := queue.Open(queue.Config{Driver: "file", Path: filepath.Join(t.TempDir(), "q")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if cfg.Slack == nil {
		cfg.Slack = &SlackPlan{Hour: 9, Minute: 0, Step: 15 * time.Minute}
	}
	if cfg.Telegram == nil {
		cfg.Telegram = &TelegramPlan{Hour: 10, Minute: 0}
	}
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}

	f := &fixture{
		store:    store,
		clock:    &fakeClock{t: at},
		source:   &fakeSource{events: events},
		slack:    &fakeSender{name: "slack"},
		telegram: &fakeSender{name: "telegram"},
	}
	senders := map[queue.Channel]channel.Sender{
		queue.ChannelSlack:    f.slack,
		queue.ChannelTelegram: f.telegram,
	}
	f.d = New(cfg, store, f.source, senders, f.clock, logx.Nop())
	return f
}

func (f *fixture) today(t *testing.T) []queue.Message {
	t.Helper()
	msgs, err := f.store.Day(context.Background(), dates.Day(f.clock.Now(), 0))
	if err != nil {
		t.Fatalf("Day: %v", err)
	}
	return msgs
}

func TestRefillRunsOncePerDay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, []feed.Event{{Name: "GopherCon", Due: "2025-07-09"}}, wednesday)

	f.d.Tick(ctx)
	if got := f.source.calls(); got != 1 {
		t.Fatalf("fetch calls after first tick = %d, want 1", got)
	}
	if got := f.today(t); len(got) != 2 { // one slack daily + one telegram digest
		t.Fatalf("queued = %d messages, want 2: %+v", len(got), got)
	}

	// Many more ticks on the same day: refill must not run again.
	for i := 0; i < 5; i++ {
		f.clock.Advance(time.Minute)
		f.d.Tick(ctx)
	}
	if got := f.source.calls(); got != 1 {
		t.Fatalf("fetch calls after same-day ticks = %d, want 1", got)
	}

	// Next calendar day: exactly one more refill.
	f.clock.Advance(24 * time.Hour)
	f.d.Tick(ctx)
	if got := f.source.calls(); got != 2 {
		t.Fatalf("fetch calls after day change = %d, want 2", got)
	}
}

func TestEnqueueOrderingAndTimestamps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	events := []feed.Event{
		{Name: "Alpha", Due: "2025-07-09"},
		{Name: "Beta", Due: "2025-07-09"},
		{Name: "Gamma", Due: "2025-07-09"},
	}
	f := newFixture(t, Config{Slack: &SlackPlan{Hour: 9, Minute: 0, Step: 15 * time.Minute}}, events, wednesday)

	f.d.Tick(ctx)

	msgs := f.today(t)
	if len(msgs) != 4 { // 3 slack + 1 telegram
		t.Fatalf("queued = %d messages: %+v", len(msgs), msgs)
	}

	t0 := dates.At(wednesday, 9, 0)
	step := (15 * time.Minute).Milliseconds()
	wantNames := []string{"Alpha", "Beta", "Gamma"}
	for i := 0; i < 3; i++ {
		m := msgs[i]
		if m.Channel != queue.ChannelSlack {
			t.Fatalf("msgs[%d].Channel = %s", i, m.Channel)
		}
		if !strings.Contains(m.Body, wantNames[i]) {
			t.Fatalf("msgs[%d] out of order: %q", i, m.Body)
		}
		if want := t0 + int64(i)*step; m.SendAt != want {
			t.Fatalf("msgs[%d].SendAt = %d, want %d", i, m.SendAt, want)
		}
	}
	if msgs[3].Channel != queue.ChannelTelegram || msgs[3].SendAt != dates.At(wednesday, 10, 0) {
		t.Fatalf("telegram msg = %+v", msgs[3])
	}
}

func TestWeeklyDigestOnMonday(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	// Nothing today or tomorrow, but deadlines later this week.
	events := []feed.Event{{Name: "KubeCon", Due: "2025-07-10"}}
	f := newFixture(t, Config{}, events, monday)

	f.d.Tick(ctx)

	msgs := f.today(t)
	if len(msgs) != 2 { // weekly slack digest + telegram digest
		t.Fatalf("queued = %d messages: %+v", len(msgs), msgs)
	}
	if msgs[0].Channel != queue.ChannelSlack || !strings.Contains(msgs[0].Body, "this week") {
		t.Fatalf("weekly digest missing: %+v", msgs[0])
	}
}

func TestSkipPolicy(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		at     time.Time
		events []feed.Event
		want   int
	}{
		{
			name:   "non-weekly day, only later-week deadlines",
			at:     wednesday,
			events: []feed.Event{{Name: "KubeCon", Due: "2025-07-12"}},
			want:   0,
		},
		{
			name:   "weekly day, nothing at all",
			at:     monday,
			events: nil,
			want:   0,
		},
		{
			name:   "weekly day, later-week deadlines",
			at:     monday,
			events: []feed.Event{{Name: "KubeCon", Due: "2025-07-10"}},
			want:   2,
		},
		{
			name:   "non-weekly day, deadline tomorrow",
			at:     wednesday,
			events: []feed.Event{{Name: "KubeCon", Due: "2025-07-10"}},
			want:   1, // telegram digest only; no slack daily for tomorrow
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, Config{}, tt.events, tt.at)
			f.d.Tick(context.Background())
			if got := f.today(t); len(got) != tt.want {
				t.Fatalf("queued = %d messages, want %d: %+v", len(got), tt.want, got)
			}
		})
	}
}

func TestPreviewPass(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	// Due tomorrow: the preview pass (reference shifted one day) sees it as
	// due "today" and builds immediately-sendable preview messages.
	events := []feed.Event{{Name: "GopherCon", URL: "https://gophercon.example", Due: "2025-07-10"}}
	f := newFixture(t, Config{Previews: true}, events, wednesday)

	f.d.Tick(ctx)

	if got := f.source.calls(); got != 2 { // preview pass + today pass
		t.Fatalf("fetch calls = %d, want 2", got)
	}
	// Preview fetch must use the shifted reference moment.
	if ref := f.source.refs[0]; dates.Day(ref, 0) != "2025-07-10" {
		t.Fatalf("preview ref day = %s, want 2025-07-10", dates.Day(ref, 0))
	}

	nowMS := f.clock.Now().UnixMilli()
	var previews, normal int
	for _, m := range f.today(t) {
		if m.Preview {
			previews++
			if !strings.HasPrefix(m.Body, "🔜") {
				t.Fatalf("preview body missing marker: %q", m.Body)
			}
			if m.SendAt != nowMS {
				t.Fatalf("preview SendAt = %d, want now (%d)", m.SendAt, nowMS)
			}
		} else {
			normal++
			if strings.HasPrefix(m.Body, "🔜") {
				t.Fatalf("normal body carries preview marker: %q", m.Body)
			}
		}
	}
	if previews != 2 { // slack daily + telegram digest for tomorrow's view
		t.Fatalf("preview messages = %d, want 2", previews)
	}
	if normal != 1 { // telegram digest for today's view (tomorrow section)
		t.Fatalf("normal messages = %d, want 1", normal)
	}

	// Preview messages are due immediately: the next tick delivers them to
	// the preview destinations.
	f.clock.Advance(time.Minute)
	f.d.Tick(ctx)
	for _, rec := range append(f.slack.sent(), f.telegram.sent()...) {
		if !rec.preview {
			t.Fatalf("expected preview routing, got %+v", rec)
		}
	}
	if len(f.slack.sent()) != 1 || len(f.telegram.sent()) != 1 {
		t.Fatalf("preview sends: slack=%d telegram=%d, want 1 each", len(f.slack.sent()), len(f.telegram.sent()))
	}
}

func TestDispatchStrictDueCheckAndAtMostOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, nil, wednesday)

	now := f.clock.Now()
	today := dates.Day(now, 0)
	// Suppress day-change refill for this test.
	if err := f.store.SetLastRun(ctx, today); err != nil {
		t.Fatalf("SetLastRun: %v", err)
	}

	msgs := []queue.Message{
		{Channel: queue.ChannelSlack, Body: "past", SendAt: now.UnixMilli() - 1000},
		{Channel: queue.ChannelSlack, Body: "exactly now", SendAt: now.UnixMilli()},
		{Channel: queue.ChannelSlack, Body: "future", SendAt: now.Add(time.Hour).UnixMilli()},
	}
	for _, m := range msgs {
		if err := f.store.Append(ctx, today, m); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	f.d.Tick(ctx)
	if got := f.slack.sent(); len(got) != 1 || got[0].body != "past" {
		t.Fatalf("first tick sends = %+v, want only the past-due message", got)
	}

	// Re-ticking never re-selects a sent message.
	f.d.Tick(ctx)
	f.d.Tick(ctx)
	if got := f.slack.sent(); len(got) != 1 {
		t.Fatalf("sends after re-ticks = %d, want 1", len(got))
	}

	// Once the strict boundary passes, the second message goes out.
	f.clock.Advance(2 * time.Second)
	f.d.Tick(ctx)
	if got := f.slack.sent(); len(got) != 2 || got[1].body != "exactly now" {
		t.Fatalf("sends after advance = %+v", got)
	}
}

func TestSendFailureStillMarksSent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, nil, wednesday)
	f.slack.err = errors.New("rate limited")

	now := f.clock.Now()
	today := dates.Day(now, 0)
	if err := f.store.SetLastRun(ctx, today); err != nil {
		t.Fatalf("SetLastRun: %v", err)
	}
	if err := f.store.Append(ctx, today, queue.Message{Channel: queue.ChannelSlack, Body: "x", SendAt: now.UnixMilli() - 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	f.d.Tick(ctx)
	f.d.Tick(ctx)

	// Fire and forget: one attempt, marked sent, never retried.
	if got := f.slack.sent(); len(got) != 1 {
		t.Fatalf("send attempts = %d, want 1", len(got))
	}
	stored := f.today(t)
	if len(stored) != 1 || !stored[0].Sent {
		t.Fatalf("stored = %+v, want sent=true", stored)
	}
}

func TestFetchFailureStillAdvancesMarker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, nil, wednesday)
	f.source.err = errors.New("upstream down")

	f.d.Tick(ctx)

	if got := f.today(t); len(got) != 0 {
		t.Fatalf("queued = %+v, want none", got)
	}
	day, ok, err := f.store.LastRun(ctx)
	if err != nil || !ok || day != dates.Day(wednesday, 0) {
		t.Fatalf("marker = %s ok=%v err=%v", day, ok, err)
	}

	// No retry until the next day change.
	f.clock.Advance(time.Minute)
	f.d.Tick(ctx)
	if got := f.source.calls(); got != 1 {
		t.Fatalf("fetch calls = %d, want 1", got)
	}
}

func TestDebugSendsAreLogOnly(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{Debug: true}, nil, wednesday)

	now := f.clock.Now()
	today := dates.Day(now, 0)
	if err := f.store.SetLastRun(ctx, today); err != nil {
		t.Fatalf("SetLastRun: %v", err)
	}
	if err := f.store.Append(ctx, today, queue.Message{Channel: queue.ChannelSlack, Body: "x", SendAt: now.UnixMilli() - 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// Preview tag beats the debug flag: this one still reaches the sender.
	if err := f.store.Append(ctx, today, queue.Message{Channel: queue.ChannelSlack, Body: "🔜y", SendAt: now.UnixMilli() - 1, Preview: true}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	f.d.Tick(ctx)

	got := f.slack.sent()
	if len(got) != 1 || !got[0].preview {
		t.Fatalf("debug sends = %+v, want only the preview", got)
	}
	for i, m := range f.today(t) {
		if !m.Sent {
			t.Fatalf("msgs[%d] not marked sent in debug mode", i)
		}
	}
}

func TestUnknownChannelIsSkippedButMarked(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Config{}, nil, wednesday)

	now := f.clock.Now()
	today := dates.Day(now, 0)
	if err := f.store.SetLastRun(ctx, today); err != nil {
		t.Fatalf("SetLastRun: %v", err)
	}
	if err := f.store.Append(ctx, today, queue.Message{Channel: "mastodon", Body: "x", SendAt: now.UnixMilli() - 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	f.d.Tick(ctx)

	stored := f.today(t)
	if len(stored) != 1 || !stored[0].Sent {
		t.Fatalf("stored = %+v, want sent=true", stored)
	}
}
