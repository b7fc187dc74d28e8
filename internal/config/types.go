package config

// Config is the operator-facing configuration, read once at startup.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Secrets (tokens) can be left out of the file and supplied via environment
// variables instead (SLACK_BOT_TOKEN, TELEGRAM_TOKEN).
type Config struct {
	// Debug switches the driver loop to the fast tick interval and turns
	// non-preview sends into log-only test sends.
	Debug bool `json:"debug"`

	// Previews enables the next-day preview pass on day change.
	Previews bool `json:"previews"`

	Tick    TickConfig    `json:"tick"`
	Source  SourceConfig  `json:"source"`
	Logging LoggingConfig `json:"logging"`
	Queue   QueueConfig   `json:"queue"`

	Slack    *SlackConfig    `json:"slack,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

// TickConfig controls the driver loop.
type TickConfig struct {
	// Interval between dispatch cycles. Default "1m".
	Interval string `json:"interval,omitempty"`
	// DebugInterval replaces Interval when debug is on. Default "6s".
	DebugInterval string `json:"debug_interval,omitempty"`
}

// SourceConfig points at the upcoming-CFP JSON endpoint.
type SourceConfig struct {
	URL string `json:"url"`
	// Timeout is the HTTP client timeout. Default "8s".
	Timeout string `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// QueueConfig controls the persistent queue store.
//
// Example:
//
//	"queue": { "driver": "file", "path": "./data/cfpbot" }
type QueueConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// SlackConfig configures the list-type Slack channel: one message per
// today-due CFP (plus a Monday weekly digest), spaced SendInterval apart
// starting at SendHour:SendMinute UTC.
type SlackConfig struct {
	Enabled        bool   `json:"enabled"`
	Token          string `json:"token,omitempty"`
	Channel        string `json:"channel"`
	PreviewChannel string `json:"preview_channel,omitempty"`
	SendHour       int    `json:"send_hour"`
	SendMinute     int    `json:"send_minute"`
	SendInterval   string `json:"send_interval,omitempty"` // default "15m"
	RatePerSec     int    `json:"rate_per_sec,omitempty"`
}

// TelegramConfig configures the composite Telegram channel: one digest
// message per day at SendHour:SendMinute UTC.
type TelegramConfig struct {
	Enabled       bool   `json:"enabled"`
	Token         string `json:"token,omitempty"`
	ChatID        int64  `json:"chat_id"`
	PreviewChatID int64  `json:"preview_chat_id,omitempty"`
	SendHour      int    `json:"send_hour"`
	SendMinute    int    `json:"send_minute"`
	RatePerSec    int    `json:"rate_per_sec,omitempty"`
}
