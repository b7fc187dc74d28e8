package channel

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"cfpbot/internal/config"
	"cfpbot/pkg/logx"
)

// Telegram posts announcements to a Telegram chat via telebot.
// The bot is send-only; no poller is ever started.
type Telegram struct {
	bot     *tele.Bot
	chatID  int64
	preview int64
	limiter *rate.Limiter
	log     logx.Logger
}

func NewTelegram(cfg config.TelegramConfig, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Telegram{
		bot:     b,
		chatID:  cfg.ChatID,
		preview: cfg.PreviewChatID,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, text string, preview bool) error {
	to := t.chatID
	if preview {
		if t.preview == 0 {
			return errors.New("telegram preview chat not configured")
		}
		to = t.preview
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := t.bot.Send(&tele.Chat{ID: to}, text, &tele.SendOptions{DisableWebPagePreview: true})
	if err != nil {
		return err
	}
	t.log.Debug("telegram message sent", logx.Int64("chat_id", to), logx.Bool("preview", preview))
	return nil
}
