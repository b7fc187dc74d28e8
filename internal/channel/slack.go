package channel

import (
	"context"
	"errors"
	"strings"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"

	"cfpbot/internal/config"
	"cfpbot/pkg/logx"
)

// Slack posts announcements to a Slack channel.
type Slack struct {
	api     *slack.Client
	channel string
	preview string
	limiter *rate.Limiter
	log     logx.Logger
}

func NewSlack(cfg config.SlackConfig, log logx.Logger) (*Slack, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("slack token is empty")
	}
	if strings.TrimSpace(cfg.Channel) == "" {
		return nil, errors.New("slack channel is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Slack{
		api:     slack.New(cfg.Token),
		channel: cfg.Channel,
		preview: cfg.PreviewChannel,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}, nil
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Send(ctx context.Context, text string, preview bool) error {
	to := s.channel
	if preview {
		if s.preview == "" {
			return errors.New("slack preview channel not configured")
		}
		to = s.preview
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	_, _, err := s.api.PostMessageContext(ctx, to, slack.MsgOptionText(text, false))
	if err != nil {
		return err
	}
	s.log.Debug("slack message sent", logx.String("channel", to), logx.Bool("preview", preview))
	return nil
}
