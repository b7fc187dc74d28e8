package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"

	"cfpbot/internal/channel"
	"cfpbot/internal/config"
	"cfpbot/internal/dates"
	"cfpbot/internal/dispatch"
	"cfpbot/internal/feed"
	"cfpbot/internal/queue"
	"cfpbot/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	// Secrets may live in a local .env during development.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	defer logSvc.Close()

	busy, err := config.ParseDurationField("queue.busy_timeout", cfg.Queue.BusyTimeout)
	if err != nil {
		return err
	}
	store, err := queue.Open(queue.Config{
		Driver:      cfg.Queue.Driver,
		Path:        cfg.Queue.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "queue")))
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()

	srcTimeout, err := config.ParseDurationOrDefault("source.timeout", cfg.Source.Timeout, 8*time.Second)
	if err != nil {
		return err
	}
	source, err := feed.NewHTTPSource(cfg.Source.URL, srcTimeout, log.With(logx.String("comp", "feed")))
	if err != nil {
		return fmt.Errorf("init cfp source: %w", err)
	}

	senders := map[queue.Channel]channel.Sender{}
	dcfg := dispatch.Config{Debug: cfg.Debug, Previews: cfg.Previews}

	if cfg.Slack != nil && cfg.Slack.Enabled {
		s, err := channel.NewSlack(*cfg.Slack, log.With(logx.String("comp", "slack")))
		if err != nil {
			return fmt.Errorf("init slack channel: %w", err)
		}
		step, err := config.ParseDurationOrDefault("slack.send_interval", cfg.Slack.SendInterval, 15*time.Minute)
		if err != nil {
			return err
		}
		senders[queue.ChannelSlack] = s
		dcfg.Slack = &dispatch.SlackPlan{Hour: cfg.Slack.SendHour, Minute: cfg.Slack.SendMinute, Step: step}
	}

	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		tg, err := channel.NewTelegram(*cfg.Telegram, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return fmt.Errorf("init telegram channel: %w", err)
		}
		senders[queue.ChannelTelegram] = tg
		dcfg.Telegram = &dispatch.TelegramPlan{Hour: cfg.Telegram.SendHour, Minute: cfg.Telegram.SendMinute}
	}

	if cfg.Debug {
		dcfg.Interval, err = config.ParseDurationOrDefault("tick.debug_interval", cfg.Tick.DebugInterval, 6*time.Second)
	} else {
		dcfg.Interval, err = config.ParseDurationOrDefault("tick.interval", cfg.Tick.Interval, time.Minute)
	}
	if err != nil {
		return err
	}

	d := dispatch.New(dcfg, store, source, senders, dates.SystemClock{}, log)

	log.Info("cfpbot starting",
		logx.Bool("debug", cfg.Debug),
		logx.Bool("previews", cfg.Previews),
		logx.Int("channels", len(senders)),
		logx.Duration("tick", dcfg.Interval),
	)

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	defer func() { _, _ = daemon.SdNotify(false, daemon.SdNotifyStopping) }()

	return d.Run(ctx)
}
