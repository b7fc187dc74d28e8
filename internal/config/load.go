package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Load reads, strictly decodes, and validates the config file.
// Token env vars override file values so secrets can stay out of the file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}

	applyEnv(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if cfg.Slack != nil {
		if v := strings.TrimSpace(os.Getenv("SLACK_BOT_TOKEN")); v != "" {
			cfg.Slack.Token = v
		}
	}
	if cfg.Telegram != nil {
		if v := strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")); v != "" {
			cfg.Telegram.Token = v
		}
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Source.URL) == "" {
		return errors.New("source.url is required")
	}
	if strings.TrimSpace(cfg.Queue.Path) == "" {
		return errors.New("queue.path is required")
	}
	if cfg.Slack != nil && cfg.Slack.Enabled {
		if err := validateClock("slack", cfg.Slack.SendHour, cfg.Slack.SendMinute); err != nil {
			return err
		}
		if strings.TrimSpace(cfg.Slack.Token) == "" {
			return errors.New("slack.token is required (or set SLACK_BOT_TOKEN)")
		}
		if strings.TrimSpace(cfg.Slack.Channel) == "" {
			return errors.New("slack.channel is required")
		}
	}
	if cfg.Telegram != nil && cfg.Telegram.Enabled {
		if err := validateClock("telegram", cfg.Telegram.SendHour, cfg.Telegram.SendMinute); err != nil {
			return err
		}
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return errors.New("telegram.token is required (or set TELEGRAM_TOKEN)")
		}
		if cfg.Telegram.ChatID == 0 {
			return errors.New("telegram.chat_id is required")
		}
	}
	return nil
}

func validateClock(section string, hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%s.send_hour out of range: %d", section, hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("%s.send_minute out of range: %d", section, minute)
	}
	return nil
}
