package app

import (
	"time"

	"promptpilot/internal/autopilot"
	"promptpilot/internal/config"
	"promptpilot/internal/notify"
	"promptpilot/internal/storage"
	cdp "promptpilot/internal/transport/cdp"
)

// Config sections use duration strings and optional blocks; services want
// parsed snapshots. These mappers are the only place that translation lives.

func mapTransportConfig(cfg *config.Config) (cdp.Config, time.Duration, error) {
	connect, err := config.ParseDurationOrDefault("transport.connect_timeout", cfg.Transport.ConnectTimeout, 5*time.Second)
	if err != nil {
		return cdp.Config{}, 0, err
	}
	call, err := config.ParseDurationOrDefault("transport.call_timeout", cfg.Transport.CallTimeout, 10*time.Second)
	if err != nil {
		return cdp.Config{}, 0, err
	}
	poll, err := config.ParseDurationOrDefault("transport.poll_every", cfg.Transport.PollEvery, 15*time.Second)
	if err != nil {
		return cdp.Config{}, 0, err
	}
	return cdp.Config{
		Host:           cfg.Transport.Host,
		Port:           cfg.Transport.Port,
		ConnectTimeout: connect,
		CallTimeout:    call,
	}, poll, nil
}

func mapAutopilotConfig(cfg *config.Config) (autopilot.Config, error) {
	silence, err := config.ParseDurationOrDefault("autopilot.silence_timeout", cfg.Autopilot.SilenceTimeout, 0)
	if err != nil {
		return autopilot.Config{}, err
	}
	every, err := config.ParseDurationOrDefault("autopilot.interval_every", cfg.Autopilot.IntervalEvery, 0)
	if err != nil {
		return autopilot.Config{}, err
	}
	mode, err := autopilot.ParseMode(cfg.Autopilot.Mode)
	if err != nil {
		return autopilot.Config{}, err
	}
	return autopilot.Config{
		Enabled:        cfg.Autopilot.Enabled,
		Mode:           mode,
		Prompts:        cfg.Autopilot.Prompts,
		SilenceTimeout: silence,
		IntervalEvery:  every,
		IntervalPrompt: cfg.Autopilot.IntervalPrompt,
	}, nil
}

func mapNotifyConfig(cfg *config.Config) notify.Config {
	if cfg.Notify == nil {
		return notify.Config{}
	}
	out := notify.Config{
		Enabled:    cfg.Notify.Enabled,
		RatePerSec: cfg.Notify.RatePerSec,
	}
	if tg := cfg.Notify.Telegram; tg != nil {
		out.Telegram = notify.TelegramConfig{
			Enabled: tg.Enabled,
			Token:   tg.Token,
			ChatID:  tg.ChatID,
		}
	}
	return out
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool) {
	if cfg.Storage == nil || cfg.Storage.Driver == "" || cfg.Storage.Driver == "none" {
		return storage.Config{}, false
	}
	return storage.Config{
		Driver: cfg.Storage.Driver,
		Path:   cfg.Storage.Path,
	}, true
}
