package config

import (
	"errors"
	"fmt"
	"strings"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Transport TransportConfig `json:"transport"`

	// Autopilot controls the prompt queue / interval scheduler.
	Autopilot AutopilotConfig `json:"autopilot"`

	Notify  *NotifyConfig  `json:"notify,omitempty"`
	Storage *StorageConfig `json:"storage,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// TransportConfig points at the agent application's remote-debugging endpoint.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type TransportConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port"`

	ConnectTimeout string `json:"connect_timeout,omitempty"`
	CallTimeout    string `json:"call_timeout,omitempty"`

	// PollEvery is the host-driven transport keepalive cadence. It is
	// independent of the autopilot's own silence-check cadence.
	PollEvery string `json:"poll_every,omitempty"`
}

// AutopilotConfig is the scheduler configuration snapshot.
//
// A reload replaces the snapshot wholesale; an in-flight queue run keeps the
// snapshot it started with and picks up changes on the next start.
//
// Defaults (when fields are omitted/zero):
//   - mode: "queue"
//   - silence_timeout: "30s"
//   - interval_every: "10m"
type AutopilotConfig struct {
	Enabled bool   `json:"enabled"`
	Mode    string `json:"mode,omitempty"` // "queue" or "interval"

	Prompts []string `json:"prompts,omitempty"`

	// SilenceTimeout is how long UI activity must stay quiet before the
	// current queue item is considered finished.
	SilenceTimeout string `json:"silence_timeout,omitempty"`

	IntervalEvery  string `json:"interval_every,omitempty"`
	IntervalPrompt string `json:"interval_prompt,omitempty"`
}

// NotifyConfig controls the notification pipeline.
// If the whole section is omitted, notifications default to log-only.
type NotifyConfig struct {
	Enabled    bool                  `json:"enabled"`
	RatePerSec int                   `json:"rate_per_sec,omitempty"`
	Telegram   *TelegramNotifyConfig `json:"telegram,omitempty"`
}

type TelegramNotifyConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`
}

// StorageConfig controls the run-history audit trail.
//
// Driver values:
//   - "file": dependency-free jsonl backend
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty or "none", history is disabled.
type StorageConfig struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Validate checks cross-field constraints that the strict decoder can't.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Transport.Port <= 0 || c.Transport.Port > 65535 {
		return fmt.Errorf("transport.port: %d is out of range", c.Transport.Port)
	}

	switch strings.ToLower(strings.TrimSpace(c.Autopilot.Mode)) {
	case "", "queue", "interval":
	default:
		return fmt.Errorf("autopilot.mode: unknown mode %q", c.Autopilot.Mode)
	}

	for _, f := range []struct{ path, raw string }{
		{"transport.connect_timeout", c.Transport.ConnectTimeout},
		{"transport.call_timeout", c.Transport.CallTimeout},
		{"transport.poll_every", c.Transport.PollEvery},
		{"autopilot.silence_timeout", c.Autopilot.SilenceTimeout},
		{"autopilot.interval_every", c.Autopilot.IntervalEvery},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}

	return nil
}
