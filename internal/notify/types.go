package notify

import "context"

// Config configures the notification pipeline.
type Config struct {
	Enabled    bool
	RatePerSec int

	Telegram TelegramConfig
}

// TelegramConfig configures the optional Telegram sink.
type TelegramConfig struct {
	Enabled bool
	Token   string
	ChatID  int64
}

// Sink delivers one rendered message. Implementations must be safe for
// concurrent use.
type Sink interface {
	Send(ctx context.Context, text string) error
}
