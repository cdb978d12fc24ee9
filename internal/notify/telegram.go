package notify

import (
	"context"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// telegramSink delivers messages to a single chat. Send-only: no poller is
// started and no updates are consumed.
type telegramSink struct {
	bot    *tele.Bot
	chatID int64
}

func newTelegramSink(cfg TelegramConfig) (Sink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is required")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &telegramSink{bot: b, chatID: cfg.ChatID}, nil
}

// Send runs the blocking API call in a goroutine so the caller's context
// bounds the wait. The caller always passes a deadline.
func (s *telegramSink) Send(ctx context.Context, text string) error {
	done := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(&tele.Chat{ID: s.chatID}, text)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
