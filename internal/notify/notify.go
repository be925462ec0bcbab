// Package notify sends an optional out-of-band completion message to a
// Telegram chat. Notification failures never affect the run outcome.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/mverikas/agora/internal/config"
)

const maxMessageLen = 4096

type Notifier struct {
	bot    *telego.Bot
	chatID int64
}

// New returns nil when Telegram is not configured; callers treat a nil
// notifier as a no-op.
func New(cfg config.TelegramConfig) (*Notifier, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, nil
	}

	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: cfg.ChatID}, nil
}

// Notify sends the text, chunked to Telegram's message size limit. Errors are
// logged and swallowed.
func (n *Notifier) Notify(ctx context.Context, text string) {
	if n == nil {
		return
	}
	for _, chunk := range chunkMessage(text, maxMessageLen) {
		if _, err := n.bot.SendMessage(ctx, tu.Message(tu.ID(n.chatID), chunk)); err != nil {
			slog.Error("failed to send telegram notification", "chat", n.chatID, "error", err)
			return
		}
	}
}
