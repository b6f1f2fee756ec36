package notification

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// sender is the part of tgbotapi.BotAPI the notifier needs
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends alerts to one chat via the Telegram Bot API.
type TelegramNotifier struct {
	bot    sender
	chatID int64
	logger zerolog.Logger
}

// NewTelegramNotifier connects the bot and targets chatID.
func NewTelegramNotifier(botToken string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("initializing telegram bot: %w", err)
	}
	return newTelegramNotifier(bot, chatID), nil
}

func newTelegramNotifier(bot sender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "telegram").Logger(),
	}
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatHTML(alert))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error().Err(err).Str("title", alert.Title).Msg("Failed to send alert")
		return fmt.Errorf("telegram: send: %w", err)
	}

	t.logger.Debug().Str("title", alert.Title).Msg("Sent alert")
	return nil
}

// FormatHTML renders an alert as Telegram HTML
func FormatHTML(alert Alert) string {
	emoji := "ℹ️"
	switch alert.Level {
	case AlertWarning:
		emoji = "⚠️"
	case AlertCritical:
		emoji = "🚨"
	}
	return fmt.Sprintf("%s <b>%s</b>\n\n%s", emoji, html.EscapeString(alert.Title), html.EscapeString(alert.Message))
}
