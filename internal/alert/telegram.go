package alert

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"gitlab.com/yelinaung/paywatch/internal/models"
)

// TelegramAPI is the subset of the Telegram bot client used for alert pushes.
type TelegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
}

var _ TelegramAPI = (*bot.Bot)(nil)

// TelegramNotifier sends alerts to a single chat.
type TelegramNotifier struct {
	api    TelegramAPI
	chatID int64
}

// NewTelegramNotifier creates a notifier that posts to chatID.
func NewTelegramNotifier(api TelegramAPI, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{api: api, chatID: chatID}
}

// NewTelegramBot creates a Telegram client for token. It is only used to send.
func NewTelegramBot(token string) (*bot.Bot, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return b, nil
}

// Notify posts the alert title and message.
func (n *TelegramNotifier) Notify(ctx context.Context, a *models.Alert) error {
	_, err := n.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      fmt.Sprintf("<b>%s</b>\n%s", escapeHTML(a.Title), escapeHTML(a.Message)),
		ParseMode: tgmodels.ParseModeHTML,
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
