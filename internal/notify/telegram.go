package notify

import (
	"context"
	"errors"
	"fmt"

	"homeserve/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender delivers messages to the customer's chat.
type TelegramSender struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramSender(token string, debug bool) (*TelegramSender, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	botAPI.Debug = debug
	return &TelegramSender{bot: botAPI}, nil
}

func (s *TelegramSender) SendMessage(ctx context.Context, contact *models.Contact, text string) error {
	if contact.TelegramChatID == 0 {
		return errors.New("contact has no telegram chat id")
	}

	msg := tgbotapi.NewMessage(contact.TelegramChatID, text)
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", contact.TelegramChatID, err)
	}
	return nil
}
