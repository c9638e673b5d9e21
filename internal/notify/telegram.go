package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// botAPI is the subset of *tgbotapi.BotAPI used for sending.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender mirrors notifications to a Telegram chat. Message recipients
// are ignored; everything goes to the configured chat.
type TelegramSender struct {
	bot            botAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewTelegramSender creates a TelegramSender. It contacts the Bot API to
// validate the token.
func NewTelegramSender(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newTelegramSender(bot, chatID, maxRetries, retryDelayBase)
}

func newTelegramSender(bot botAPI, chatID string, maxRetries int, retryDelayBase time.Duration) (*TelegramSender, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &TelegramSender{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// Send posts msg to the chat, retrying with linear backoff.
func (t *TelegramSender) Send(ctx context.Context, msg Message) error {
	tgMsg := tgbotapi.NewMessage(t.chatID, formatTelegram(msg))
	tgMsg.ParseMode = "MarkdownV2"
	tgMsg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(t.retryDelayBase * time.Duration(i)):
			}
		}

		_, err := t.bot.Send(tgMsg)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("failed to send message after %d retries: %w", t.maxRetries, lastErr)
}

// formatTelegram renders the subject in bold above the body.
func formatTelegram(msg Message) string {
	return "*" + escapeMarkdownV2(msg.Subject) + "*\n\n" + escapeMarkdownV2(msg.Body)
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . ! and the escape character itself
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '\\', '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
