// Package telegram wraps the Telegram Bot API for outbound delivery.
//
// Messages go out Markdown-formatted; when Telegram rejects the formatting
// (unbalanced markers in backend-generated text are common) the send is
// retried once as plain text. Other transport errors propagate to the caller.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// botAPI is the slice of tgbotapi.BotAPI the client uses. Tests substitute a
// fake.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Client delivers text to Telegram conversations.
type Client struct {
	bot botAPI
}

// NewClient authenticates against the Telegram Bot API with the given token.
func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is not set")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram client: %w", err)
	}
	slog.Info("telegram client authenticated", "username", bot.Self.UserName)
	return &Client{bot: bot}, nil
}

// newClientWithBot wires an arbitrary botAPI; used by tests.
func newClientWithBot(bot botAPI) *Client {
	return &Client{bot: bot}
}

// SendMessage delivers text to a chat with Markdown formatting, retrying once
// as plain text if Telegram rejects the formatting.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := c.bot.Send(msg); err != nil {
		if !isParseError(err) {
			slog.Error("telegram send failed", "error", err, "chatID", chatID, "messageLength", len(text))
			return fmt.Errorf("send message: %w", err)
		}
		slog.Warn("markdown parsing rejected, retrying as plain text", "chatID", chatID)

		plain := tgbotapi.NewMessage(chatID, text)
		if _, err := c.bot.Send(plain); err != nil {
			slog.Error("telegram plain text send failed", "error", err, "chatID", chatID, "messageLength", len(text))
			return fmt.Errorf("send plain message: %w", err)
		}
	}

	slog.Debug("telegram message sent", "chatID", chatID, "messageLength", len(text))
	return nil
}

// RegisterWebhook points the bot's webhook at publicURL + /webhook/telegram.
func (c *Client) RegisterWebhook(publicURL string) (string, error) {
	webhookURL := strings.TrimRight(publicURL, "/") + "/webhook/telegram"
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return "", fmt.Errorf("build webhook config: %w", err)
	}
	resp, err := c.bot.Request(wh)
	if err != nil {
		return "", fmt.Errorf("register webhook: %w", err)
	}
	if !resp.Ok {
		return "", fmt.Errorf("register webhook: telegram answered %q", resp.Description)
	}
	slog.Info("webhook registered", "url", webhookURL)
	return webhookURL, nil
}

// isParseError reports whether the send failed because Telegram could not
// parse the message's formatting entities.
func isParseError(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 400 && strings.Contains(strings.ToLower(apiErr.Message), "parse")
	}
	return false
}
