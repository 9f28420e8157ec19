// Package notify delivers trade notifications to users over Telegram.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const apiBase = "https://api.telegram.org"

// Telegram sends messages through the Bot API. A nil *Telegram is a valid
// no-op sender, so callers never need to guard on configuration.
type Telegram struct {
	client *resty.Client
	token  string
	logger *zap.Logger
}

// NewTelegram creates a sender for the given bot token. Returns nil when the
// token is empty.
func NewTelegram(token string, timeout time.Duration, logger *zap.Logger) *Telegram {
	if token == "" {
		return nil
	}
	client := resty.New().
		SetBaseURL(apiBase).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second)
	return &Telegram{client: client, token: token, logger: logger}
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts one HTML-formatted message to a chat.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	if t == nil {
		return nil
	}
	var result apiResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML"}).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("/bot%s/sendMessage", t.token))
	if err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	if resp.IsError() || !result.OK {
		return fmt.Errorf("telegram api error: status %d: %s", resp.StatusCode(), result.Description)
	}
	t.logger.Debug("Telegram notification sent", zap.Int64("chat_id", chatID))
	return nil
}
