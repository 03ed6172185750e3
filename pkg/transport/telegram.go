package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/turlebp/SysAlertV2/pkg/config"
	"github.com/turlebp/SysAlertV2/pkg/queue"
)

const telegramAPIBase = "https://api.telegram.org"

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// TelegramSender delivers messages through the Telegram Bot API.
type TelegramSender struct {
	token  string
	client *http.Client
}

// NewTelegramSender creates a sender for the given bot token.
func NewTelegramSender(cfg *config.TelegramConfig) *TelegramSender {
	return &TelegramSender{
		token: cfg.Token,
		client: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
	}
}

// SendFunc adapts the sender to the queue's delivery signature.
func (t *TelegramSender) SendFunc() queue.SendFunc {
	return t.Send
}

// Send posts one message to a chat. Errors never include the bot token.
func (t *TelegramSender) Send(ctx context.Context, chatID int64, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// http.Client errors embed the full request URL, token included.
		// Unwrap so only the transport cause can ever reach a log line.
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Err != nil {
			return fmt.Errorf("telegram: send failed: %w", urlErr.Err)
		}
		return fmt.Errorf("telegram: send failed: %s", redactToken(err.Error(), t.token))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiResp apiResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiResp) == nil && apiResp.Description != "" {
			return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, apiResp.Description)
		}
		return fmt.Errorf("telegram: status %d", resp.StatusCode)
	}
	return nil
}

// redactToken masks any occurrence of the bot token in text.
func redactToken(text, token string) string {
	if token == "" {
		return text
	}
	return strings.ReplaceAll(text, token, "[REDACTED]")
}
