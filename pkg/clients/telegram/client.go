// Package telegram sends alert messages through the Telegram bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultBaseUrl = "https://api.telegram.org"

// Telegram rejects messages longer than this.
const maxMessageLength = 4096

type Client struct {
	httpClient *http.Client
	baseURL    string
	botToken   string
	chatId     string
	logger     *zap.Logger
}

func NewClient(botToken string, chatId string, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:  DefaultBaseUrl,
		botToken: botToken,
		chatId:   chatId,
		logger:   logger,
	}
}

type sendMessageResponse struct {
	Ok          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *Client) SendMessage(ctx context.Context, text string) error {
	if len(text) > maxMessageLength {
		text = text[:maxMessageLength]
	}
	payload, err := json.Marshal(map[string]string{
		"chat_id": c.chatId,
		"text":    text,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send telegram message")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	var res sendMessageResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, string(body))
	}
	if !res.Ok {
		return fmt.Errorf("telegram rejected message: %s", res.Description)
	}
	return nil
}
