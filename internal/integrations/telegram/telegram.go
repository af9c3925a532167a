// Package telegram delivers notifications through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"taskradar/internal/httpx"
	"taskradar/internal/notify"
)

const defaultAPIBase = "https://api.telegram.org"

type Channel struct {
	token   string
	chatID  string
	apiBase string
}

// New returns nil when either credential is missing so callers can pass
// the result straight to notify.NewCoordinator.
func New(token, chatID string) *Channel {
	if token == "" || chatID == "" {
		return nil
	}
	return &Channel{token: token, chatID: chatID, apiBase: defaultAPIBase}
}

// WithAPIBase points the channel at a different Bot API host.
func (c *Channel) WithAPIBase(base string) *Channel {
	c.apiBase = strings.TrimRight(base, "/")
	return c
}

func (c *Channel) Name() string { return "telegram" }

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// Send posts every rendered message. It fails only when none went through.
func (c *Channel) Send(ctx context.Context, msg notify.Message) error {
	texts := notify.FormatTelegram(msg)
	sent := 0
	var lastErr error
	for _, text := range texts {
		if err := c.sendMessage(ctx, text); err != nil {
			log.Printf("telegram send failed: %v", err)
			lastErr = err
			continue
		}
		sent++
	}
	if sent == 0 && lastErr != nil {
		return lastErr
	}
	log.Printf("telegram sent messages=%d", sent)
	return nil
}

func (c *Channel) sendMessage(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                c.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpx.ExternalHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
