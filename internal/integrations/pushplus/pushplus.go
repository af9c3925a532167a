// Package pushplus delivers HTML notifications through PushPlus (WeChat).
package pushplus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"taskradar/internal/httpx"
	"taskradar/internal/notify"
)

const defaultEndpoint = "http://www.pushplus.plus/send"

type Channel struct {
	token    string
	endpoint string
}

// New returns nil when no token is configured.
func New(token string) *Channel {
	if token == "" {
		return nil
	}
	return &Channel{token: token, endpoint: defaultEndpoint}
}

func (c *Channel) WithEndpoint(endpoint string) *Channel {
	c.endpoint = endpoint
	return c
}

func (c *Channel) Name() string { return "pushplus" }

type sendRequest struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
}

type sendResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Send succeeds only when PushPlus answers with code 200 in the body.
func (c *Channel) Send(ctx context.Context, msg notify.Message) error {
	body, err := json.Marshal(sendRequest{
		Token:    c.token,
		Title:    msg.Title,
		Content:  notify.FormatHTML(msg),
		Template: "html",
	})
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpx.ExternalHTTPClient().Do(req)
	if err != nil {
		return fmt.Errorf("pushplus request: %w", err)
	}
	defer resp.Body.Close()

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("parsing pushplus response (status %d): %w", resp.StatusCode, err)
	}
	if result.Code != 200 {
		return fmt.Errorf("pushplus error code=%d msg=%s", result.Code, result.Msg)
	}
	log.Printf("pushplus sent title=%q", msg.Title)
	return nil
}
