/**
 * @description
 * This package provides a client for the Resend transactional email API.
 * Without an API key it degrades to log-only mode so local development and
 * previews work without sending real mail.
 *
 * @dependencies
 * - bytes, context, encoding/json, net/http, time: Standard Go libraries.
 */

package emailclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.resend.com"

// Client sends email through the Resend REST API.
type Client struct {
	BaseURL    string
	APIKey     string
	From       string
	HTTPClient *http.Client
}

// Sender is the interface consumed by the notifier.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one outbound email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// NewClient creates a new email client. An empty apiKey enables log-only mode.
func NewClient(apiKey, from string) *Client {
	if strings.TrimSpace(from) == "" {
		from = "Bramlijst <noreply@bramlijst.nl>"
	}
	return &Client{
		BaseURL: defaultBaseURL,
		APIKey:  strings.TrimSpace(apiKey),
		From:    from,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Send delivers one message. In log-only mode the message is logged and
// reported as sent so callers behave identically in development.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c.APIKey == "" {
		log.Printf("level=info component=emailclient mode=log_only msg=\"email suppressed\" to=%s subject=%q", msg.To, msg.Subject)
		return nil
	}

	payload, err := json.Marshal(struct {
		From    string `json:"from"`
		To      string `json:"to"`
		Subject string `json:"subject"`
		HTML    string `json:"html"`
	}{
		From:    c.From,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("email send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("email send rejected (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
