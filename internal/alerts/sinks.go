package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quantarc/tradesim/internal/observ"
)

// LogSink writes alerts to the structured event log. Always configured;
// it is the fallback when no external channel is set up.
type LogSink struct{}

func (LogSink) Send(subject, body string, severity Severity) error {
	observ.Log("alert", map[string]any{
		"subject":  subject,
		"body":     body,
		"severity": string(severity),
	})
	return nil
}

// WebhookSink posts alerts as JSON to a generic webhook (Slack-compatible
// payload shape).
type WebhookSink struct {
	URL    string
	Client *http.Client
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookSink) Send(subject, body string, severity Severity) error {
	payload := map[string]any{
		"text":     fmt.Sprintf("[%s] %s\n%s", severity, subject, body),
		"severity": string(severity),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	resp, err := s.Client.Post(s.URL, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// TelegramSink delivers alerts through the Telegram bot API.
type TelegramSink struct {
	client *resty.Client
	token  string
	chatID string
}

func NewTelegramSink(botToken, chatID string) *TelegramSink {
	return &TelegramSink{
		client: resty.New().SetTimeout(10 * time.Second),
		token:  botToken,
		chatID: chatID,
	}
}

func (s *TelegramSink) Send(subject, body string, severity Severity) error {
	resp, err := s.client.R().
		SetFormData(map[string]string{
			"chat_id": s.chatID,
			"text":    fmt.Sprintf("[%s] %s\n\n%s", severity, subject, body),
		}).
		Post(fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.token))
	if err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
