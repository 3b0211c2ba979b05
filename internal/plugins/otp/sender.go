package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Sender delivers a generated code to the user out-of-band. The code value
// never travels back to the browser that requested it.
type Sender interface {
	Send(ctx context.Context, phone, code string) error
}

// WebhookSender posts the code to a messaging-provider webhook that relays
// it over WhatsApp.
type WebhookSender struct {
	url    string
	token  string
	client *http.Client
}

// NewWebhookSender creates a sender targeting the given webhook URL. The
// token is sent as a bearer credential on each dispatch.
func NewWebhookSender(url, token string) *WebhookSender {
	return &WebhookSender{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send posts the code and destination phone to the webhook. Non-2xx
// responses are errors: the caller must not report OTP success when the
// message was never handed off.
func (s *WebhookSender) Send(ctx context.Context, phone, code string) error {
	payload, err := json.Marshal(map[string]string{
		"phone": phone,
		"code":  code,
	})
	if err != nil {
		return fmt.Errorf("marshaling otp dispatch payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building otp dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatching otp to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("otp webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogSender logs instead of dispatching. Development only — the code
// appears in plain text in the server log.
type LogSender struct{}

// Send logs the code at warn level so it stands out in dev output.
func (LogSender) Send(_ context.Context, phone, code string) error {
	slog.Warn("otp dispatch (dev sender, not delivered)",
		slog.String("phone", phone),
		slog.String("code", code),
	)
	return nil
}
