package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, to string, body string) error
	ProviderID() string
}

// WebhookSender posts the message to an SMS gateway webhook.
type WebhookSender struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewWebhookSender(endpoint string, token string) *WebhookSender {
	return &WebhookSender{
		endpoint: strings.TrimSpace(endpoint),
		token:    strings.TrimSpace(token),
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *WebhookSender) ProviderID() string { return "sms-webhook" }

func (s *WebhookSender) Send(ctx context.Context, to string, body string) error {
	if s.endpoint == "" {
		return errors.New("sms webhook endpoint not configured")
	}
	raw, err := json.Marshal(map[string]string{
		"recipient": to,
		"message":   body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("sms webhook returned non-2xx")
	}
	return nil
}

// NoopSender drops messages; the default when no gateway is configured.
type NoopSender struct{}

func NewNoopSender() *NoopSender { return &NoopSender{} }

func (s *NoopSender) ProviderID() string { return "sms-noop" }

func (s *NoopSender) Send(_ context.Context, _ string, _ string) error { return nil }
