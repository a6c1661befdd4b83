// Package notify delivers push notifications to the chat platform. The
// platform adapter itself lives outside this service; it exposes a push
// URL that receives one JSON notification per reminder.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/nudge/internal/domain/model"
	"github.com/okian/nudge/pkg/logger"
)

// Default sender configuration constants.
const (
	defaultTimeout = 10 * time.Second
)

// Sender pushes one notification to its user. A failed send is logged
// and dropped by the caller, never retried.
type Sender interface {
	Send(ctx context.Context, n model.Notification) error
}

// WebhookSender posts notifications as JSON to the collaborator's push
// endpoint.
type WebhookSender struct {
	url    string
	client *http.Client
}

// WebhookOption applies a configuration option to the WebhookSender.
type WebhookOption func(*WebhookSender)

// WithTimeout bounds one send attempt.
func WithTimeout(d time.Duration) WebhookOption {
	return func(s *WebhookSender) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) WebhookOption {
	return func(s *WebhookSender) {
		if c != nil {
			s.client = c
		}
	}
}

// NewWebhookSender creates a sender that posts to url.
func NewWebhookSender(url string, opts ...WebhookOption) *WebhookSender {
	s := &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send posts the notification. Any non-2xx response is an error.
func (s *WebhookSender) Send(ctx context.Context, n model.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification %s: %w", n.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push notification %s: %w", n.ID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("push notification %s: unexpected status %d", n.ID, resp.StatusCode)
	}
	return nil
}

// LogSender writes notifications to the log instead of pushing them.
// Used for local runs without a configured push URL.
type LogSender struct {
	logger logger.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender() *LogSender {
	return &LogSender{logger: logger.Get().Named("notify")}
}

// Send logs the notification and always succeeds.
func (s *LogSender) Send(ctx context.Context, n model.Notification) error {
	s.logger.Info(ctx, "notification",
		logger.String("id", n.ID),
		logger.String("user", n.UserID),
		logger.String("kind", string(n.Kind)),
		logger.String("body", n.Body),
	)
	return nil
}
