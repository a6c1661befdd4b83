package smoketest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// client wraps http.Client for the command endpoint.
type client struct {
	http    *http.Client
	baseURL string
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type commandRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type commandResponse struct {
	Reply string `json:"reply"`
}

// Command posts one command line for one user and returns the reply.
func (c *client) Command(ctx context.Context, user, text string) (string, error) {
	body, err := json.Marshal(commandRequest{UserID: user, Text: text})
	if err != nil {
		return "", fmt.Errorf("marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/command", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post command: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("command returned %d: %s", resp.StatusCode, raw)
	}

	var out commandResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	return out.Reply, nil
}

// Healthy reports whether the service answers its health check.
func (c *client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
