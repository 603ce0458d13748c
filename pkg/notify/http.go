package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPSender posts messages to the notification service's e-mail endpoint.
type HTTPSender struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPSender builds a sender for baseURL. A nil client gets a 15s timeout.
func NewHTTPSender(baseURL, apiKey string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSender{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: client}
}

// Send issues POST {base}/notifications/email.
func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/notifications/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notification service responded %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
