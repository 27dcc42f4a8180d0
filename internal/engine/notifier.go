package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// notifyTimeout bounds a single webhook delivery attempt. Notifications
// are fire-and-forget; a slow receiver must not pin a goroutine.
const notifyTimeout = 10 * time.Second

// WebhookNotifier posts auto-chain completion updates to an external
// webhook endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookNotifier creates a notifier posting to the given URL.
func NewWebhookNotifier(url string, logger *slog.Logger) *WebhookNotifier {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for WebhookNotifier")
	}

	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: notifyTimeout},
		logger: logger.With(slog.String("component", "webhook_notifier")),
	}
}

// Notify delivers the update payload. A non-2xx response is an error; the
// caller decides whether that matters (for auto-chain updates it is only
// logged).
func (n *WebhookNotifier) Notify(ctx context.Context, payload json.RawMessage) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification endpoint unreachable: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		if err := resp.Body.Close(); err != nil {
			n.logger.Warn("failed to close notification response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// NopNotifier discards notifications. Used when no webhook is configured.
type NopNotifier struct{}

// Notify does nothing.
func (NopNotifier) Notify(context.Context, json.RawMessage) error {
	return nil
}
