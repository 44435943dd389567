package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"accruing-ledger/internal/core/domain"
	"accruing-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier implements ports.Notifier by POSTing events as JSON to a
// configured endpoint. Delivery is best-effort: one attempt, no retries.
type WebhookNotifier struct {
	url        string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier. An empty URL disables it.
func NewWebhookNotifier(url string, httpClient HTTPClient, log zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{url: url, httpClient: httpClient, log: log}
}

// Publish delivers the event to the configured webhook endpoint.
func (n *WebhookNotifier) Publish(ctx context.Context, event domain.Event) error {
	if n.url == "" {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}

	n.log.Debug().Str("type", string(event.Type)).Int("status", resp.StatusCode).Msg("webhook delivered")
	return nil
}

// FanoutNotifier implements ports.Notifier by publishing to every wrapped
// notifier. One sink failing does not stop the others.
type FanoutNotifier struct {
	sinks []ports.Notifier
}

// NewFanoutNotifier creates a fanout over the given notifiers.
func NewFanoutNotifier(sinks ...ports.Notifier) *FanoutNotifier {
	return &FanoutNotifier{sinks: sinks}
}

// Publish forwards the event to all sinks and joins any failures.
func (n *FanoutNotifier) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, sink := range n.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
