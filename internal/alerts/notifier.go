package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Sink delivers an alert event out of band. Delivery is best-effort: the
// orchestrator logs and swallows ErrDeliveryFailed.
type Sink interface {
	Notify(ctx context.Context, event Event) error
}

// NATSSink publishes alert events to a subscriber topic.
type NATSSink struct {
	nc      *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSSink creates a sink publishing to the given subject.
func NewNATSSink(nc *nats.Conn, subject string, logger zerolog.Logger) *NATSSink {
	return &NATSSink{
		nc:      nc,
		subject: subject,
		logger:  logger.With().Str("component", "nats-sink").Logger(),
	}
}

// Notify publishes the event as JSON. The payload carries the rendered
// message alongside the event fields so plain subscribers need no formatting.
func (s *NATSSink) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(struct {
		Event
		Message string `json:"message"`
	}{Event: event, Message: event.Message()})
	if err != nil {
		return fmt.Errorf("%w: marshal event: %v", ErrDeliveryFailed, err)
	}

	if err := s.nc.Publish(s.subject, payload); err != nil {
		return fmt.Errorf("%w: publish to %s: %v", ErrDeliveryFailed, s.subject, err)
	}

	s.logger.Debug().
		Str("subject", s.subject).
		Str("asset", event.Asset).
		Msg("alert published")
	return nil
}

// WebhookSink posts alert events to configured webhook URLs using a
// Discord-style embed payload.
type WebhookSink struct {
	httpClient  *http.Client
	webhookURLs []string
	logger      zerolog.Logger
}

// NewWebhookSink creates a webhook sink. With no URLs configured the sink is
// inert and Notify always succeeds.
func NewWebhookSink(webhookURLs []string, logger zerolog.Logger) *WebhookSink {
	return &WebhookSink{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		webhookURLs: webhookURLs,
		logger:      logger.With().Str("component", "webhook-sink").Logger(),
	}
}

// Notify sends the event to every configured webhook. Individual failures are
// logged and delivery continues; ErrDeliveryFailed is returned only when no
// webhook accepted the event.
func (s *WebhookSink) Notify(ctx context.Context, event Event) error {
	if len(s.webhookURLs) == 0 {
		return nil
	}

	delivered := 0
	for _, webhookURL := range s.webhookURLs {
		if err := s.send(ctx, webhookURL, event); err != nil {
			s.logger.Error().
				Err(err).
				Str("webhook", webhookURL).
				Str("asset", event.Asset).
				Msg("failed to send webhook")
			continue
		}
		delivered++

		s.logger.Debug().
			Str("webhook", webhookURL).
			Str("asset", event.Asset).
			Msg("webhook sent")
	}

	if delivered == 0 {
		return fmt.Errorf("%w: all %d webhooks failed", ErrDeliveryFailed, len(s.webhookURLs))
	}
	return nil
}

func (s *WebhookSink) send(ctx context.Context, webhookURL string, event Event) error {
	payloadBytes, err := json.Marshal(s.formatPayload(event))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// formatPayload builds a Discord embed (also accepted by many Telegram bots).
func (s *WebhookSink) formatPayload(event Event) map[string]interface{} {
	fields := []map[string]interface{}{
		{
			"name":   "Price",
			"value":  fmt.Sprintf("$%.2f", event.Price),
			"inline": true,
		},
		{
			"name":   "Threshold",
			"value":  fmt.Sprintf("$%.2f", event.Threshold),
			"inline": true,
		},
		{
			"name":   "Time",
			"value":  event.Timestamp.UTC().Format("15:04:05 UTC"),
			"inline": true,
		},
	}

	return map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("📉 %s below threshold", event.Asset),
				"description": event.Message(),
				"color":       0xFF0000,
				"fields":      fields,
				"timestamp":   event.Timestamp.Format(time.RFC3339),
				"footer": map[string]interface{}{
					"text": "Crypto Dashboard Alert",
				},
			},
		},
	}
}

// MultiSink fans one event out to several sinks.
type MultiSink []Sink

// Notify dispatches to every sink and reports the last failure, if any.
func (m MultiSink) Notify(ctx context.Context, event Event) error {
	var lastErr error
	for _, sink := range m {
		if err := sink.Notify(ctx, event); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
