package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/metrics"
	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/relaycrm/relaycrm/pkg/clock"
	"go.uber.org/zap"
)

// deliveryTimeout bounds one outbound POST; a hung endpoint becomes a failed
// delivery, not a stuck worker.
const deliveryTimeout = 10 * time.Second

// SenderStore provides the config and delivery operations the sender needs.
type SenderStore interface {
	GetWebhookConfig(ctx context.Context, webhookID string) (*models.WebhookConfig, error)
	TouchWebhookTriggered(ctx context.Context, webhookID string) error
	CreateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
}

// Sender performs signed outbound webhook deliveries. Every attempt — success,
// non-2xx, or network failure — leaves exactly one delivery row. Failed
// deliveries are never retried inline; retry_count/retry_delay on the config
// belong to the out-of-band retry sweep.
type Sender struct {
	store  SenderStore
	client *http.Client
	clock  clock.Clock
	logger logging.Logger
}

// NewSender creates an outbound delivery sender.
func NewSender(store SenderStore, clk clock.Clock, logger logging.Logger) *Sender {
	return &Sender{
		store:  store,
		client: &http.Client{Timeout: deliveryTimeout},
		clock:  clk,
		logger: logger.With(zap.String("component", "webhook_sender")),
	}
}

// Notify delivers an event payload to the webhook config's URL. A non-2xx
// response or transport error returns an error after the failed delivery is
// recorded.
func (s *Sender) Notify(ctx context.Context, userID, webhookID, eventType string, payload map[string]interface{}) error {
	config, err := s.store.GetWebhookConfig(ctx, webhookID)
	if err != nil {
		return fmt.Errorf("load webhook config: %w", err)
	}
	if config.UserID != userID {
		return fmt.Errorf("webhook %s does not belong to tenant", webhookID)
	}
	if !config.IsActive {
		return fmt.Errorf("webhook %s is inactive", webhookID)
	}
	if config.Type != models.WebhookOutbound || config.URL == nil {
		return fmt.Errorf("webhook %s is not an outbound config", webhookID)
	}
	if len(config.Events) > 0 && !contains(config.Events, eventType) {
		s.logger.Debug("webhook not subscribed to event, skipping",
			zap.String("webhook_id", webhookID),
			zap.String("event_type", eventType),
		)
		return nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"event":     eventType,
		"data":      payload,
		"timestamp": s.clock.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	start := s.clock.Now()
	responseStatus, sendErr := s.post(ctx, config, body)
	durationMs := s.clock.Now().Sub(start).Milliseconds()

	status := models.DeliverySuccess
	if sendErr != nil {
		status = models.DeliveryFailed
	}
	metrics.DeliveryDuration.WithLabelValues(string(status)).Observe(float64(durationMs) / 1000)

	delivery := &models.WebhookDelivery{
		ID:         uuid.New().String(),
		WebhookID:  &config.ID,
		EventType:  eventType,
		Payload:    body,
		Status:     status,
		DurationMs: durationMs,
	}
	if responseStatus != 0 {
		delivery.ResponseStatus = &responseStatus
	}
	if err := s.store.CreateDelivery(ctx, delivery); err != nil {
		s.logger.Error("failed to record outbound delivery",
			zap.String("webhook_id", config.ID),
			zap.Error(err),
		)
	}
	if err := s.store.TouchWebhookTriggered(ctx, config.ID); err != nil {
		s.logger.Warn("failed to touch webhook config",
			zap.String("webhook_id", config.ID),
			zap.Error(err),
		)
	}

	if sendErr != nil {
		s.logger.Warn("outbound delivery failed",
			zap.String("webhook_id", config.ID),
			zap.String("event_type", eventType),
			zap.Error(sendErr),
		)
		return sendErr
	}

	s.logger.Info("outbound delivery succeeded",
		zap.String("webhook_id", config.ID),
		zap.String("event_type", eventType),
		zap.Int("response_status", responseStatus),
	)
	return nil
}

// post sends the signed request and returns the response status, or 0 when the
// request never produced a response.
func (s *Sender) post(ctx context.Context, config *models.WebhookConfig, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *config.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for name, value := range config.Headers {
		req.Header.Set(name, value)
	}
	if config.Secret != nil && *config.Secret != "" {
		req.Header.Set("X-Webhook-Signature", signaturePrefix+Sign(body, *config.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
