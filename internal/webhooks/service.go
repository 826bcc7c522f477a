package webhooks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/relaycrm/relaycrm/internal/storage"
)

// ErrNotFound is surfaced to handlers when a webhook config does not exist or
// belongs to another tenant.
var ErrNotFound = storage.ErrWebhookNotFound

// ConfigError is a 400-class failure in a webhook registration request.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

func newConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// ServiceStore provides the full webhook config storage surface.
type ServiceStore interface {
	CreateWebhookConfig(ctx context.Context, cfg *models.WebhookConfig) error
	GetWebhookConfig(ctx context.Context, webhookID string) (*models.WebhookConfig, error)
	ListWebhookConfigs(ctx context.Context, userID string) ([]models.WebhookConfig, error)
	UpdateWebhookConfig(ctx context.Context, webhookID string, updates map[string]interface{}) error
	DeleteWebhookConfig(ctx context.Context, webhookID string) error
	ListDeliveries(ctx context.Context, webhookID string, query models.ListDeliveriesQuery) ([]models.WebhookDelivery, int64, error)
}

// Service manages webhook registrations. The HMAC secret is generated here at
// creation and returned exactly once; it is never readable afterwards.
type Service struct {
	store ServiceStore
}

// NewConfigService creates a webhook config service.
func NewConfigService(store ServiceStore) *Service {
	return &Service{store: store}
}

// CreateWebhook registers a webhook and returns it with the generated secret.
func (s *Service) CreateWebhook(ctx context.Context, userID string, req models.CreateWebhookRequest) (*models.WebhookResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, newConfigError("name is required")
	}
	if req.Type == models.WebhookOutbound && strings.TrimSpace(req.URL) == "" {
		return nil, newConfigError("url is required for outbound webhooks")
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	cfg := models.WebhookConfig{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        req.Name,
		Type:        req.Type,
		Secret:      &secret,
		Events:      req.Events,
		Headers:     req.Headers,
		IsActive:    true,
		RetryCount:  req.RetryCount,
		RetryDelay:  req.RetryDelay,
		IPAllowlist: req.IPAllowlist,
	}
	if req.Type == models.WebhookOutbound {
		url := strings.TrimSpace(req.URL)
		cfg.URL = &url
	}

	if err := s.store.CreateWebhookConfig(ctx, &cfg); err != nil {
		return nil, err
	}

	resp := buildWebhookResponse(&cfg)
	resp.Secret = secret
	return &resp, nil
}

// GetWebhook fetches a config scoped to its owner. The secret is never
// included.
func (s *Service) GetWebhook(ctx context.Context, userID, webhookID string) (*models.WebhookResponse, error) {
	cfg, err := s.ownedConfig(ctx, userID, webhookID)
	if err != nil {
		return nil, err
	}
	resp := buildWebhookResponse(cfg)
	return &resp, nil
}

// ListWebhooks returns the tenant's webhook registrations.
func (s *Service) ListWebhooks(ctx context.Context, userID string) ([]models.WebhookResponse, error) {
	configs, err := s.store.ListWebhookConfigs(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]models.WebhookResponse, 0, len(configs))
	for i := range configs {
		responses = append(responses, buildWebhookResponse(&configs[i]))
	}
	return responses, nil
}

// UpdateWebhook applies a partial update. The secret cannot be changed.
func (s *Service) UpdateWebhook(ctx context.Context, userID, webhookID string, req models.UpdateWebhookRequest) (*models.WebhookResponse, error) {
	current, err := s.ownedConfig(ctx, userID, webhookID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, newConfigError("name cannot be empty")
		}
		updates["name"] = name
	}
	if req.URL != nil {
		url := strings.TrimSpace(*req.URL)
		if current.Type == models.WebhookOutbound && url == "" {
			return nil, newConfigError("url is required for outbound webhooks")
		}
		updates["url"] = url
	}
	if req.Events != nil {
		updates["events"] = marshalJSONField(req.Events)
	}
	if req.Headers != nil {
		updates["headers"] = marshalJSONField(req.Headers)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.RetryCount != nil {
		updates["retry_count"] = *req.RetryCount
	}
	if req.RetryDelay != nil {
		updates["retry_delay"] = *req.RetryDelay
	}
	if req.IPAllowlist != nil {
		updates["ip_allowlist"] = marshalJSONField(req.IPAllowlist)
	}

	if len(updates) > 0 {
		if err := s.store.UpdateWebhookConfig(ctx, webhookID, updates); err != nil {
			return nil, err
		}
	}

	refreshed, err := s.store.GetWebhookConfig(ctx, webhookID)
	if err != nil {
		return nil, err
	}
	resp := buildWebhookResponse(refreshed)
	return &resp, nil
}

// DeleteWebhook removes a config; delivery history survives with a nulled
// webhook reference.
func (s *Service) DeleteWebhook(ctx context.Context, userID, webhookID string) error {
	if _, err := s.ownedConfig(ctx, userID, webhookID); err != nil {
		return err
	}
	return s.store.DeleteWebhookConfig(ctx, webhookID)
}

// ListDeliveries returns paginated delivery history for a webhook.
func (s *Service) ListDeliveries(ctx context.Context, userID, webhookID string, query models.ListDeliveriesQuery) (models.DeliveryListResponse, error) {
	if _, err := s.ownedConfig(ctx, userID, webhookID); err != nil {
		return models.DeliveryListResponse{}, err
	}

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}

	deliveries, total, err := s.store.ListDeliveries(ctx, webhookID, query)
	if err != nil {
		return models.DeliveryListResponse{}, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(query.Limit) - 1) / int64(query.Limit))
	}
	return models.DeliveryListResponse{
		Deliveries: deliveries,
		Pagination: models.Pagination{
			CurrentPage:  query.Page,
			PageSize:     query.Limit,
			TotalPages:   totalPages,
			TotalRecords: total,
		},
	}, nil
}

// IsNotFound reports whether the error is the webhook-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func (s *Service) ownedConfig(ctx context.Context, userID, webhookID string) (*models.WebhookConfig, error) {
	cfg, err := s.store.GetWebhookConfig(ctx, webhookID)
	if err != nil {
		return nil, err
	}
	if cfg.UserID != userID {
		return nil, ErrNotFound
	}
	return cfg, nil
}

func buildWebhookResponse(cfg *models.WebhookConfig) models.WebhookResponse {
	return models.WebhookResponse{
		ID:              cfg.ID,
		Name:            cfg.Name,
		Type:            cfg.Type,
		URL:             cfg.URL,
		Events:          cfg.Events,
		Headers:         cfg.Headers,
		IsActive:        cfg.IsActive,
		RetryCount:      cfg.RetryCount,
		RetryDelay:      cfg.RetryDelay,
		IPAllowlist:     cfg.IPAllowlist,
		LastTriggeredAt: cfg.LastTriggeredAt,
		CreatedAt:       cfg.CreatedAt,
		UpdatedAt:       cfg.UpdatedAt,
	}
}

// marshalJSONField serializes a slice/map column value, matching the storage
// layer's JSON-in-TEXT convention.
func marshalJSONField(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// generateSecret produces a 256-bit random hex key for HMAC signing.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
