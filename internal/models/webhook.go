package models

import (
	"encoding/json"
	"time"
)

// WebhookType distinguishes inbound receivers from outbound notification targets.
type WebhookType string

const (
	WebhookInbound  WebhookType = "inbound"
	WebhookOutbound WebhookType = "outbound"
)

// WebhookConfig is an inbound or outbound webhook registration.
// Outbound configs must carry a URL; inbound configs are identified by id from
// the request header and, when Secret is set, every request must carry a valid
// HMAC-SHA256 signature over the raw body.
type WebhookConfig struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	Name            string            `json:"name"`
	Type            WebhookType       `json:"type"`
	URL             *string           `json:"url,omitempty"`
	Secret          *string           `json:"-"`
	Events          []string          `json:"events"` // empty set means "all events"
	Headers         map[string]string `json:"headers,omitempty"`
	IsActive        bool              `json:"is_active"`
	RetryCount      int               `json:"retry_count"`
	RetryDelay      int               `json:"retry_delay"` // seconds between out-of-band retries
	IPAllowlist     []string          `json:"ip_allowlist,omitempty"`
	LastTriggeredAt *time.Time        `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// DeliveryStatus is the outcome of one webhook delivery attempt.
type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliveryPending DeliveryStatus = "pending"
)

// WebhookDelivery records one outbound send or inbound receipt. Append-only.
type WebhookDelivery struct {
	ID             string          `json:"id"`
	WebhookID      *string         `json:"webhook_id,omitempty"` // nulled when the config is deleted
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	ResponseStatus *int            `json:"response_status,omitempty"`
	Status         DeliveryStatus  `json:"status"`
	DurationMs     int64           `json:"duration_ms"`
	CreatedAt      time.Time       `json:"created_at"`
}

// CreateWebhookRequest represents the request to register a webhook.
type CreateWebhookRequest struct {
	Name        string            `json:"name" binding:"required" example:"n8n intake"`
	Type        WebhookType       `json:"type" binding:"required,oneof=inbound outbound" example:"inbound"`
	URL         string            `json:"url,omitempty" example:"https://hooks.example.com/crm"`
	Events      []string          `json:"events,omitempty" example:"lead.create,lead.update"`
	Headers     map[string]string `json:"headers,omitempty"`
	RetryCount  int               `json:"retry_count,omitempty" example:"3"`
	RetryDelay  int               `json:"retry_delay,omitempty" example:"60"`
	IPAllowlist []string          `json:"ip_allowlist,omitempty"`
} // @name CreateWebhookRequest

// UpdateWebhookRequest represents a partial update to a webhook config.
type UpdateWebhookRequest struct {
	Name        *string           `json:"name,omitempty"`
	URL         *string           `json:"url,omitempty"`
	Events      []string          `json:"events,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	IsActive    *bool             `json:"is_active,omitempty"`
	RetryCount  *int              `json:"retry_count,omitempty"`
	RetryDelay  *int              `json:"retry_delay,omitempty"`
	IPAllowlist []string          `json:"ip_allowlist,omitempty"`
} // @name UpdateWebhookRequest

// WebhookResponse represents a webhook config. Secret is populated only in the
// create response; it is generated once and never shown again.
type WebhookResponse struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Type            WebhookType       `json:"type" example:"inbound"`
	URL             *string           `json:"url,omitempty"`
	Secret          string            `json:"secret,omitempty"`
	Events          []string          `json:"events"`
	Headers         map[string]string `json:"headers,omitempty"`
	IsActive        bool              `json:"is_active"`
	RetryCount      int               `json:"retry_count"`
	RetryDelay      int               `json:"retry_delay"`
	IPAllowlist     []string          `json:"ip_allowlist,omitempty"`
	LastTriggeredAt *time.Time        `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
} // @name WebhookResponse

// ListDeliveriesQuery represents query parameters for listing deliveries.
type ListDeliveriesQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=success failed pending"`
	Page   int    `form:"page" binding:"omitempty,min=1" example:"1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100" example:"20"`
} // @name ListDeliveriesQuery

// DeliveryListResponse represents the response for listing deliveries.
type DeliveryListResponse struct {
	Deliveries []WebhookDelivery `json:"deliveries"`
	Pagination Pagination        `json:"pagination"`
} // @name DeliveryListResponse
