package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/relaycrm/relaycrm/internal/api/middleware"
	"github.com/relaycrm/relaycrm/internal/api/response"
	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/relaycrm/relaycrm/internal/webhooks"
	"go.uber.org/zap"
)

// WebhookHandler handles webhook config management requests.
type WebhookHandler struct {
	logger  logging.Logger
	service *webhooks.Service
}

// NewWebhookHandler creates a new webhook config handler.
func NewWebhookHandler(logger logging.Logger, service *webhooks.Service) *WebhookHandler {
	return &WebhookHandler{
		logger:  logger.With(zap.String("handler", "webhook")),
		service: service,
	}
}

// CreateWebhook godoc
// @Summary Register a webhook
// @Description Registers an inbound receiver or outbound notification target. The HMAC secret is returned once in this response and never again.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param webhook body models.CreateWebhookRequest true "Webhook configuration"
// @Success 201 {object} models.WebhookResponse
// @Failure 400 {object} response.ErrorResponse "Invalid request"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/webhooks [post]
func (h *WebhookHandler) CreateWebhook(c *gin.Context) {
	var req models.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create webhook request",
			zap.Error(err),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	result, err := h.service.CreateWebhook(c.Request.Context(), middleware.TenantID(c), req)
	if h.handleServiceError(c, err, "create webhook") {
		return
	}

	h.logger.Info("webhook registered",
		zap.String("webhook_id", result.ID),
		zap.String("type", string(result.Type)),
		zap.String("request_id", response.GetRequestID(c)),
	)

	response.Created(c, result, "webhook created; store the secret now, it will not be shown again")
}

// ListWebhooks godoc
// @Summary List webhooks
// @Description Retrieves the tenant's webhook registrations
// @Tags Webhooks
// @Produce json
// @Success 200 {array} models.WebhookResponse
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/webhooks [get]
func (h *WebhookHandler) ListWebhooks(c *gin.Context) {
	result, err := h.service.ListWebhooks(c.Request.Context(), middleware.TenantID(c))
	if h.handleServiceError(c, err, "list webhooks") {
		return
	}
	response.Success(c, http.StatusOK, result, "")
}

// GetWebhook godoc
// @Summary Get webhook details
// @Description Retrieves a webhook config by ID. The secret is never included.
// @Tags Webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 200 {object} models.WebhookResponse
// @Failure 404 {object} response.ErrorResponse "Webhook not found"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/webhooks/{id} [get]
func (h *WebhookHandler) GetWebhook(c *gin.Context) {
	result, err := h.service.GetWebhook(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if h.handleServiceError(c, err, "get webhook") {
		return
	}
	response.OK(c, result)
}

// UpdateWebhook godoc
// @Summary Update a webhook
// @Description Applies a partial update to a webhook config. The secret cannot be changed.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param id path string true "Webhook ID"
// @Param webhook body models.UpdateWebhookRequest true "Updated webhook data"
// @Success 200 {object} models.WebhookResponse
// @Failure 400 {object} response.ErrorResponse "Invalid request"
// @Failure 404 {object} response.ErrorResponse "Webhook not found"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/webhooks/{id} [put]
func (h *WebhookHandler) UpdateWebhook(c *gin.Context) {
	webhookID := c.Param("id")

	var req models.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update webhook request",
			zap.Error(err),
			zap.String("webhook_id", webhookID),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	result, err := h.service.UpdateWebhook(c.Request.Context(), middleware.TenantID(c), webhookID, req)
	if h.handleServiceError(c, err, "update webhook") {
		return
	}
	response.OK(c, result)
}

// DeleteWebhook godoc
// @Summary Delete a webhook
// @Description Deletes a webhook config. Delivery history is kept with its webhook reference nulled.
// @Tags Webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Success 204 "Webhook deleted successfully"
// @Failure 404 {object} response.ErrorResponse "Webhook not found"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/webhooks/{id} [delete]
func (h *WebhookHandler) DeleteWebhook(c *gin.Context) {
	if h.handleServiceError(c, h.service.DeleteWebhook(c.Request.Context(), middleware.TenantID(c), c.Param("id")), "delete webhook") {
		return
	}
	response.NoContent(c)
}

// ListDeliveries godoc
// @Summary List webhook deliveries
// @Description Retrieves a webhook's delivery history, newest first
// @Tags Webhooks
// @Produce json
// @Param id path string true "Webhook ID"
// @Param status query string false "Filter by delivery status" Enums(success, failed, pending)
// @Param page query int false "Page number" default(1) minimum(1)
// @Param limit query int false "Items per page" default(20) minimum(1) maximum(100)
// @Success 200 {object} models.DeliveryListResponse
// @Failure 404 {object} response.ErrorResponse "Webhook not found"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/webhooks/{id}/deliveries [get]
func (h *WebhookHandler) ListDeliveries(c *gin.Context) {
	var query models.ListDeliveriesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "invalid query parameters", err.Error())
		return
	}

	result, err := h.service.ListDeliveries(c.Request.Context(), middleware.TenantID(c), c.Param("id"), query)
	if h.handleServiceError(c, err, "list deliveries") {
		return
	}
	response.OK(c, result)
}

func (h *WebhookHandler) handleServiceError(c *gin.Context, err error, operation string) bool {
	if err == nil {
		return false
	}

	var configErr *webhooks.ConfigError
	switch {
	case errors.As(err, &configErr):
		response.BadRequest(c, "validation failed", configErr.Message)
	case webhooks.IsNotFound(err):
		response.NotFound(c, "webhook not found")
	default:
		h.logger.Error(operation+" failed",
			zap.Error(err),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.InternalServerError(c, "internal server error")
	}
	return true
}
