package handlers

import (
	"errors"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/relaycrm/relaycrm/internal/api/response"
	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/webhooks"
	"go.uber.org/zap"
)

const (
	webhookIDHeader        = "x-webhook-id"
	webhookSignatureHeader = "x-webhook-signature"
)

// maxInboundBodyBytes caps how much of an inbound payload is read before the
// signature is checked.
const maxInboundBodyBytes = 1 << 20

// InboundHandler exposes the third-party webhook receiver.
type InboundHandler struct {
	logger  logging.Logger
	gateway *webhooks.Gateway
}

// NewInboundHandler creates a new inbound webhook handler.
func NewInboundHandler(logger logging.Logger, gateway *webhooks.Gateway) *InboundHandler {
	return &InboundHandler{
		logger:  logger.With(zap.String("handler", "inbound")),
		gateway: gateway,
	}
}

// Receive godoc
// @Summary Receive an inbound webhook
// @Description Authenticates a third-party payload (webhook id, IP allowlist, HMAC signature) and applies the allowlisted CRM mutation it describes
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param provider path string true "Integration name, informational only"
// @Param x-webhook-id header string true "Webhook config ID"
// @Param x-webhook-signature header string false "hex HMAC-SHA256 of the raw body, optional sha256= prefix"
// @Param payload body map[string]interface{} true "Event payload with event|type and data"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse "Malformed payload"
// @Failure 401 {object} response.ErrorResponse "Unknown webhook or bad signature"
// @Failure 403 {object} response.ErrorResponse "IP not allowed"
// @Failure 429 {object} response.ErrorResponse "Rate limit exceeded"
// @Router /api/webhooks/{provider} [post]
func (h *InboundHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInboundBodyBytes))
	if err != nil {
		response.BadRequest(c, "unreadable request body", nil)
		return
	}

	result, err := h.gateway.Process(c.Request.Context(), webhooks.InboundRequest{
		WebhookID: c.GetHeader(webhookIDHeader),
		Signature: c.GetHeader(webhookSignatureHeader),
		ClientIP:  c.ClientIP(),
		Body:      body,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	response.Success(c, 200, result.Result, result.Message)
}

// Health godoc
// @Summary Inbound endpoint health probe
// @Description Lets integrators verify the receiver is reachable before registering
// @Tags Webhooks
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/webhooks/{provider} [get]
func (h *InboundHandler) Health(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *InboundHandler) respondError(c *gin.Context, err error) {
	var reqErr *webhooks.RequestError
	switch {
	case errors.Is(err, webhooks.ErrRateLimited):
		response.TooManyRequests(c, "rate limit exceeded")
	case errors.Is(err, webhooks.ErrUnauthorized):
		response.Unauthorized(c, "unauthorized")
	case errors.Is(err, webhooks.ErrForbidden):
		response.Forbidden(c, "ip address not allowed")
	case errors.As(err, &reqErr):
		response.BadRequest(c, reqErr.Message, nil)
	default:
		h.logger.Error("inbound processing failed",
			zap.Error(err),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.InternalServerError(c, "internal server error")
	}
}
