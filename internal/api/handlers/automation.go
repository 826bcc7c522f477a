package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/relaycrm/relaycrm/internal/api/middleware"
	"github.com/relaycrm/relaycrm/internal/api/response"
	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/models"
	"go.uber.org/zap"
)

// Dispatcher is the automation entry point the execute endpoint feeds.
type Dispatcher interface {
	DispatchDetached(event models.TriggerEvent)
}

// AutomationHandler handles the internal fire-and-forget trigger endpoint.
type AutomationHandler struct {
	logger     logging.Logger
	dispatcher Dispatcher
}

// NewAutomationHandler creates a new automation handler.
func NewAutomationHandler(logger logging.Logger, dispatcher Dispatcher) *AutomationHandler {
	return &AutomationHandler{
		logger:     logger.With(zap.String("handler", "automation")),
		dispatcher: dispatcher,
	}
}

// Execute godoc
// @Summary Fire a trigger event
// @Description Accepts a trigger event from a CRM mutation hook and dispatches it to matching rules in the background. The response never reflects rule outcomes.
// @Tags Automation
// @Accept json
// @Produce json
// @Param event body models.ExecuteRequest true "Trigger event"
// @Success 202 {object} response.SuccessResponse "Event accepted for dispatch"
// @Failure 400 {object} response.ErrorResponse "Invalid request"
// @Router /api/automation/execute [post]
func (h *AutomationHandler) Execute(c *gin.Context) {
	var req models.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid execute request",
			zap.Error(err),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = middleware.TenantID(c)
	}
	if userID == "" {
		response.BadRequest(c, "userId is required", nil)
		return
	}

	h.dispatcher.DispatchDetached(models.TriggerEvent{
		Type:   req.TriggerType,
		Source: models.SourceCRM,
		UserID: userID,
		Data:   req.TriggerData,
	})

	h.logger.Debug("trigger event accepted",
		zap.String("trigger_type", string(req.TriggerType)),
		zap.String("request_id", response.GetRequestID(c)),
	)

	response.Accepted(c, "event accepted for dispatch")
}
