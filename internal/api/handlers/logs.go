package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/relaycrm/relaycrm/internal/api/middleware"
	"github.com/relaycrm/relaycrm/internal/api/response"
	"github.com/relaycrm/relaycrm/internal/automation"
	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/models"
	"go.uber.org/zap"
)

// LogHandler handles automation audit log queries.
type LogHandler struct {
	logger  logging.Logger
	service *automation.Service
}

// NewLogHandler creates a new log handler.
func NewLogHandler(logger logging.Logger, service *automation.Service) *LogHandler {
	return &LogHandler{
		logger:  logger.With(zap.String("handler", "log")),
		service: service,
	}
}

// ListLogs godoc
// @Summary List automation logs
// @Description Retrieves automation execution history with filtering and pagination, newest first
// @Tags Logs
// @Produce json
// @Param rule_id query string false "Filter by rule ID"
// @Param business_id query string false "Filter by lead ID"
// @Param status query string false "Filter by status" Enums(pending, running, success, failed, skipped)
// @Param page query int false "Page number" default(1) minimum(1)
// @Param limit query int false "Items per page" default(20) minimum(1) maximum(100)
// @Success 200 {object} models.LogListResponse
// @Failure 400 {object} response.ErrorResponse "Invalid query parameters"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/automation/logs [get]
func (h *LogHandler) ListLogs(c *gin.Context) {
	var query models.ListLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.logger.Warn("invalid list logs query",
			zap.Error(err),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.BadRequest(c, "invalid query parameters", err.Error())
		return
	}

	result, err := h.service.QueryLogs(c.Request.Context(), middleware.TenantID(c), query)
	if err != nil {
		h.logger.Error("list logs failed",
			zap.Error(err),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.InternalServerError(c, "internal server error")
		return
	}

	response.OK(c, result)
}

// GetLog godoc
// @Summary Get automation log details
// @Description Retrieves one automation log entry including the trigger data snapshot and action result
// @Tags Logs
// @Produce json
// @Param id path string true "Log ID"
// @Success 200 {object} models.AutomationLogResponse
// @Failure 404 {object} response.ErrorResponse "Log not found"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/automation/logs/{id} [get]
func (h *LogHandler) GetLog(c *gin.Context) {
	logID := c.Param("id")

	entry, err := h.service.GetLog(c.Request.Context(), middleware.TenantID(c), logID)
	if err != nil {
		h.logger.Error("get log failed",
			zap.Error(err),
			zap.String("log_id", logID),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.InternalServerError(c, "internal server error")
		return
	}
	if entry == nil {
		response.NotFound(c, "log not found")
		return
	}

	response.OK(c, models.AutomationLogResponse{
		ID:           entry.ID,
		RuleID:       entry.RuleID,
		BusinessID:   entry.BusinessID,
		Status:       entry.Status,
		TriggerData:  entry.TriggerData,
		ActionResult: entry.ActionResult,
		ErrorMessage: entry.ErrorMessage,
		StartedAt:    entry.StartedAt,
		CompletedAt:  entry.CompletedAt,
	})
}
