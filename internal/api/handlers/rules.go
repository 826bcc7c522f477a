package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/relaycrm/relaycrm/internal/api/middleware"
	"github.com/relaycrm/relaycrm/internal/api/response"
	"github.com/relaycrm/relaycrm/internal/automation"
	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/models"
	"go.uber.org/zap"
)

// RuleHandler handles automation rule management requests.
type RuleHandler struct {
	logger  logging.Logger
	service *automation.Service
}

// NewRuleHandler creates a new rule handler.
func NewRuleHandler(logger logging.Logger, service *automation.Service) *RuleHandler {
	return &RuleHandler{
		logger:  logger.With(zap.String("handler", "rule")),
		service: service,
	}
}

// CreateRule godoc
// @Summary Create an automation rule
// @Description Creates a rule with trigger and action configuration. Configs are validated against the shapes their types require.
// @Tags Rules
// @Accept json
// @Produce json
// @Param rule body models.CreateRuleRequest true "Rule configuration"
// @Success 201 {object} models.RuleResponse
// @Failure 400 {object} response.ErrorResponse "Invalid request"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/rules [post]
func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req models.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create rule request",
			zap.Error(err),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	result, err := h.service.CreateRule(c.Request.Context(), middleware.TenantID(c), req)
	if h.handleServiceError(c, err, "create rule") {
		return
	}

	h.logger.Info("rule created",
		zap.String("rule_id", result.ID),
		zap.String("trigger_type", string(result.TriggerType)),
		zap.String("action_type", string(result.ActionType)),
		zap.String("request_id", response.GetRequestID(c)),
	)

	response.Created(c, result, "rule created successfully")
}

// ListRules godoc
// @Summary List automation rules
// @Description Retrieves the tenant's rules with optional filtering and pagination
// @Tags Rules
// @Produce json
// @Param trigger_type query string false "Filter by trigger type"
// @Param action_type query string false "Filter by action type"
// @Param active query string false "Filter by active flag" Enums(true, false)
// @Param page query int false "Page number" default(1) minimum(1)
// @Param limit query int false "Items per page" default(20) minimum(1) maximum(100)
// @Success 200 {object} models.RuleListResponse
// @Failure 400 {object} response.ErrorResponse "Invalid query parameters"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/rules [get]
func (h *RuleHandler) ListRules(c *gin.Context) {
	var query models.ListRulesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.logger.Warn("invalid list rules query",
			zap.Error(err),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.BadRequest(c, "invalid query parameters", err.Error())
		return
	}

	result, err := h.service.ListRules(c.Request.Context(), middleware.TenantID(c), query)
	if h.handleServiceError(c, err, "list rules") {
		return
	}

	response.Success(c, http.StatusOK, result, "")
}

// GetRule godoc
// @Summary Get rule details
// @Description Retrieves a specific automation rule by ID
// @Tags Rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 200 {object} models.RuleResponse
// @Failure 404 {object} response.ErrorResponse "Rule not found"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/rules/{id} [get]
func (h *RuleHandler) GetRule(c *gin.Context) {
	result, err := h.service.GetRule(c.Request.Context(), middleware.TenantID(c), c.Param("id"))
	if h.handleServiceError(c, err, "get rule") {
		return
	}
	response.OK(c, result)
}

// UpdateRule godoc
// @Summary Update a rule
// @Description Applies a partial update. Config changes are re-validated against the rule's trigger/action types.
// @Tags Rules
// @Accept json
// @Produce json
// @Param id path string true "Rule ID"
// @Param rule body models.UpdateRuleRequest true "Updated rule data"
// @Success 200 {object} models.RuleResponse
// @Failure 400 {object} response.ErrorResponse "Invalid request"
// @Failure 404 {object} response.ErrorResponse "Rule not found"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/rules/{id} [put]
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	ruleID := c.Param("id")

	var req models.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update rule request",
			zap.Error(err),
			zap.String("rule_id", ruleID),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	result, err := h.service.UpdateRule(c.Request.Context(), middleware.TenantID(c), ruleID, req)
	if h.handleServiceError(c, err, "update rule") {
		return
	}
	response.OK(c, result)
}

// DeleteRule godoc
// @Summary Delete a rule
// @Description Deletes a rule. Automation logs and scheduled tasks are kept with their rule reference nulled.
// @Tags Rules
// @Produce json
// @Param id path string true "Rule ID"
// @Success 204 "Rule deleted successfully"
// @Failure 404 {object} response.ErrorResponse "Rule not found"
// @Failure 500 {object} response.ErrorResponse "Internal server error"
// @Router /api/v1/rules/{id} [delete]
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	if h.handleServiceError(c, h.service.DeleteRule(c.Request.Context(), middleware.TenantID(c), c.Param("id")), "delete rule") {
		return
	}
	response.NoContent(c)
}

func (h *RuleHandler) handleServiceError(c *gin.Context, err error, operation string) bool {
	if err == nil {
		return false
	}

	var validationErr automation.ValidationError
	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(c, "validation failed", validationErr.Error())
	case automation.IsNotFound(err):
		response.NotFound(c, "rule not found")
	default:
		h.logger.Error(operation+" failed",
			zap.Error(err),
			zap.String("request_id", response.GetRequestID(c)),
		)
		response.InternalServerError(c, "internal server error")
	}
	return true
}
