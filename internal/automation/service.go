package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/relaycrm/relaycrm/internal/storage"
)

// AuditStore provides read access to the automation audit trail. Both reads
// are scoped to the owning tenant at the query level.
type AuditStore interface {
	ListAutomationLogs(ctx context.Context, userID string, query models.ListLogsQuery) ([]models.AutomationLog, int64, error)
	GetAutomationLog(ctx context.Context, userID, logID string) (*models.AutomationLog, error)
}

// Service encapsulates automation rule business logic: CRUD with write-time
// config validation, plus audit log queries.
type Service struct {
	rules RuleStore
	audit AuditStore
}

// NewService creates a rule service.
func NewService(rules RuleStore, audit AuditStore) *Service {
	return &Service{rules: rules, audit: audit}
}

// CreateRule validates the trigger/action config shapes and persists the rule.
// Configs are checked here, not by the storage schema, so malformed rules are
// rejected before they can ever reach evaluation.
func (s *Service) CreateRule(ctx context.Context, userID string, req models.CreateRuleRequest) (*models.RuleResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, NewValidationError("name is required")
	}

	if err := ValidateTriggerConfig(req.TriggerType, req.TriggerConfig); err != nil {
		return nil, err
	}
	if err := ValidateActionConfig(req.ActionType, req.ActionConfig); err != nil {
		return nil, err
	}

	rule := models.AutomationRule{
		ID:            uuid.New().String(),
		UserID:        userID,
		Name:          req.Name,
		Description:   req.Description,
		TriggerType:   req.TriggerType,
		TriggerConfig: req.TriggerConfig,
		ActionType:    req.ActionType,
		ActionConfig:  req.ActionConfig,
		IsActive:      true,
		Priority:      req.Priority,
	}

	if err := s.rules.CreateRule(ctx, &rule); err != nil {
		return nil, err
	}

	stored, err := s.rules.GetRule(ctx, rule.ID)
	if err != nil {
		return nil, err
	}

	resp := buildRuleResponse(stored)
	return &resp, nil
}

// GetRule fetches a rule scoped to its owner.
func (s *Service) GetRule(ctx context.Context, userID, ruleID string) (*models.RuleResponse, error) {
	rule, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if rule.UserID != userID {
		return nil, storage.ErrRuleNotFound
	}

	resp := buildRuleResponse(rule)
	return &resp, nil
}

// ListRules returns the tenant's rules with pagination metadata.
func (s *Service) ListRules(ctx context.Context, userID string, query models.ListRulesQuery) (models.RuleListResponse, error) {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}

	rules, total, err := s.rules.ListRules(ctx, userID, query)
	if err != nil {
		return models.RuleListResponse{}, err
	}

	responses := make([]models.RuleResponse, 0, len(rules))
	for i := range rules {
		responses = append(responses, buildRuleResponse(&rules[i]))
	}

	return models.RuleListResponse{
		Rules:      responses,
		Pagination: buildPagination(query.Page, query.Limit, total),
	}, nil
}

// UpdateRule applies a partial update, re-validating any config change
// against the rule's existing trigger/action type.
func (s *Service) UpdateRule(ctx context.Context, userID, ruleID string, req models.UpdateRuleRequest) (*models.RuleResponse, error) {
	current, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if current.UserID != userID {
		return nil, storage.ErrRuleNotFound
	}

	updates := make(map[string]interface{})

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, NewValidationError("name cannot be empty")
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if len(req.TriggerConfig) > 0 {
		if err := ValidateTriggerConfig(current.TriggerType, req.TriggerConfig); err != nil {
			return nil, err
		}
		updates["trigger_config"] = string(req.TriggerConfig)
	}
	if len(req.ActionConfig) > 0 {
		if err := ValidateActionConfig(current.ActionType, req.ActionConfig); err != nil {
			return nil, err
		}
		updates["action_config"] = string(req.ActionConfig)
	}

	if len(updates) > 0 {
		if err := s.rules.UpdateRule(ctx, ruleID, updates); err != nil {
			return nil, err
		}
	}

	refreshed, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	resp := buildRuleResponse(refreshed)
	return &resp, nil
}

// DeleteRule removes the rule; its audit history survives with a nulled
// rule reference.
func (s *Service) DeleteRule(ctx context.Context, userID, ruleID string) error {
	current, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return err
	}
	if current.UserID != userID {
		return storage.ErrRuleNotFound
	}
	return s.rules.DeleteRule(ctx, ruleID)
}

// QueryLogs retrieves the tenant's automation log entries with pagination.
func (s *Service) QueryLogs(ctx context.Context, userID string, query models.ListLogsQuery) (models.LogListResponse, error) {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}

	logs, total, err := s.audit.ListAutomationLogs(ctx, userID, query)
	if err != nil {
		return models.LogListResponse{}, fmt.Errorf("query automation logs: %w", err)
	}

	responses := make([]models.AutomationLogResponse, 0, len(logs))
	for _, log := range logs {
		responses = append(responses, models.AutomationLogResponse{
			ID:           log.ID,
			RuleID:       log.RuleID,
			BusinessID:   log.BusinessID,
			Status:       log.Status,
			TriggerData:  log.TriggerData,
			ActionResult: log.ActionResult,
			ErrorMessage: log.ErrorMessage,
			StartedAt:    log.StartedAt,
			CompletedAt:  log.CompletedAt,
		})
	}

	return models.LogListResponse{
		Logs:       responses,
		Pagination: buildPagination(query.Page, query.Limit, total),
	}, nil
}

// GetLog retrieves a single automation log entry owned by the tenant, or nil
// when absent.
func (s *Service) GetLog(ctx context.Context, userID, logID string) (*models.AutomationLog, error) {
	return s.audit.GetAutomationLog(ctx, userID, logID)
}

// IsNotFound reports whether the error is the rule-not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrRuleNotFound)
}

func buildRuleResponse(rule *models.AutomationRule) models.RuleResponse {
	return models.RuleResponse{
		ID:              rule.ID,
		Name:            rule.Name,
		Description:     rule.Description,
		TriggerType:     rule.TriggerType,
		TriggerConfig:   rule.TriggerConfig,
		ActionType:      rule.ActionType,
		ActionConfig:    rule.ActionConfig,
		IsActive:        rule.IsActive,
		Priority:        rule.Priority,
		TriggerCount:    rule.TriggerCount,
		LastTriggeredAt: rule.LastTriggeredAt,
		CreatedAt:       rule.CreatedAt,
		UpdatedAt:       rule.UpdatedAt,
	}
}

func buildPagination(page, limit int, total int64) models.Pagination {
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return models.Pagination{
		CurrentPage:  page,
		PageSize:     limit,
		TotalPages:   totalPages,
		TotalRecords: total,
	}
}
