package models

import (
	"encoding/json"
	"time"
)

// TriggerType classifies the CRM event a rule reacts to.
type TriggerType string

const (
	TriggerLeadCreated    TriggerType = "lead_created"
	TriggerLeadUpdated    TriggerType = "lead_updated"
	TriggerStatusChanged  TriggerType = "status_changed"
	TriggerScoreThreshold TriggerType = "score_threshold"
	TriggerInactivity     TriggerType = "inactivity"
	TriggerDateBased      TriggerType = "date_based"
	TriggerFormSubmission TriggerType = "form_submission"
)

// ActionType identifies the side effect a rule performs when it matches.
type ActionType string

const (
	ActionSendEmail     ActionType = "send_email"
	ActionCreateTask    ActionType = "create_task"
	ActionAssignUser    ActionType = "assign_user"
	ActionUpdateStatus  ActionType = "update_status"
	ActionUpdateScore   ActionType = "update_score"
	ActionAddToCampaign ActionType = "add_to_campaign"
	ActionSendWebhook   ActionType = "send_webhook"
	ActionAddTag        ActionType = "add_tag"
)

// AutomationRule is a user-authored trigger/condition/action policy.
// TriggerConfig and ActionConfig shapes are keyed by TriggerType/ActionType
// and validated at creation time; the storage schema treats them as opaque JSON.
type AutomationRule struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	TriggerType     TriggerType     `json:"trigger_type"`
	TriggerConfig   json.RawMessage `json:"trigger_config,omitempty"`
	ActionType      ActionType      `json:"action_type"`
	ActionConfig    json.RawMessage `json:"action_config"`
	IsActive        bool            `json:"is_active"`
	Priority        int             `json:"priority"`
	TriggerCount    int64           `json:"trigger_count"`
	LastTriggeredAt *time.Time      `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ThresholdDirection is the crossing direction for score_threshold triggers.
type ThresholdDirection string

const (
	DirectionAbove ThresholdDirection = "above"
	DirectionBelow ThresholdDirection = "below"
)

// StatusChangedTriggerConfig matches transitions into (and optionally out of) a status.
type StatusChangedTriggerConfig struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// ScoreThresholdTriggerConfig fires when the lead's current score crosses Threshold.
type ScoreThresholdTriggerConfig struct {
	Threshold int                `json:"threshold"`
	Direction ThresholdDirection `json:"direction"`
}

// InactivityTriggerConfig fires after Days without lead activity.
// Evaluated by the sweeper, not by live CRM events.
type InactivityTriggerConfig struct {
	Days int `json:"days"`
}

// DateBasedTriggerConfig fires Days after the named date field on the lead.
type DateBasedTriggerConfig struct {
	Field string `json:"field"`
	Days  int    `json:"days"`
}

// SendEmailActionConfig selects the template sent to the lead's email address.
type SendEmailActionConfig struct {
	Template string `json:"template"`
}

// CreateTaskActionConfig materializes a scheduled task for deferred execution.
type CreateTaskActionConfig struct {
	TaskType   string                 `json:"task_type"`
	TaskConfig map[string]interface{} `json:"task_config,omitempty"`
	DelayHours int                    `json:"delay_hours,omitempty"`
}

// RoundRobinToken selects rotating assignment across the tenant's active users.
const RoundRobinToken = "round_robin"

// AssignUserActionConfig assigns the lead to a literal user id or round_robin.
type AssignUserActionConfig struct {
	AssignTo string `json:"assign_to"`
}

// UpdateStatusActionConfig overwrites the lead's pipeline status.
type UpdateStatusActionConfig struct {
	Status string `json:"status"`
}

// UpdateScoreActionConfig adjusts the lead score by Increment (may be negative).
// The result is clamped to the valid 0-100 range.
type UpdateScoreActionConfig struct {
	Increment int `json:"increment"`
}

// AddToCampaignActionConfig enrolls the lead in a campaign. Idempotent.
type AddToCampaignActionConfig struct {
	CampaignID string `json:"campaign_id"`
}

// SendWebhookActionConfig posts the trigger payload to an outbound webhook config.
type SendWebhookActionConfig struct {
	WebhookID string `json:"webhook_id"`
}

// AddTagActionConfig appends a tag to the lead's tag set. Idempotent.
type AddTagActionConfig struct {
	Tag string `json:"tag"`
}

// CreateRuleRequest represents the request to create an automation rule.
type CreateRuleRequest struct {
	Name          string          `json:"name" binding:"required" example:"Route hot leads"`
	Description   string          `json:"description,omitempty" example:"Assign hot inbound leads round-robin"`
	TriggerType   TriggerType     `json:"trigger_type" binding:"required,oneof=lead_created lead_updated status_changed score_threshold inactivity date_based form_submission" example:"lead_created"`
	TriggerConfig json.RawMessage `json:"trigger_config,omitempty" swaggertype:"object"`
	ActionType    ActionType      `json:"action_type" binding:"required,oneof=send_email create_task assign_user update_status update_score add_to_campaign send_webhook add_tag" example:"assign_user"`
	ActionConfig  json.RawMessage `json:"action_config" binding:"required" swaggertype:"object"`
	Priority      int             `json:"priority" example:"10"`
} // @name CreateRuleRequest

// UpdateRuleRequest represents a partial update to an automation rule.
type UpdateRuleRequest struct {
	Name          *string         `json:"name,omitempty"`
	Description   *string         `json:"description,omitempty"`
	IsActive      *bool           `json:"is_active,omitempty"`
	Priority      *int            `json:"priority,omitempty"`
	TriggerConfig json.RawMessage `json:"trigger_config,omitempty" swaggertype:"object"`
	ActionConfig  json.RawMessage `json:"action_config,omitempty" swaggertype:"object"`
} // @name UpdateRuleRequest

// RuleResponse represents a single automation rule.
type RuleResponse struct {
	ID              string          `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Name            string          `json:"name" example:"Route hot leads"`
	Description     string          `json:"description,omitempty"`
	TriggerType     TriggerType     `json:"trigger_type" example:"lead_created"`
	TriggerConfig   json.RawMessage `json:"trigger_config,omitempty" swaggertype:"object"`
	ActionType      ActionType      `json:"action_type" example:"assign_user"`
	ActionConfig    json.RawMessage `json:"action_config" swaggertype:"object"`
	IsActive        bool            `json:"is_active" example:"true"`
	Priority        int             `json:"priority" example:"10"`
	TriggerCount    int64           `json:"trigger_count" example:"42"`
	LastTriggeredAt *time.Time      `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
} // @name RuleResponse

// ListRulesQuery represents query parameters for listing rules.
type ListRulesQuery struct {
	TriggerType string `form:"trigger_type" binding:"omitempty,oneof=lead_created lead_updated status_changed score_threshold inactivity date_based form_submission"`
	ActionType  string `form:"action_type" binding:"omitempty,oneof=send_email create_task assign_user update_status update_score add_to_campaign send_webhook add_tag"`
	Active      string `form:"active" binding:"omitempty,oneof=true false"`
	Page        int    `form:"page" binding:"omitempty,min=1" example:"1"`
	Limit       int    `form:"limit" binding:"omitempty,min=1,max=100" example:"20"`
} // @name ListRulesQuery

// RuleListResponse represents the response for listing rules.
type RuleListResponse struct {
	Rules      []RuleResponse `json:"rules"`
	Pagination Pagination     `json:"pagination"`
} // @name RuleListResponse

// Pagination represents pagination metadata.
type Pagination struct {
	CurrentPage  int   `json:"current_page" example:"1"`
	PageSize     int   `json:"page_size" example:"20"`
	TotalPages   int   `json:"total_pages" example:"5"`
	TotalRecords int64 `json:"total_records" example:"100"`
} // @name Pagination
