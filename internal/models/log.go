package models

import (
	"encoding/json"
	"time"
)

// AutomationLogStatus is the lifecycle status of one rule evaluation.
type AutomationLogStatus string

const (
	LogStatusPending AutomationLogStatus = "pending"
	LogStatusRunning AutomationLogStatus = "running"
	LogStatusSuccess AutomationLogStatus = "success"
	LogStatusFailed  AutomationLogStatus = "failed"
	LogStatusSkipped AutomationLogStatus = "skipped"
)

// Terminal reports whether the status ends an evaluation.
func (s AutomationLogStatus) Terminal() bool {
	return s == LogStatusSuccess || s == LogStatusFailed || s == LogStatusSkipped
}

// AutomationLog is one append-only record per rule evaluation attempt.
// CompletedAt is set iff the status is terminal; rows are never mutated
// after completion.
type AutomationLog struct {
	ID           string              `json:"id"`
	UserID       string              `json:"user_id"`
	RuleID       *string             `json:"rule_id,omitempty"` // nulled when the rule is deleted
	BusinessID   *string             `json:"business_id,omitempty"`
	Status       AutomationLogStatus `json:"status"`
	TriggerData  json.RawMessage     `json:"trigger_data,omitempty"`
	ActionResult json.RawMessage     `json:"action_result,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}

// TaskStatus is the lifecycle status of a scheduled task.
type TaskStatus string

const (
	TaskStatusPending  TaskStatus = "pending"
	TaskStatusExecuted TaskStatus = "executed"
	TaskStatusFailed   TaskStatus = "failed"
)

// ScheduledTask is a deferred action, usually materialized by a create_task
// automation action and executed later by the sweeper. The runner claims a
// task exactly once per id before performing side effects.
type ScheduledTask struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	RuleID       *string         `json:"rule_id,omitempty"` // nil for manually created tasks
	BusinessID   string          `json:"business_id"`
	ContactID    *string         `json:"contact_id,omitempty"`
	TaskType     string          `json:"task_type"`
	TaskConfig   json.RawMessage `json:"task_config,omitempty"`
	Status       TaskStatus      `json:"status"`
	ScheduledFor time.Time       `json:"scheduled_for"`
	ExecutedAt   *time.Time      `json:"executed_at,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ListLogsQuery represents query parameters for listing automation logs.
type ListLogsQuery struct {
	RuleID     string `form:"rule_id"`
	BusinessID string `form:"business_id"`
	Status     string `form:"status" binding:"omitempty,oneof=pending running success failed skipped"`
	Page       int    `form:"page" binding:"omitempty,min=1" example:"1"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=100" example:"20"`
} // @name ListLogsQuery

// AutomationLogResponse represents a single automation log entry.
type AutomationLogResponse struct {
	ID           string              `json:"id"`
	RuleID       *string             `json:"rule_id,omitempty"`
	BusinessID   *string             `json:"business_id,omitempty"`
	Status       AutomationLogStatus `json:"status" example:"success"`
	TriggerData  json.RawMessage     `json:"trigger_data,omitempty" swaggertype:"object"`
	ActionResult json.RawMessage     `json:"action_result,omitempty" swaggertype:"object"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
} // @name AutomationLogResponse

// LogListResponse represents the response for listing automation logs.
type LogListResponse struct {
	Logs       []AutomationLogResponse `json:"logs"`
	Pagination Pagination              `json:"pagination"`
} // @name LogListResponse
