package automation

import (
	"context"
	"encoding/json"

	"github.com/relaycrm/relaycrm/internal/models"
)

// RuleStore defines the persistence required for automation rules.
type RuleStore interface {
	CreateRule(ctx context.Context, rule *models.AutomationRule) error
	GetRule(ctx context.Context, ruleID string) (*models.AutomationRule, error)
	ListRules(ctx context.Context, userID string, query models.ListRulesQuery) ([]models.AutomationRule, int64, error)
	ListActiveRulesByTrigger(ctx context.Context, userID string, triggerType models.TriggerType) ([]models.AutomationRule, error)
	UpdateRule(ctx context.Context, ruleID string, updates map[string]interface{}) error
	DeleteRule(ctx context.Context, ruleID string) error
	RecordRuleTriggered(ctx context.Context, ruleID string) error
}

// LeadReader is the side-channel read some trigger predicates need.
type LeadReader interface {
	GetLead(ctx context.Context, userID, leadID string) (*models.Lead, error)
}

// LeadStore defines the lead mutations action handlers perform. All writes
// are tenant-scoped; the storage layer enforces ownership on every row.
type LeadStore interface {
	LeadReader
	UpdateLeadStatus(ctx context.Context, userID, leadID, status string) error
	AssignLead(ctx context.Context, userID, leadID, assigneeID string) error
	AdjustLeadScore(ctx context.Context, userID, leadID string, delta int) (int, error)
	AddLeadTag(ctx context.Context, userID, leadID, tag string) (bool, error)
	AddToCampaign(ctx context.Context, userID, campaignID, businessID string) (bool, error)
}

// LogStore records the audit trail of rule evaluations.
type LogStore interface {
	CreateAutomationLog(ctx context.Context, log *models.AutomationLog) error
	MarkAutomationLogRunning(ctx context.Context, logID string) error
	CompleteAutomationLog(ctx context.Context, logID string, status models.AutomationLogStatus, actionResult json.RawMessage, errorMessage *string) error
}

// TaskStore persists deferred tasks created by create_task actions.
type TaskStore interface {
	CreateScheduledTask(ctx context.Context, task *models.ScheduledTask) error
}

// UserDirectory lists a tenant's active users for round-robin assignment.
type UserDirectory interface {
	ListActiveUsers(ctx context.Context, userID string) ([]string, error)
}

// EmailSender abstracts the email delivery dependency. The pipeline only
// needs accept/reject semantics; delivery mechanics live elsewhere.
type EmailSender interface {
	Send(ctx context.Context, recipient, template string, data map[string]interface{}) error
}

// WebhookNotifier performs an outbound webhook delivery for a send_webhook
// action. Implemented by the webhooks package.
type WebhookNotifier interface {
	Notify(ctx context.Context, userID, webhookID, eventType string, payload map[string]interface{}) error
}

// EventPublisher mirrors dispatched trigger events to an external bus.
type EventPublisher interface {
	Publish(ctx context.Context, event models.TriggerEvent) error
}
