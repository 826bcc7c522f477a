package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/relaycrm/relaycrm/pkg/clock"
	"go.uber.org/zap"
)

// ActionResult is the outcome of executing a single rule action.
type ActionResult struct {
	Success bool                   `json:"success"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Marshal snapshots the result for the audit log.
func (r ActionResult) Marshal() json.RawMessage {
	b, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return b
}

func failure(format string, args ...interface{}) ActionResult {
	return ActionResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

func success(detail map[string]interface{}) ActionResult {
	return ActionResult{Success: true, Detail: detail}
}

// Executor runs the configured action for a matched rule. Each action commits
// independently; a later rule's failure never rolls back an earlier rule's
// effect.
type Executor struct {
	leads      LeadStore
	tasks      TaskStore
	email      EmailSender
	notifier   WebhookNotifier
	roundRobin *RoundRobinAssignment
	clock      clock.Clock
	logger     logging.Logger
}

// NewExecutor wires the action handlers' dependencies.
func NewExecutor(leads LeadStore, tasks TaskStore, users UserDirectory, email EmailSender, notifier WebhookNotifier, clk clock.Clock, logger logging.Logger) *Executor {
	return &Executor{
		leads:      leads,
		tasks:      tasks,
		email:      email,
		notifier:   notifier,
		roundRobin: NewRoundRobinAssignment(users),
		clock:      clk,
		logger:     logger.With(zap.String("component", "executor")),
	}
}

// Execute performs the rule's action against the event subject. Panics from
// handlers are converted to failed results and never propagate to the
// dispatcher.
func (e *Executor) Execute(ctx context.Context, rule *models.AutomationRule, event models.TriggerEvent) (result ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("action handler panicked",
				zap.String("rule_id", rule.ID),
				zap.String("action_type", string(rule.ActionType)),
				zap.Any("panic", r),
			)
			result = failure("action handler panicked: %v", r)
		}
	}()

	switch rule.ActionType {
	case models.ActionSendEmail:
		return e.sendEmail(ctx, rule, event)
	case models.ActionCreateTask:
		return e.createTask(ctx, rule, event)
	case models.ActionAssignUser:
		return e.assignUser(ctx, rule, event)
	case models.ActionUpdateStatus:
		return e.updateStatus(ctx, rule, event)
	case models.ActionUpdateScore:
		return e.updateScore(ctx, rule, event)
	case models.ActionAddToCampaign:
		return e.addToCampaign(ctx, rule, event)
	case models.ActionSendWebhook:
		return e.sendWebhook(ctx, rule, event)
	case models.ActionAddTag:
		return e.addTag(ctx, rule, event)
	default:
		return failure("unsupported action type: %s", rule.ActionType)
	}
}

func (e *Executor) sendEmail(ctx context.Context, rule *models.AutomationRule, event models.TriggerEvent) ActionResult {
	var cfg models.SendEmailActionConfig
	if err := json.Unmarshal(rule.ActionConfig, &cfg); err != nil {
		return failure("malformed action_config: %v", err)
	}

	recipient, _ := event.Data["email"].(string)
	if recipient == "" {
		return failure("no recipient email in trigger data")
	}

	if err := e.email.Send(ctx, recipient, cfg.Template, event.Data); err != nil {
		return failure("send email: %v", err)
	}
	return success(map[string]interface{}{"template": cfg.Template, "recipient": recipient})
}

func (e *Executor) createTask(ctx context.Context, rule *models.AutomationRule, event models.TriggerEvent) ActionResult {
	var cfg models.CreateTaskActionConfig
	if err := json.Unmarshal(rule.ActionConfig, &cfg); err != nil {
		return failure("malformed action_config: %v", err)
	}

	businessID := event.BusinessID()
	if businessID == "" {
		return failure("no business_id in trigger data")
	}

	taskConfig, err := json.Marshal(cfg.TaskConfig)
	if err != nil {
		return failure("marshal task_config: %v", err)
	}

	task := &models.ScheduledTask{
		ID:           uuid.New().String(),
		UserID:       rule.UserID,
		RuleID:       &rule.ID,
		BusinessID:   businessID,
		TaskType:     cfg.TaskType,
		TaskConfig:   taskConfig,
		Status:       models.TaskStatusPending,
		ScheduledFor: e.clock.Now().UTC().Add(time.Duration(cfg.DelayHours) * time.Hour),
	}
	if err := e.tasks.CreateScheduledTask(ctx, task); err != nil {
		return failure("create scheduled task: %v", err)
	}
	return success(map[string]interface{}{"task_id": task.ID, "task_type": cfg.TaskType})
}

func (e *Executor) assignUser(ctx context.Context, rule *models.AutomationRule, event models.TriggerEvent) ActionResult {
	var cfg models.AssignUserActionConfig
	if err := json.Unmarshal(rule.ActionConfig, &cfg); err != nil {
		return failure("malformed action_config: %v", err)
	}

	businessID := event.BusinessID()
	if businessID == "" {
		return failure("no business_id in trigger data")
	}

	assignee, err := strategyFor(cfg, e.roundRobin).Resolve(ctx, rule.UserID)
	if err != nil {
		return failure("resolve assignee: %v", err)
	}

	if err := e.leads.AssignLead(ctx, rule.UserID, businessID, assignee); err != nil {
		return failure("assign lead: %v", err)
	}
	return success(map[string]interface{}{"assigned_to": assignee})
}

func (e *Executor) updateStatus(ctx context.Context, rule *models.AutomationRule, event models.TriggerEvent) ActionResult {
	var cfg models.UpdateStatusActionConfig
	if err := json.Unmarshal(rule.ActionConfig, &cfg); err != nil {
		return failure("malformed action_config: %v", err)
	}

	businessID := event.BusinessID()
	if businessID == "" {
		return failure("no business_id in trigger data")
	}

	if err := e.leads.UpdateLeadStatus(ctx, rule.UserID, businessID, cfg.Status); err != nil {
		return failure("update status: %v", err)
	}
	return success(map[string]interface{}{"status": cfg.Status})
}

func (e *Executor) updateScore(ctx context.Context, rule *models.AutomationRule, event models.TriggerEvent) ActionResult {
	var cfg models.UpdateScoreActionConfig
	if err := json.Unmarshal(rule.ActionConfig, &cfg); err != nil {
		return failure("malformed action_config: %v", err)
	}

	businessID := event.BusinessID()
	if businessID == "" {
		return failure("no business_id in trigger data")
	}

	score, err := e.leads.AdjustLeadScore(ctx, rule.UserID, businessID, cfg.Increment)
	if err != nil {
		return failure("adjust score: %v", err)
	}
	return success(map[string]interface{}{"increment": cfg.Increment, "score": score})
}

func (e *Executor) addToCampaign(ctx context.Context, rule *models.AutomationRule, event models.TriggerEvent) ActionResult {
	var cfg models.AddToCampaignActionConfig
	if err := json.Unmarshal(rule.ActionConfig, &cfg); err != nil {
		return failure("malformed action_config: %v", err)
	}

	businessID := event.BusinessID()
	if businessID == "" {
		return failure("no business_id in trigger data")
	}

	added, err := e.leads.AddToCampaign(ctx, rule.UserID, cfg.CampaignID, businessID)
	if err != nil {
		return failure("add to campaign: %v", err)
	}
	return success(map[string]interface{}{"campaign_id": cfg.CampaignID, "added": added})
}

func (e *Executor) sendWebhook(ctx context.Context, rule *models.AutomationRule, event models.TriggerEvent) ActionResult {
	var cfg models.SendWebhookActionConfig
	if err := json.Unmarshal(rule.ActionConfig, &cfg); err != nil {
		return failure("malformed action_config: %v", err)
	}

	if err := e.notifier.Notify(ctx, rule.UserID, cfg.WebhookID, string(event.Type), event.Data); err != nil {
		return failure("deliver webhook: %v", err)
	}
	return success(map[string]interface{}{"webhook_id": cfg.WebhookID})
}

func (e *Executor) addTag(ctx context.Context, rule *models.AutomationRule, event models.TriggerEvent) ActionResult {
	var cfg models.AddTagActionConfig
	if err := json.Unmarshal(rule.ActionConfig, &cfg); err != nil {
		return failure("malformed action_config: %v", err)
	}

	businessID := event.BusinessID()
	if businessID == "" {
		return failure("no business_id in trigger data")
	}

	added, err := e.leads.AddLeadTag(ctx, rule.UserID, businessID, cfg.Tag)
	if err != nil {
		return failure("add tag: %v", err)
	}
	return success(map[string]interface{}{"tag": cfg.Tag, "added": added})
}
