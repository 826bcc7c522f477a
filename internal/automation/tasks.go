package automation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/models"
	"go.uber.org/zap"
)

// Task types a create_task action may schedule. follow_up and send_email both
// resolve to an email to the lead; the remaining types mutate the lead itself.
const (
	TaskFollowUp     = "follow_up"
	TaskSendEmail    = "send_email"
	TaskUpdateStatus = "update_status"
	TaskAddTag       = "add_tag"
)

type followUpTaskConfig struct {
	Template string `json:"template,omitempty"`
}

type updateStatusTaskConfig struct {
	Status string `json:"status"`
}

type addTagTaskConfig struct {
	Tag string `json:"tag"`
}

// TaskRunner performs the side effect of a claimed scheduled task. Every
// effect is tenant-scoped through the task's owning user id, mirroring how
// the executor scopes live actions through the rule's owner.
type TaskRunner struct {
	leads  LeadStore
	email  EmailSender
	logger logging.Logger
}

// NewTaskRunner wires the task handlers' dependencies.
func NewTaskRunner(leads LeadStore, email EmailSender, logger logging.Logger) *TaskRunner {
	return &TaskRunner{
		leads:  leads,
		email:  email,
		logger: logger.With(zap.String("component", "task_runner")),
	}
}

// Run executes one claimed task. The caller owns the claim cycle; Run only
// reports whether the task's effect was applied.
func (r *TaskRunner) Run(ctx context.Context, task *models.ScheduledTask) error {
	switch task.TaskType {
	case TaskFollowUp, TaskSendEmail:
		return r.sendFollowUp(ctx, task)
	case TaskUpdateStatus:
		return r.updateStatus(ctx, task)
	case TaskAddTag:
		return r.addTag(ctx, task)
	default:
		return fmt.Errorf("unknown task type: %s", task.TaskType)
	}
}

func (r *TaskRunner) sendFollowUp(ctx context.Context, task *models.ScheduledTask) error {
	var cfg followUpTaskConfig
	if len(task.TaskConfig) > 0 {
		if err := json.Unmarshal(task.TaskConfig, &cfg); err != nil {
			return fmt.Errorf("malformed task_config: %w", err)
		}
	}
	if cfg.Template == "" {
		cfg.Template = TaskFollowUp
	}

	lead, err := r.leads.GetLead(ctx, task.UserID, task.BusinessID)
	if err != nil {
		return fmt.Errorf("load lead: %w", err)
	}
	if lead.Email == nil || *lead.Email == "" {
		return fmt.Errorf("lead %s has no email address", task.BusinessID)
	}

	data := map[string]interface{}{
		"business_id":   lead.ID,
		"business_name": lead.BusinessName,
		"task_id":       task.ID,
	}
	if err := r.email.Send(ctx, *lead.Email, cfg.Template, data); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (r *TaskRunner) updateStatus(ctx context.Context, task *models.ScheduledTask) error {
	var cfg updateStatusTaskConfig
	if err := json.Unmarshal(task.TaskConfig, &cfg); err != nil {
		return fmt.Errorf("malformed task_config: %w", err)
	}
	if cfg.Status == "" {
		return fmt.Errorf("task_config missing status")
	}
	if err := r.leads.UpdateLeadStatus(ctx, task.UserID, task.BusinessID, cfg.Status); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

func (r *TaskRunner) addTag(ctx context.Context, task *models.ScheduledTask) error {
	var cfg addTagTaskConfig
	if err := json.Unmarshal(task.TaskConfig, &cfg); err != nil {
		return fmt.Errorf("malformed task_config: %w", err)
	}
	if cfg.Tag == "" {
		return fmt.Errorf("task_config missing tag")
	}
	if _, err := r.leads.AddLeadTag(ctx, task.UserID, task.BusinessID, cfg.Tag); err != nil {
		return fmt.Errorf("add tag: %w", err)
	}
	return nil
}
