// Package sweeper originates the trigger events no live mutation produces:
// inactivity and date_based rules fire from periodic scans, and deferred
// scheduled tasks are claimed and executed here.
package sweeper

import (
	"context"
	"encoding/json"
	"time"

	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/metrics"
	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/relaycrm/relaycrm/pkg/clock"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const scanBatchLimit = 500

// RuleScanner lists the time-based rules the sweep synthesizes events for.
type RuleScanner interface {
	ListActiveTimeBasedRules(ctx context.Context) ([]models.AutomationRule, error)
}

// LeadScanner finds the leads a time-based rule may concern.
type LeadScanner interface {
	ListLeadsInactiveSince(ctx context.Context, userID string, cutoff time.Time, limit int) ([]models.Lead, error)
	ListLeadsPastDateField(ctx context.Context, userID, field string, days, limit int) ([]models.Lead, error)
}

// TaskRunnerStore provides the due-task claim cycle.
type TaskRunnerStore interface {
	GetDueTasks(ctx context.Context, limit int) ([]models.ScheduledTask, error)
	ClaimTask(ctx context.Context, taskID string) (bool, error)
	FailTask(ctx context.Context, taskID, message string) error
}

// TaskExecutor performs a claimed task's side effect.
type TaskExecutor interface {
	Run(ctx context.Context, task *models.ScheduledTask) error
}

// Dispatcher hands synthesized events to the automation pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.TriggerEvent) error
}

// Engine runs the periodic scans on a cron schedule.
type Engine struct {
	rules      RuleScanner
	leads      LeadScanner
	tasks      TaskRunnerStore
	runner     TaskExecutor
	dispatcher Dispatcher
	clock      clock.Clock
	logger     logging.Logger
	cron       *cron.Cron
}

// NewEngine wires the sweep scans. Call Start to begin scheduling.
func NewEngine(rules RuleScanner, leads LeadScanner, tasks TaskRunnerStore, runner TaskExecutor, dispatcher Dispatcher, clk clock.Clock, logger logging.Logger) *Engine {
	return &Engine{
		rules:      rules,
		leads:      leads,
		tasks:      tasks,
		runner:     runner,
		dispatcher: dispatcher,
		clock:      clk,
		logger:     logger.With(zap.String("component", "sweeper")),
	}
}

// Start schedules the scans: time-based rule sweeps on sweepSchedule, due-task
// runs on taskSchedule (cron expressions, e.g. "@every 15m").
func (e *Engine) Start(sweepSchedule, taskSchedule string) error {
	e.cron = cron.New()

	if _, err := e.cron.AddFunc(sweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		e.SweepTimeBasedRules(ctx)
	}); err != nil {
		return err
	}

	if _, err := e.cron.AddFunc(taskSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		e.RunDueTasks(ctx)
	}); err != nil {
		return err
	}

	e.cron.Start()
	e.logger.Info("sweeper started",
		zap.String("sweep_schedule", sweepSchedule),
		zap.String("task_schedule", taskSchedule),
	)
	return nil
}

// Stop halts scheduling and waits for running jobs to finish.
func (e *Engine) Stop() {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
	e.logger.Info("sweeper stopped")
}

// SweepTimeBasedRules loads every active inactivity/date_based rule, groups
// them by tenant, and synthesizes one trigger event per qualifying lead. The
// dispatcher then matches each event against the tenant's full rule set, so
// events are deduplicated here per tenant rather than emitted per rule.
func (e *Engine) SweepTimeBasedRules(ctx context.Context) {
	metrics.SweepRunsTotal.WithLabelValues("time_based").Inc()

	rules, err := e.rules.ListActiveTimeBasedRules(ctx)
	if err != nil {
		e.logger.Error("failed to load time-based rules", zap.Error(err))
		return
	}
	if len(rules) == 0 {
		return
	}

	byTenant := make(map[string][]models.AutomationRule)
	for _, rule := range rules {
		byTenant[rule.UserID] = append(byTenant[rule.UserID], rule)
	}

	for tenantID, tenantRules := range byTenant {
		e.sweepInactivity(ctx, tenantID, tenantRules)
		e.sweepDateBased(ctx, tenantID, tenantRules)
	}
}

// sweepInactivity emits one inactivity event per lead idle at least as long as
// the tenant's loosest rule requires; the matcher applies each rule's own
// threshold.
func (e *Engine) sweepInactivity(ctx context.Context, tenantID string, rules []models.AutomationRule) {
	minDays := 0
	for _, rule := range rules {
		if rule.TriggerType != models.TriggerInactivity {
			continue
		}
		var cfg models.InactivityTriggerConfig
		if err := json.Unmarshal(rule.TriggerConfig, &cfg); err != nil || cfg.Days <= 0 {
			continue
		}
		if minDays == 0 || cfg.Days < minDays {
			minDays = cfg.Days
		}
	}
	if minDays == 0 {
		return
	}

	now := e.clock.Now().UTC()
	cutoff := now.AddDate(0, 0, -minDays)

	leads, err := e.leads.ListLeadsInactiveSince(ctx, tenantID, cutoff, scanBatchLimit)
	if err != nil {
		e.logger.Error("inactivity scan failed",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return
	}

	for i := range leads {
		lead := &leads[i]

		reference := lead.UpdatedAt
		if lead.LastActivity != nil {
			reference = *lead.LastActivity
		}
		daysInactive := int(now.Sub(reference).Hours() / 24)

		e.dispatch(ctx, models.TriggerEvent{
			Type:   models.TriggerInactivity,
			Source: models.SourceSweeper,
			UserID: tenantID,
			Data:   leadEventData(lead, map[string]interface{}{"days_inactive": daysInactive}),
		})
	}
}

// sweepDateBased emits one event per lead and referenced date field, using the
// smallest configured day threshold per field.
func (e *Engine) sweepDateBased(ctx context.Context, tenantID string, rules []models.AutomationRule) {
	minDaysByField := make(map[string]int)
	for _, rule := range rules {
		if rule.TriggerType != models.TriggerDateBased {
			continue
		}
		var cfg models.DateBasedTriggerConfig
		if err := json.Unmarshal(rule.TriggerConfig, &cfg); err != nil || cfg.Field == "" || cfg.Days <= 0 {
			continue
		}
		if current, ok := minDaysByField[cfg.Field]; !ok || cfg.Days < current {
			minDaysByField[cfg.Field] = cfg.Days
		}
	}

	now := e.clock.Now().UTC()
	for field, days := range minDaysByField {
		leads, err := e.leads.ListLeadsPastDateField(ctx, tenantID, field, days, scanBatchLimit)
		if err != nil {
			e.logger.Error("date-based scan failed",
				zap.String("tenant_id", tenantID),
				zap.String("field", field),
				zap.Error(err),
			)
			continue
		}

		for i := range leads {
			lead := &leads[i]

			reference := dateFieldValue(lead, field)
			if reference.IsZero() {
				continue
			}
			daysElapsed := int(now.Sub(reference).Hours() / 24)

			e.dispatch(ctx, models.TriggerEvent{
				Type:   models.TriggerDateBased,
				Source: models.SourceSweeper,
				UserID: tenantID,
				Data: leadEventData(lead, map[string]interface{}{
					"field":        field,
					"days_elapsed": daysElapsed,
				}),
			})
		}
	}
}

// RunDueTasks claims and completes scheduled tasks whose time has come. The
// conditional claim makes reruns safe: a task executes at most once no matter
// how many sweeps observe it as due.
func (e *Engine) RunDueTasks(ctx context.Context) {
	metrics.SweepRunsTotal.WithLabelValues("tasks").Inc()

	tasks, err := e.tasks.GetDueTasks(ctx, scanBatchLimit)
	if err != nil {
		e.logger.Error("failed to load due tasks", zap.Error(err))
		return
	}

	for i := range tasks {
		task := &tasks[i]

		claimed, err := e.tasks.ClaimTask(ctx, task.ID)
		if err != nil {
			e.logger.Error("failed to claim task",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			continue
		}
		if !claimed {
			continue
		}

		if err := e.runner.Run(ctx, task); err != nil {
			e.logger.Error("scheduled task failed",
				zap.String("task_id", task.ID),
				zap.String("task_type", task.TaskType),
				zap.Error(err),
			)
			if failErr := e.tasks.FailTask(ctx, task.ID, err.Error()); failErr != nil {
				e.logger.Error("failed to record task failure",
					zap.String("task_id", task.ID),
					zap.Error(failErr),
				)
			}
			continue
		}

		e.logger.Info("scheduled task executed",
			zap.String("task_id", task.ID),
			zap.String("task_type", task.TaskType),
			zap.String("business_id", task.BusinessID),
		)
	}
}

func (e *Engine) dispatch(ctx context.Context, event models.TriggerEvent) {
	if err := e.dispatcher.Dispatch(ctx, event); err != nil {
		e.logger.Error("sweep dispatch failed",
			zap.String("trigger_type", string(event.Type)),
			zap.String("tenant_id", event.UserID),
			zap.Error(err),
		)
	}
}

func leadEventData(lead *models.Lead, extra map[string]interface{}) map[string]interface{} {
	data := map[string]interface{}{
		"business_id":   lead.ID,
		"business_name": lead.BusinessName,
		"status":        lead.Status,
	}
	if lead.Email != nil {
		data["email"] = *lead.Email
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

func dateFieldValue(lead *models.Lead, field string) time.Time {
	switch field {
	case "created_at":
		return lead.CreatedAt
	case "updated_at":
		return lead.UpdatedAt
	case "last_activity_at":
		if lead.LastActivity != nil {
			return *lead.LastActivity
		}
	}
	return time.Time{}
}
