package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/metrics"
	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/relaycrm/relaycrm/pkg/clock"
	"go.uber.org/zap"
)

// detachedTimeout bounds a fire-and-forget dispatch so a stuck action can
// never leak a goroutine indefinitely.
const detachedTimeout = 60 * time.Second

// Dispatcher routes trigger events to matching rules and drives their
// execution. Rules run in priority order; each evaluation commits its action
// and audit row independently, so one rule's failure never blocks another.
type Dispatcher struct {
	rules     RuleStore
	logs      LogStore
	matcher   *Matcher
	executor  *Executor
	publisher EventPublisher // optional event bus mirror, may be nil
	clock     clock.Clock
	logger    logging.Logger
}

// NewDispatcher wires the dispatch pipeline.
func NewDispatcher(rules RuleStore, logs LogStore, matcher *Matcher, executor *Executor, publisher EventPublisher, clk clock.Clock, logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		rules:     rules,
		logs:      logs,
		matcher:   matcher,
		executor:  executor,
		publisher: publisher,
		clock:     clk,
		logger:    logger.With(zap.String("component", "dispatcher")),
	}
}

// Dispatch evaluates all active rules for the event's trigger type in
// priority order. A storage error loading rules abandons the dispatch; per-rule
// failures are absorbed into the audit log.
func (d *Dispatcher) Dispatch(ctx context.Context, event models.TriggerEvent) error {
	metrics.DispatchesTotal.WithLabelValues(string(event.Type), string(event.Source)).Inc()

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, event); err != nil {
			// The bus mirror is best-effort; rule evaluation proceeds.
			d.logger.Warn("failed to publish trigger event",
				zap.String("trigger_type", string(event.Type)),
				zap.Error(err),
			)
		}
	}

	rules, err := d.rules.ListActiveRulesByTrigger(ctx, event.UserID, event.Type)
	if err != nil {
		d.logger.Error("failed to load rules, abandoning dispatch",
			zap.String("trigger_type", string(event.Type)),
			zap.Error(err),
		)
		return fmt.Errorf("load rules: %w", err)
	}

	d.logger.Debug("dispatching trigger event",
		zap.String("trigger_type", string(event.Type)),
		zap.String("business_id", event.BusinessID()),
		zap.Int("candidate_rules", len(rules)),
	)

	for i := range rules {
		d.evaluate(ctx, &rules[i], event)
	}
	return nil
}

// DispatchDetached runs Dispatch on a fresh goroutine with its own bounded
// context. The caller's success is independent of the outcome; failures are
// observable only through logs and audit rows.
func (d *Dispatcher) DispatchDetached(event models.TriggerEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), detachedTimeout)
		defer cancel()

		if err := d.Dispatch(ctx, event); err != nil {
			d.logger.Error("detached dispatch failed",
				zap.String("trigger_type", string(event.Type)),
				zap.Error(err),
			)
		}
	}()
}

// evaluate runs one rule against the event. Matched rules get exactly one
// AutomationLog row transitioning pending -> running -> terminal; rules with a
// malformed config get a skipped row; non-matching rules leave no trace.
func (d *Dispatcher) evaluate(ctx context.Context, rule *models.AutomationRule, event models.TriggerEvent) {
	matched, err := d.matcher.Matches(ctx, rule, event)
	if err != nil {
		d.recordSkip(ctx, rule, event, err)
		return
	}
	if !matched {
		return
	}

	logID := uuid.New().String()
	businessID := event.BusinessID()
	entry := &models.AutomationLog{
		ID:          logID,
		UserID:      event.UserID,
		RuleID:      &rule.ID,
		Status:      models.LogStatusPending,
		TriggerData: event.MarshalData(),
		StartedAt:   d.clock.Now().UTC(),
	}
	if businessID != "" {
		entry.BusinessID = &businessID
	}

	if err := d.logs.CreateAutomationLog(ctx, entry); err != nil {
		d.logger.Error("failed to create automation log",
			zap.String("rule_id", rule.ID),
			zap.Error(err),
		)
		return
	}
	if err := d.logs.MarkAutomationLogRunning(ctx, logID); err != nil {
		d.logger.Warn("failed to mark automation log running",
			zap.String("log_id", logID),
			zap.Error(err),
		)
	}

	if err := d.rules.RecordRuleTriggered(ctx, rule.ID); err != nil {
		d.logger.Warn("failed to record rule trigger",
			zap.String("rule_id", rule.ID),
			zap.Error(err),
		)
	}

	result := d.executor.Execute(ctx, rule, event)

	status := models.LogStatusSuccess
	var errorMessage *string
	if !result.Success {
		status = models.LogStatusFailed
		msg := result.Error
		errorMessage = &msg
	}
	metrics.RuleExecutionsTotal.WithLabelValues(string(rule.ActionType), string(status)).Inc()

	if err := d.logs.CompleteAutomationLog(ctx, logID, status, result.Marshal(), errorMessage); err != nil {
		d.logger.Error("failed to complete automation log",
			zap.String("log_id", logID),
			zap.Error(err),
		)
	}

	d.logger.Info("rule executed",
		zap.String("rule_id", rule.ID),
		zap.String("action_type", string(rule.ActionType)),
		zap.String("status", string(status)),
	)
}

func (d *Dispatcher) recordSkip(ctx context.Context, rule *models.AutomationRule, event models.TriggerEvent, cause error) {
	metrics.RuleExecutionsTotal.WithLabelValues(string(rule.ActionType), string(models.LogStatusSkipped)).Inc()

	logID := uuid.New().String()
	businessID := event.BusinessID()
	entry := &models.AutomationLog{
		ID:          logID,
		UserID:      event.UserID,
		RuleID:      &rule.ID,
		Status:      models.LogStatusPending,
		TriggerData: event.MarshalData(),
		StartedAt:   d.clock.Now().UTC(),
	}
	if businessID != "" {
		entry.BusinessID = &businessID
	}

	if err := d.logs.CreateAutomationLog(ctx, entry); err != nil {
		d.logger.Error("failed to create skip log",
			zap.String("rule_id", rule.ID),
			zap.Error(err),
		)
		return
	}

	msg := cause.Error()
	if err := d.logs.CompleteAutomationLog(ctx, logID, models.LogStatusSkipped, nil, &msg); err != nil {
		d.logger.Error("failed to complete skip log",
			zap.String("log_id", logID),
			zap.Error(err),
		)
	}

	d.logger.Warn("rule skipped",
		zap.String("rule_id", rule.ID),
		zap.String("reason", msg),
	)
}
