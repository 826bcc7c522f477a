package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/relaycrm/relaycrm/internal/models"
)

// ErrRuleNotFound is returned when an automation rule is not found.
var ErrRuleNotFound = errors.New("automation rule not found")

const ruleColumns = `id, user_id, name, description, trigger_type, trigger_config,
	action_type, action_config, is_active, priority, trigger_count, last_triggered_at,
	created_at, updated_at`

// CreateRule inserts an automation rule.
func (c *MySQLClient) CreateRule(ctx context.Context, rule *models.AutomationRule) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO automation_rules
		   (id, user_id, name, description, trigger_type, trigger_config, action_type, action_config, is_active, priority)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.UserID,
		rule.Name,
		rule.Description,
		rule.TriggerType,
		string(rule.TriggerConfig),
		rule.ActionType,
		string(rule.ActionConfig),
		rule.IsActive,
		rule.Priority,
	)
	if err != nil {
		return fmt.Errorf("insert automation rule: %w", err)
	}
	return nil
}

// GetRule fetches a rule by id.
func (c *MySQLClient) GetRule(ctx context.Context, ruleID string) (*models.AutomationRule, error) {
	row := c.db.QueryRowContext(
		ctx,
		fmt.Sprintf(`SELECT %s FROM automation_rules WHERE id = ?`, ruleColumns),
		ruleID,
	)
	return scanRule(row)
}

// ListActiveRulesByTrigger returns the tenant's active rules for a trigger type
// ordered by priority ascending. Ordering must be deterministic because
// earlier rules' actions can mutate state later rules' conditions read.
func (c *MySQLClient) ListActiveRulesByTrigger(ctx context.Context, userID string, triggerType models.TriggerType) ([]models.AutomationRule, error) {
	rows, err := c.db.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT %s FROM automation_rules
		 WHERE user_id = ? AND trigger_type = ? AND is_active = TRUE
		 ORDER BY priority ASC, created_at ASC`, ruleColumns),
		userID,
		triggerType,
	)
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

// ListActiveTimeBasedRules returns every tenant's active inactivity and
// date_based rules. The sweeper groups them by tenant to synthesize trigger
// events.
func (c *MySQLClient) ListActiveTimeBasedRules(ctx context.Context) ([]models.AutomationRule, error) {
	rows, err := c.db.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT %s FROM automation_rules
		 WHERE trigger_type IN (?, ?) AND is_active = TRUE
		 ORDER BY user_id ASC, priority ASC, created_at ASC`, ruleColumns),
		models.TriggerInactivity,
		models.TriggerDateBased,
	)
	if err != nil {
		return nil, fmt.Errorf("query time-based rules: %w", err)
	}
	defer rows.Close()

	return collectRules(rows)
}

// ListRules returns rules matching the filters with a total count for pagination.
func (c *MySQLClient) ListRules(ctx context.Context, userID string, query models.ListRulesQuery) ([]models.AutomationRule, int64, error) {
	criteria := []string{"user_id = ?"}
	args := []interface{}{userID}

	if query.TriggerType != "" {
		criteria = append(criteria, "trigger_type = ?")
		args = append(args, query.TriggerType)
	}
	if query.ActionType != "" {
		criteria = append(criteria, "action_type = ?")
		args = append(args, query.ActionType)
	}
	if query.Active != "" {
		criteria = append(criteria, "is_active = ?")
		args = append(args, query.Active == "true")
	}

	where := "WHERE " + strings.Join(criteria, " AND ")

	var total int64
	if err := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM automation_rules %s", where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rules: %w", err)
	}

	offset := (query.Page - 1) * query.Limit
	args = append(args, query.Limit, offset)

	rows, err := c.db.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT %s FROM automation_rules %s ORDER BY priority ASC, created_at DESC LIMIT ? OFFSET ?`, ruleColumns, where),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	rules, err := collectRules(rows)
	if err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}

// UpdateRule updates the mutable fields of a rule.
func (c *MySQLClient) UpdateRule(ctx context.Context, ruleID string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	setParts := make([]string, 0, len(updates)+1)
	args := make([]interface{}, 0, len(updates)+1)
	for column, value := range updates {
		setParts = append(setParts, fmt.Sprintf("%s = ?", column))
		args = append(args, value)
	}
	setParts = append(setParts, "updated_at = NOW()")
	args = append(args, ruleID)

	res, err := c.db.ExecContext(
		ctx,
		fmt.Sprintf("UPDATE automation_rules SET %s WHERE id = ?", strings.Join(setParts, ", ")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// DeleteRule removes a rule. Historical logs and tasks outlive the rule:
// their rule_id foreign keys are nulled in the same transaction.
func (c *MySQLClient) DeleteRule(ctx context.Context, ruleID string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE automation_logs SET rule_id = NULL WHERE rule_id = ?`, ruleID); err != nil {
		return fmt.Errorf("orphan automation logs: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE scheduled_tasks SET rule_id = NULL WHERE rule_id = ?`, ruleID); err != nil {
		return fmt.Errorf("orphan scheduled tasks: %w", err)
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx, `DELETE FROM automation_rules WHERE id = ?`, ruleID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}

	var affected int64
	affected, err = res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		err = ErrRuleNotFound
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// RecordRuleTriggered bumps the trigger counter and timestamp. The increment
// is applied in SQL so concurrent executions never lose updates.
func (c *MySQLClient) RecordRuleTriggered(ctx context.Context, ruleID string) error {
	_, err := c.db.ExecContext(
		ctx,
		`UPDATE automation_rules
		 SET trigger_count = trigger_count + 1, last_triggered_at = NOW()
		 WHERE id = ?`,
		ruleID,
	)
	if err != nil {
		return fmt.Errorf("record rule triggered: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*models.AutomationRule, error) {
	var r models.AutomationRule
	var description sql.NullString
	var triggerConfig, actionConfig sql.NullString
	var lastTriggered sql.NullTime

	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.Name,
		&description,
		&r.TriggerType,
		&triggerConfig,
		&r.ActionType,
		&actionConfig,
		&r.IsActive,
		&r.Priority,
		&r.TriggerCount,
		&lastTriggered,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, fmt.Errorf("scan rule: %w", err)
	}

	if description.Valid {
		r.Description = description.String
	}
	if triggerConfig.Valid {
		r.TriggerConfig = jsonRawMessage(triggerConfig.String)
	}
	if actionConfig.Valid {
		r.ActionConfig = jsonRawMessage(actionConfig.String)
	}
	if lastTriggered.Valid {
		t := lastTriggered.Time
		r.LastTriggeredAt = &t
	}
	return &r, nil
}

func collectRules(rows *sql.Rows) ([]models.AutomationRule, error) {
	rules := make([]models.AutomationRule, 0)
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}
