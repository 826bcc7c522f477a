package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/relaycrm/relaycrm/internal/models"
)

// CreateAutomationLog inserts a new evaluation record, normally in 'pending'.
func (c *MySQLClient) CreateAutomationLog(ctx context.Context, log *models.AutomationLog) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO automation_logs (id, user_id, rule_id, business_id, status, trigger_data, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.UserID,
		log.RuleID,
		log.BusinessID,
		log.Status,
		string(log.TriggerData),
		log.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("insert automation log: %w", err)
	}
	return nil
}

// MarkAutomationLogRunning transitions a pending log to running.
func (c *MySQLClient) MarkAutomationLogRunning(ctx context.Context, logID string) error {
	_, err := c.db.ExecContext(
		ctx,
		`UPDATE automation_logs SET status = ? WHERE id = ? AND status = ?`,
		models.LogStatusRunning,
		logID,
		models.LogStatusPending,
	)
	if err != nil {
		return fmt.Errorf("mark automation log running: %w", err)
	}
	return nil
}

// CompleteAutomationLog records the terminal status of an evaluation.
// completed_at is set together with the terminal status and the row is never
// touched again.
func (c *MySQLClient) CompleteAutomationLog(ctx context.Context, logID string, status models.AutomationLogStatus, actionResult json.RawMessage, errorMessage *string) error {
	if !status.Terminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}

	_, err := c.db.ExecContext(
		ctx,
		`UPDATE automation_logs
		 SET status = ?, action_result = ?, error_message = ?, completed_at = NOW()
		 WHERE id = ? AND completed_at IS NULL`,
		status,
		string(actionResult),
		errorMessage,
		logID,
	)
	if err != nil {
		return fmt.Errorf("complete automation log: %w", err)
	}
	return nil
}

// GetAutomationLog retrieves a single log entry owned by the tenant, or nil
// when absent. Rows belonging to other tenants are indistinguishable from
// missing ones.
func (c *MySQLClient) GetAutomationLog(ctx context.Context, userID, logID string) (*models.AutomationLog, error) {
	row := c.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, rule_id, business_id, status, trigger_data, action_result, error_message, started_at, completed_at
		 FROM automation_logs WHERE id = ? AND user_id = ?`,
		logID,
		userID,
	)

	log, err := scanAutomationLog(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return log, nil
}

// ListAutomationLogs retrieves the tenant's logs with filtering and
// pagination, newest first.
func (c *MySQLClient) ListAutomationLogs(ctx context.Context, userID string, query models.ListLogsQuery) ([]models.AutomationLog, int64, error) {
	criteria := make([]string, 0, 4)
	args := make([]interface{}, 0, 6)

	criteria = append(criteria, "user_id = ?")
	args = append(args, userID)

	if query.RuleID != "" {
		criteria = append(criteria, "rule_id = ?")
		args = append(args, query.RuleID)
	}
	if query.BusinessID != "" {
		criteria = append(criteria, "business_id = ?")
		args = append(args, query.BusinessID)
	}
	if query.Status != "" {
		criteria = append(criteria, "status = ?")
		args = append(args, query.Status)
	}

	where := "WHERE " + strings.Join(criteria, " AND ")

	var total int64
	if err := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM automation_logs %s", where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count automation logs: %w", err)
	}

	offset := (query.Page - 1) * query.Limit
	args = append(args, query.Limit, offset)

	rows, err := c.db.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT id, user_id, rule_id, business_id, status, trigger_data, action_result, error_message, started_at, completed_at
		 FROM automation_logs %s ORDER BY started_at DESC LIMIT ? OFFSET ?`, where),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query automation logs: %w", err)
	}
	defer rows.Close()

	logs := make([]models.AutomationLog, 0)
	for rows.Next() {
		log, err := scanAutomationLog(rows)
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, *log)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate automation logs: %w", err)
	}

	return logs, total, nil
}

func scanAutomationLog(row rowScanner) (*models.AutomationLog, error) {
	var log models.AutomationLog
	var ruleID, businessID, triggerData, actionResult, errorMessage sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&log.ID,
		&log.UserID,
		&ruleID,
		&businessID,
		&log.Status,
		&triggerData,
		&actionResult,
		&errorMessage,
		&log.StartedAt,
		&completedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan automation log: %w", err)
	}

	log.RuleID = nullableString(ruleID)
	log.BusinessID = nullableString(businessID)
	log.ErrorMessage = nullableString(errorMessage)
	if triggerData.Valid {
		log.TriggerData = jsonRawMessage(triggerData.String)
	}
	if actionResult.Valid {
		log.ActionResult = jsonRawMessage(actionResult.String)
	}
	if completedAt.Valid {
		t := completedAt.Time
		log.CompletedAt = &t
	}
	return &log, nil
}
