package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/relaycrm/relaycrm/internal/models"
)

// CreateScheduledTask inserts a deferred task row.
func (c *MySQLClient) CreateScheduledTask(ctx context.Context, task *models.ScheduledTask) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO scheduled_tasks (id, user_id, rule_id, business_id, contact_id, task_type, task_config, status, scheduled_for)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.UserID,
		task.RuleID,
		task.BusinessID,
		task.ContactID,
		task.TaskType,
		string(task.TaskConfig),
		task.Status,
		task.ScheduledFor,
	)
	if err != nil {
		return fmt.Errorf("insert scheduled task: %w", err)
	}
	return nil
}

// GetDueTasks returns pending tasks whose scheduled_for has elapsed, oldest
// first, without claiming them.
func (c *MySQLClient) GetDueTasks(ctx context.Context, limit int) ([]models.ScheduledTask, error) {
	rows, err := c.db.QueryContext(
		ctx,
		`SELECT id, user_id, rule_id, business_id, contact_id, task_type, task_config, status, scheduled_for, executed_at, error_message, created_at
		 FROM scheduled_tasks
		 WHERE status = 'pending' AND scheduled_for <= NOW()
		 ORDER BY scheduled_for ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query due tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]models.ScheduledTask, 0)
	for rows.Next() {
		var t models.ScheduledTask
		var ruleID, contactID, taskConfig, errorMessage sql.NullString
		var executedAt sql.NullTime

		err := rows.Scan(
			&t.ID,
			&t.UserID,
			&ruleID,
			&t.BusinessID,
			&contactID,
			&t.TaskType,
			&taskConfig,
			&t.Status,
			&t.ScheduledFor,
			&executedAt,
			&errorMessage,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled task: %w", err)
		}

		t.RuleID = nullableString(ruleID)
		t.ContactID = nullableString(contactID)
		t.ErrorMessage = nullableString(errorMessage)
		if taskConfig.Valid {
			t.TaskConfig = jsonRawMessage(taskConfig.String)
		}
		if executedAt.Valid {
			ts := executedAt.Time
			t.ExecutedAt = &ts
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due tasks: %w", err)
	}
	return tasks, nil
}

// ClaimTask transitions a task pending -> executed. The conditional UPDATE
// makes the runner idempotent per task id: only one claimer sees a row
// affected, so repeated runs never execute the same task twice.
func (c *MySQLClient) ClaimTask(ctx context.Context, taskID string) (bool, error) {
	res, err := c.db.ExecContext(
		ctx,
		`UPDATE scheduled_tasks
		 SET status = 'executed', executed_at = NOW()
		 WHERE id = ? AND status = 'pending'`,
		taskID,
	)
	if err != nil {
		return false, fmt.Errorf("claim task: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// FailTask marks a task failed with an explanatory message.
func (c *MySQLClient) FailTask(ctx context.Context, taskID, message string) error {
	_, err := c.db.ExecContext(
		ctx,
		`UPDATE scheduled_tasks
		 SET status = 'failed', error_message = ?, executed_at = NOW()
		 WHERE id = ?`,
		message,
		taskID,
	)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	return nil
}
