package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/relaycrm/relaycrm/internal/models"
)

// ErrWebhookNotFound is returned when a webhook config is not found.
var ErrWebhookNotFound = errors.New("webhook config not found")

const webhookColumns = `id, user_id, name, type, url, secret, events, headers,
	is_active, retry_count, retry_delay, ip_allowlist, last_triggered_at, created_at, updated_at`

// CreateWebhookConfig inserts a webhook registration.
func (c *MySQLClient) CreateWebhookConfig(ctx context.Context, cfg *models.WebhookConfig) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO webhook_configs
		   (id, user_id, name, type, url, secret, events, headers, is_active, retry_count, retry_delay, ip_allowlist)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID,
		cfg.UserID,
		cfg.Name,
		cfg.Type,
		cfg.URL,
		cfg.Secret,
		marshalJSONColumn(cfg.Events),
		marshalJSONColumn(cfg.Headers),
		cfg.IsActive,
		cfg.RetryCount,
		cfg.RetryDelay,
		marshalJSONColumn(cfg.IPAllowlist),
	)
	if err != nil {
		return fmt.Errorf("insert webhook config: %w", err)
	}
	return nil
}

// GetWebhookConfig fetches a config by id regardless of type or status.
func (c *MySQLClient) GetWebhookConfig(ctx context.Context, webhookID string) (*models.WebhookConfig, error) {
	row := c.db.QueryRowContext(
		ctx,
		fmt.Sprintf(`SELECT %s FROM webhook_configs WHERE id = ?`, webhookColumns),
		webhookID,
	)
	return scanWebhookConfig(row)
}

// GetInboundConfig fetches an active inbound config by id. The gateway treats
// absence as unauthorized rather than not-found.
func (c *MySQLClient) GetInboundConfig(ctx context.Context, webhookID string) (*models.WebhookConfig, error) {
	row := c.db.QueryRowContext(
		ctx,
		fmt.Sprintf(`SELECT %s FROM webhook_configs WHERE id = ? AND type = 'inbound' AND is_active = TRUE`, webhookColumns),
		webhookID,
	)
	return scanWebhookConfig(row)
}

// ListWebhookConfigs returns a tenant's webhook registrations.
func (c *MySQLClient) ListWebhookConfigs(ctx context.Context, userID string) ([]models.WebhookConfig, error) {
	rows, err := c.db.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT %s FROM webhook_configs WHERE user_id = ? ORDER BY created_at DESC`, webhookColumns),
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query webhook configs: %w", err)
	}
	defer rows.Close()

	configs := make([]models.WebhookConfig, 0)
	for rows.Next() {
		cfg, err := scanWebhookConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook configs: %w", err)
	}
	return configs, nil
}

// UpdateWebhookConfig updates mutable fields. The secret is never updatable;
// it is generated once at creation.
func (c *MySQLClient) UpdateWebhookConfig(ctx context.Context, webhookID string, updates map[string]interface{}) error {
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
	args = append(args, webhookID)

	res, err := c.db.ExecContext(
		ctx,
		fmt.Sprintf("UPDATE webhook_configs SET %s WHERE id = ?", strings.Join(setParts, ", ")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("update webhook config: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrWebhookNotFound
	}
	return nil
}

// DeleteWebhookConfig removes a config, orphaning its delivery history.
func (c *MySQLClient) DeleteWebhookConfig(ctx context.Context, webhookID string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE webhook_deliveries SET webhook_id = NULL WHERE webhook_id = ?`, webhookID); err != nil {
		return fmt.Errorf("orphan webhook deliveries: %w", err)
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx, `DELETE FROM webhook_configs WHERE id = ?`, webhookID)
	if err != nil {
		return fmt.Errorf("delete webhook config: %w", err)
	}

	var affected int64
	affected, err = res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		err = ErrWebhookNotFound
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// TouchWebhookTriggered overwrites last_triggered_at. A plain timestamp
// overwrite is safe under concurrency; no read-modify-write involved.
func (c *MySQLClient) TouchWebhookTriggered(ctx context.Context, webhookID string) error {
	_, err := c.db.ExecContext(
		ctx,
		`UPDATE webhook_configs SET last_triggered_at = NOW() WHERE id = ?`,
		webhookID,
	)
	if err != nil {
		return fmt.Errorf("touch webhook: %w", err)
	}
	return nil
}

// CreateDelivery appends a webhook delivery record. Deliveries are never
// updated or deleted through the pipeline.
func (c *MySQLClient) CreateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO webhook_deliveries (id, webhook_id, event_type, payload, response_status, status, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		delivery.ID,
		delivery.WebhookID,
		delivery.EventType,
		string(delivery.Payload),
		delivery.ResponseStatus,
		delivery.Status,
		delivery.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}

// ListDeliveries returns delivery history for a webhook, newest first.
func (c *MySQLClient) ListDeliveries(ctx context.Context, webhookID string, query models.ListDeliveriesQuery) ([]models.WebhookDelivery, int64, error) {
	criteria := []string{"webhook_id = ?"}
	args := []interface{}{webhookID}

	if query.Status != "" {
		criteria = append(criteria, "status = ?")
		args = append(args, query.Status)
	}

	where := "WHERE " + strings.Join(criteria, " AND ")

	var total int64
	if err := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM webhook_deliveries %s", where), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count deliveries: %w", err)
	}

	offset := (query.Page - 1) * query.Limit
	args = append(args, query.Limit, offset)

	rows, err := c.db.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT id, webhook_id, event_type, payload, response_status, status, duration_ms, created_at
		 FROM webhook_deliveries %s ORDER BY created_at DESC LIMIT ? OFFSET ?`, where),
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := make([]models.WebhookDelivery, 0)
	for rows.Next() {
		var d models.WebhookDelivery
		var wid, payload sql.NullString
		var responseStatus sql.NullInt64

		err := rows.Scan(&d.ID, &wid, &d.EventType, &payload, &responseStatus, &d.Status, &d.DurationMs, &d.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scan delivery: %w", err)
		}

		d.WebhookID = nullableString(wid)
		if payload.Valid {
			d.Payload = jsonRawMessage(payload.String)
		}
		if responseStatus.Valid {
			status := int(responseStatus.Int64)
			d.ResponseStatus = &status
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate deliveries: %w", err)
	}

	return deliveries, total, nil
}

func scanWebhookConfig(row rowScanner) (*models.WebhookConfig, error) {
	var cfg models.WebhookConfig
	var url, secret, events, headers, ipAllowlist sql.NullString
	var lastTriggered sql.NullTime

	err := row.Scan(
		&cfg.ID,
		&cfg.UserID,
		&cfg.Name,
		&cfg.Type,
		&url,
		&secret,
		&events,
		&headers,
		&cfg.IsActive,
		&cfg.RetryCount,
		&cfg.RetryDelay,
		&ipAllowlist,
		&lastTriggered,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWebhookNotFound
		}
		return nil, fmt.Errorf("scan webhook config: %w", err)
	}

	cfg.URL = nullableString(url)
	cfg.Secret = nullableString(secret)
	cfg.Events = unmarshalStringSlice(events)
	cfg.Headers = unmarshalStringMap(headers)
	cfg.IPAllowlist = unmarshalStringSlice(ipAllowlist)
	if lastTriggered.Valid {
		t := lastTriggered.Time
		cfg.LastTriggeredAt = &t
	}
	return &cfg, nil
}
