package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/relaycrm/relaycrm/internal/models"
)

// ErrLeadNotFound is returned when a lead does not exist for the tenant.
var ErrLeadNotFound = errors.New("lead not found")

const leadColumns = `id, user_id, business_name, contact_name, email, phone, website,
	status, lead_score, lead_temperature, lead_source, assigned_to, tags, notes,
	last_activity_at, created_at, updated_at`

// GetLead fetches a lead scoped to its owning tenant.
func (c *MySQLClient) GetLead(ctx context.Context, userID, leadID string) (*models.Lead, error) {
	row := c.db.QueryRowContext(
		ctx,
		fmt.Sprintf(`SELECT %s FROM leads WHERE id = ? AND user_id = ?`, leadColumns),
		leadID,
		userID,
	)
	return scanLead(row)
}

// CreateLead inserts a lead from an allowlisted field map. Callers must pass
// fields that already went through the gateway allowlist; keys map directly to
// column names.
func (c *MySQLClient) CreateLead(ctx context.Context, userID string, fields map[string]interface{}) (string, error) {
	leadID := uuid.New().String()

	columns := []string{"id", "user_id"}
	placeholders := []string{"?", "?"}
	args := []interface{}{leadID, userID}
	for column, value := range fields {
		columns = append(columns, column)
		placeholders = append(placeholders, "?")
		args = append(args, value)
	}

	query := fmt.Sprintf(
		"INSERT INTO leads (%s) VALUES (%s)",
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert lead: %w", err)
	}
	return leadID, nil
}

// UpdateLeadFields applies an allowlisted field map to an existing lead,
// scoped to the owning tenant.
func (c *MySQLClient) UpdateLeadFields(ctx context.Context, userID, leadID string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}

	setParts := make([]string, 0, len(fields)+1)
	args := make([]interface{}, 0, len(fields)+2)
	for column, value := range fields {
		setParts = append(setParts, fmt.Sprintf("%s = ?", column))
		args = append(args, value)
	}
	setParts = append(setParts, "updated_at = NOW()")
	args = append(args, leadID, userID)

	res, err := c.db.ExecContext(
		ctx,
		fmt.Sprintf("UPDATE leads SET %s WHERE id = ? AND user_id = ?", strings.Join(setParts, ", ")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("update lead: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// UpdateLeadStatus overwrites the lead's pipeline status.
func (c *MySQLClient) UpdateLeadStatus(ctx context.Context, userID, leadID, status string) error {
	return c.UpdateLeadFields(ctx, userID, leadID, map[string]interface{}{"status": status})
}

// AssignLead sets the lead's assignee.
func (c *MySQLClient) AssignLead(ctx context.Context, userID, leadID, assigneeID string) error {
	return c.UpdateLeadFields(ctx, userID, leadID, map[string]interface{}{"assigned_to": assigneeID})
}

// AdjustLeadScore applies a delta to the lead score clamped to [0, 100].
// The clamp happens inside the UPDATE so concurrent adjustments never
// read-modify-write a stale score. Returns the resulting score.
func (c *MySQLClient) AdjustLeadScore(ctx context.Context, userID, leadID string, delta int) (int, error) {
	res, err := c.db.ExecContext(
		ctx,
		`UPDATE leads
		 SET lead_score = LEAST(100, GREATEST(0, lead_score + ?)), updated_at = NOW()
		 WHERE id = ? AND user_id = ?`,
		delta,
		leadID,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("adjust lead score: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return 0, ErrLeadNotFound
	}

	var score int
	row := c.db.QueryRowContext(ctx, `SELECT lead_score FROM leads WHERE id = ? AND user_id = ?`, leadID, userID)
	if err := row.Scan(&score); err != nil {
		return 0, fmt.Errorf("read adjusted score: %w", err)
	}
	return score, nil
}

// AddLeadTag appends a tag to the lead's tag set. Adding an existing tag is a
// no-op; reports whether the tag was newly added.
func (c *MySQLClient) AddLeadTag(ctx context.Context, userID, leadID, tag string) (bool, error) {
	lead, err := c.GetLead(ctx, userID, leadID)
	if err != nil {
		return false, err
	}

	for _, existing := range lead.Tags {
		if existing == tag {
			return false, nil
		}
	}

	tags := append(lead.Tags, tag)
	serialized, err := json.Marshal(tags)
	if err != nil {
		return false, fmt.Errorf("marshal tags: %w", err)
	}

	if err := c.UpdateLeadFields(ctx, userID, leadID, map[string]interface{}{"tags": string(serialized)}); err != nil {
		return false, err
	}
	return true, nil
}

// AddToCampaign enrolls a lead in a campaign. The membership table has a
// unique (campaign_id, business_id) key, so double enrollment is a no-op.
// Reports whether a new membership row was created.
func (c *MySQLClient) AddToCampaign(ctx context.Context, userID, campaignID, businessID string) (bool, error) {
	res, err := c.db.ExecContext(
		ctx,
		`INSERT IGNORE INTO campaign_members (id, user_id, campaign_id, business_id) VALUES (?, ?, ?, ?)`,
		uuid.New().String(),
		userID,
		campaignID,
		businessID,
	)
	if err != nil {
		return false, fmt.Errorf("insert campaign membership: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// CreateContact inserts a contact attached to a lead.
func (c *MySQLClient) CreateContact(ctx context.Context, contact *models.Contact) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO contacts (id, user_id, business_id, first_name, last_name, email, phone, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		contact.ID,
		contact.UserID,
		contact.BusinessID,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Phone,
		contact.Position,
	)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

// CreateActivity appends a timeline entry to a lead.
func (c *MySQLClient) CreateActivity(ctx context.Context, activity *models.Activity) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO activities (id, user_id, business_id, activity_type, description, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		activity.ID,
		activity.UserID,
		activity.BusinessID,
		activity.ActivityType,
		activity.Description,
		string(activity.Metadata),
	)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListActiveUsers returns the tenant's active user ids in a stable order,
// used by round-robin assignment.
func (c *MySQLClient) ListActiveUsers(ctx context.Context, userID string) ([]string, error) {
	rows, err := c.db.QueryContext(
		ctx,
		`SELECT id FROM users WHERE tenant_id = ? AND is_active = TRUE ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query active users: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return ids, nil
}

// ListLeadsInactiveSince returns the tenant's leads with no activity since the
// cutoff. Used by the sweeper to synthesize inactivity trigger events.
func (c *MySQLClient) ListLeadsInactiveSince(ctx context.Context, userID string, cutoff time.Time, limit int) ([]models.Lead, error) {
	rows, err := c.db.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT %s FROM leads
		 WHERE user_id = ? AND COALESCE(last_activity_at, updated_at) <= ?
		 ORDER BY updated_at ASC
		 LIMIT ?`, leadColumns),
		userID,
		cutoff,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query inactive leads: %w", err)
	}
	defer rows.Close()

	return collectLeads(rows)
}

// dateFieldColumns is the fixed set of lead columns a date_based trigger may
// reference. Anything else never reaches the query.
var dateFieldColumns = map[string]struct{}{
	"created_at":       {},
	"updated_at":       {},
	"last_activity_at": {},
}

// ErrUnknownDateField is returned when a date_based trigger names a column
// outside the allowed set.
var ErrUnknownDateField = errors.New("unknown date field")

// ListLeadsPastDateField returns leads whose date field is at least `days`
// old. The column name is checked against a fixed allowlist before it is
// interpolated.
func (c *MySQLClient) ListLeadsPastDateField(ctx context.Context, userID, field string, days, limit int) ([]models.Lead, error) {
	if _, ok := dateFieldColumns[field]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDateField, field)
	}

	rows, err := c.db.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT %s FROM leads
		 WHERE user_id = ? AND %s IS NOT NULL AND DATE_ADD(%s, INTERVAL ? DAY) <= NOW()
		 ORDER BY %s ASC
		 LIMIT ?`, leadColumns, field, field, field),
		userID,
		days,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query date-based leads: %w", err)
	}
	defer rows.Close()

	return collectLeads(rows)
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var l models.Lead
	var contactName, email, phone, website, temperature, source, assignedTo, tags, notes sql.NullString
	var lastActivity sql.NullTime

	err := row.Scan(
		&l.ID,
		&l.UserID,
		&l.BusinessName,
		&contactName,
		&email,
		&phone,
		&website,
		&l.Status,
		&l.Score,
		&temperature,
		&source,
		&assignedTo,
		&tags,
		&notes,
		&lastActivity,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("scan lead: %w", err)
	}

	l.ContactName = nullableString(contactName)
	l.Email = nullableString(email)
	l.Phone = nullableString(phone)
	l.Website = nullableString(website)
	l.Temperature = nullableString(temperature)
	l.Source = nullableString(source)
	l.AssignedTo = nullableString(assignedTo)
	l.Notes = nullableString(notes)
	l.Tags = unmarshalStringSlice(tags)
	if lastActivity.Valid {
		t := lastActivity.Time
		l.LastActivity = &t
	}
	return &l, nil
}

func collectLeads(rows *sql.Rows) ([]models.Lead, error) {
	leads := make([]models.Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return leads, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
