package models

import (
	"encoding/json"
	"time"
)

// Lead is the CRM entity automation rules act on. Persistence enforces tenant
// isolation: every read and write is scoped by UserID.
type Lead struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	BusinessName string     `json:"business_name"`
	ContactName  *string    `json:"contact_name,omitempty"`
	Email        *string    `json:"email,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	Website      *string    `json:"website,omitempty"`
	Status       string     `json:"status"`
	Score        int        `json:"lead_score"`
	Temperature  *string    `json:"lead_temperature,omitempty"`
	Source       *string    `json:"lead_source,omitempty"`
	AssignedTo   *string    `json:"assigned_to,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
	LastActivity *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Contact is a person attached to a lead.
type Contact struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	BusinessID string    `json:"business_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      *string   `json:"email,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	Position   *string   `json:"position,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Activity is a timeline entry on a lead (call, email, note, webhook event).
type Activity struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	BusinessID   string          `json:"business_id"`
	ActivityType string          `json:"activity_type"`
	Description  *string         `json:"description,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
