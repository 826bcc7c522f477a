package models

import "encoding/json"

// EventSource identifies where a trigger event originated.
type EventSource string

const (
	SourceCRM     EventSource = "crm"     // live mutation from the application
	SourceWebhook EventSource = "webhook" // synthesized by the inbound gateway
	SourceSweeper EventSource = "sweeper" // synthesized by the periodic scan
)

// TriggerEvent is a classified CRM event handed to the dispatcher together
// with a JSON-serializable payload describing the subject.
type TriggerEvent struct {
	Type   TriggerType            `json:"trigger_type"`
	Source EventSource            `json:"source"`
	UserID string                 `json:"user_id"`
	Data   map[string]interface{} `json:"data"`
}

// BusinessID extracts the lead id from the event payload, if present.
func (e TriggerEvent) BusinessID() string {
	if id, ok := e.Data["business_id"].(string); ok {
		return id
	}
	return ""
}

// MarshalData snapshots the payload for the audit log.
func (e TriggerEvent) MarshalData() json.RawMessage {
	if e.Data == nil {
		return nil
	}
	b, err := json.Marshal(e.Data)
	if err != nil {
		return nil
	}
	return b
}

// ExecuteRequest is the body of the internal fire-and-forget automation
// endpoint consumed by CRM mutation hooks.
type ExecuteRequest struct {
	TriggerType TriggerType            `json:"triggerType" binding:"required,oneof=lead_created lead_updated status_changed score_threshold inactivity date_based form_submission" example:"lead_created"`
	TriggerData map[string]interface{} `json:"triggerData" binding:"required" swaggertype:"object"`
	UserID      string                 `json:"userId,omitempty"`
} // @name ExecuteRequest
