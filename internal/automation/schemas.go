package automation

import (
	"encoding/json"
	"strings"

	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/xeipuuv/gojsonschema"
)

// Trigger and action configs are opaque JSON at the storage layer, so their
// shapes are enforced here at write-time. Evaluation re-checks them because
// rows may predate a schema change.

var triggerConfigSchemas = map[models.TriggerType]string{
	// Free-form exact-match filters: any scalar values keyed by lead field.
	models.TriggerLeadCreated: `{
		"type": "object",
		"additionalProperties": {"type": ["string", "number", "boolean", "null"]}
	}`,
	models.TriggerLeadUpdated: `{
		"type": "object",
		"additionalProperties": {"type": ["string", "number", "boolean", "null"]}
	}`,
	models.TriggerFormSubmission: `{
		"type": "object",
		"additionalProperties": {"type": ["string", "number", "boolean", "null"]}
	}`,
	models.TriggerStatusChanged: `{
		"type": "object",
		"properties": {
			"from": {"type": "string"},
			"to": {"type": "string"}
		},
		"additionalProperties": false
	}`,
	models.TriggerScoreThreshold: `{
		"type": "object",
		"properties": {
			"threshold": {"type": "integer", "minimum": 0, "maximum": 100},
			"direction": {"type": "string", "enum": ["above", "below"]}
		},
		"required": ["threshold", "direction"],
		"additionalProperties": false
	}`,
	models.TriggerInactivity: `{
		"type": "object",
		"properties": {
			"days": {"type": "integer", "minimum": 1}
		},
		"required": ["days"],
		"additionalProperties": false
	}`,
	models.TriggerDateBased: `{
		"type": "object",
		"properties": {
			"field": {"type": "string", "enum": ["created_at", "updated_at", "last_activity_at"]},
			"days": {"type": "integer", "minimum": 0}
		},
		"required": ["field", "days"],
		"additionalProperties": false
	}`,
}

var actionConfigSchemas = map[models.ActionType]string{
	models.ActionSendEmail: `{
		"type": "object",
		"properties": {"template": {"type": "string", "minLength": 1}},
		"required": ["template"],
		"additionalProperties": false
	}`,
	models.ActionCreateTask: `{
		"type": "object",
		"properties": {
			"task_type": {"type": "string", "minLength": 1},
			"task_config": {"type": "object"},
			"delay_hours": {"type": "integer", "minimum": 0}
		},
		"required": ["task_type"],
		"additionalProperties": false
	}`,
	models.ActionAssignUser: `{
		"type": "object",
		"properties": {"assign_to": {"type": "string", "minLength": 1}},
		"required": ["assign_to"],
		"additionalProperties": false
	}`,
	models.ActionUpdateStatus: `{
		"type": "object",
		"properties": {"status": {"type": "string", "minLength": 1}},
		"required": ["status"],
		"additionalProperties": false
	}`,
	models.ActionUpdateScore: `{
		"type": "object",
		"properties": {"increment": {"type": "integer", "minimum": -100, "maximum": 100}},
		"required": ["increment"],
		"additionalProperties": false
	}`,
	models.ActionAddToCampaign: `{
		"type": "object",
		"properties": {"campaign_id": {"type": "string", "minLength": 1}},
		"required": ["campaign_id"],
		"additionalProperties": false
	}`,
	models.ActionSendWebhook: `{
		"type": "object",
		"properties": {"webhook_id": {"type": "string", "minLength": 1}},
		"required": ["webhook_id"],
		"additionalProperties": false
	}`,
	models.ActionAddTag: `{
		"type": "object",
		"properties": {"tag": {"type": "string", "minLength": 1}},
		"required": ["tag"],
		"additionalProperties": false
	}`,
}

// ValidateTriggerConfig checks a trigger config against the schema for its
// trigger type. An absent config is treated as the empty object.
func ValidateTriggerConfig(triggerType models.TriggerType, config json.RawMessage) error {
	schema, ok := triggerConfigSchemas[triggerType]
	if !ok {
		return NewValidationError("unsupported trigger type: %s", triggerType)
	}
	return validateAgainstSchema(schema, config, "trigger_config")
}

// ValidateActionConfig checks an action config against the schema for its
// action type.
func ValidateActionConfig(actionType models.ActionType, config json.RawMessage) error {
	schema, ok := actionConfigSchemas[actionType]
	if !ok {
		return NewValidationError("unsupported action type: %s", actionType)
	}
	if len(config) == 0 {
		return NewValidationError("action_config is required for %s", actionType)
	}
	return validateAgainstSchema(schema, config, "action_config")
}

func validateAgainstSchema(schema string, document json.RawMessage, label string) error {
	if len(document) == 0 {
		document = json.RawMessage(`{}`)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return NewValidationError("invalid %s: %v", label, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return NewValidationError("invalid %s: %s", label, strings.Join(messages, "; "))
	}
	return nil
}
