package automation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/relaycrm/relaycrm/internal/testutil/fakes"
	"github.com/stretchr/testify/assert"
)

func fixed() time.Time {
	return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
}

func mustJSON(v map[string]any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func leadCreatedRule(config json.RawMessage) *models.AutomationRule {
	return &models.AutomationRule{
		ID:            "rule-1",
		UserID:        "tenant-1",
		Name:          "test rule",
		TriggerType:   models.TriggerLeadCreated,
		TriggerConfig: config,
		ActionType:    models.ActionAddTag,
		ActionConfig:  mustJSON(map[string]any{"tag": "t"}),
		IsActive:      true,
	}
}

func TestMatches_LeadCreated_EmptyConfigMatchesEverything(t *testing.T) {
	matcher := NewMatcher(fakes.NewFakeCRM())

	matched, err := matcher.Matches(context.Background(), leadCreatedRule(nil), models.TriggerEvent{
		Type:   models.TriggerLeadCreated,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1"},
	})

	assert.NoError(t, err)
	assert.True(t, matched)
}

func TestMatches_LeadCreated_FilterValueMismatch(t *testing.T) {
	matcher := NewMatcher(fakes.NewFakeCRM())
	rule := leadCreatedRule(mustJSON(map[string]any{"lead_temperature": "hot"}))

	matched, err := matcher.Matches(context.Background(), rule, models.TriggerEvent{
		Type:   models.TriggerLeadCreated,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1", "lead_temperature": "cold"},
	})

	assert.NoError(t, err)
	assert.False(t, matched)
}

func TestMatches_LeadCreated_FilterFieldAbsentFromEvent(t *testing.T) {
	matcher := NewMatcher(fakes.NewFakeCRM())
	rule := leadCreatedRule(mustJSON(map[string]any{"lead_temperature": "hot"}))

	// The payload never mentions temperature at all; an absent field is a
	// non-match, not an error.
	matched, err := matcher.Matches(context.Background(), rule, models.TriggerEvent{
		Type:   models.TriggerLeadCreated,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1", "business_name": "Acme"},
	})

	assert.NoError(t, err)
	assert.False(t, matched)
}

func TestMatches_LeadCreated_NumericFilterToleratesJSONFloats(t *testing.T) {
	matcher := NewMatcher(fakes.NewFakeCRM())
	rule := leadCreatedRule(mustJSON(map[string]any{"lead_score": 50}))

	matched, err := matcher.Matches(context.Background(), rule, models.TriggerEvent{
		Type:   models.TriggerLeadCreated,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1", "lead_score": float64(50)},
	})

	assert.NoError(t, err)
	assert.True(t, matched)
}

func TestMatches_StatusChanged_MatchesToAndFrom(t *testing.T) {
	matcher := NewMatcher(fakes.NewFakeCRM())
	rule := &models.AutomationRule{
		ID:            "rule-1",
		UserID:        "tenant-1",
		TriggerType:   models.TriggerStatusChanged,
		TriggerConfig: mustJSON(map[string]any{"from": "new", "to": "qualified"}),
		ActionType:    models.ActionAddTag,
		ActionConfig:  mustJSON(map[string]any{"tag": "t"}),
	}

	matched, err := matcher.Matches(context.Background(), rule, models.TriggerEvent{
		Type:   models.TriggerStatusChanged,
		UserID: "tenant-1",
		Data: map[string]interface{}{
			"business_id": "lead-1",
			"oldStatus":   "new",
			"newStatus":   "qualified",
		},
	})
	assert.NoError(t, err)
	assert.True(t, matched)

	matched, err = matcher.Matches(context.Background(), rule, models.TriggerEvent{
		Type:   models.TriggerStatusChanged,
		UserID: "tenant-1",
		Data: map[string]interface{}{
			"business_id": "lead-1",
			"oldStatus":   "contacted",
			"newStatus":   "qualified",
		},
	})
	assert.NoError(t, err)
	assert.False(t, matched)
}

func TestMatches_ScoreThreshold_ReadsCurrentLeadState(t *testing.T) {
	crm := fakes.NewFakeCRM()
	crm.SeedLead(models.Lead{ID: "lead-1", UserID: "tenant-1", BusinessName: "Acme", Score: 80})
	matcher := NewMatcher(crm)

	rule := &models.AutomationRule{
		ID:            "rule-1",
		UserID:        "tenant-1",
		TriggerType:   models.TriggerScoreThreshold,
		TriggerConfig: mustJSON(map[string]any{"threshold": 75, "direction": "above"}),
		ActionType:    models.ActionAddTag,
		ActionConfig:  mustJSON(map[string]any{"tag": "t"}),
	}

	matched, err := matcher.Matches(context.Background(), rule, models.TriggerEvent{
		Type:   models.TriggerScoreThreshold,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1"},
	})
	assert.NoError(t, err)
	assert.True(t, matched)

	rule.TriggerConfig = mustJSON(map[string]any{"threshold": 75, "direction": "below"})
	matched, err = matcher.Matches(context.Background(), rule, models.TriggerEvent{
		Type:   models.TriggerScoreThreshold,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1"},
	})
	assert.NoError(t, err)
	assert.False(t, matched)
}

func TestMatches_ScoreThreshold_NoBusinessIDIsNonMatch(t *testing.T) {
	matcher := NewMatcher(fakes.NewFakeCRM())
	rule := &models.AutomationRule{
		ID:            "rule-1",
		UserID:        "tenant-1",
		TriggerType:   models.TriggerScoreThreshold,
		TriggerConfig: mustJSON(map[string]any{"threshold": 50, "direction": "above"}),
		ActionType:    models.ActionAddTag,
		ActionConfig:  mustJSON(map[string]any{"tag": "t"}),
	}

	matched, err := matcher.Matches(context.Background(), rule, models.TriggerEvent{
		Type:   models.TriggerScoreThreshold,
		UserID: "tenant-1",
		Data:   map[string]interface{}{},
	})

	assert.NoError(t, err)
	assert.False(t, matched)
}

func TestMatches_Inactivity_ComparesElapsedDays(t *testing.T) {
	matcher := NewMatcher(fakes.NewFakeCRM())
	rule := &models.AutomationRule{
		ID:            "rule-1",
		UserID:        "tenant-1",
		TriggerType:   models.TriggerInactivity,
		TriggerConfig: mustJSON(map[string]any{"days": 14}),
		ActionType:    models.ActionAddTag,
		ActionConfig:  mustJSON(map[string]any{"tag": "t"}),
	}

	matched, err := matcher.Matches(context.Background(), rule, models.TriggerEvent{
		Type:   models.TriggerInactivity,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1", "days_inactive": float64(20)},
	})
	assert.NoError(t, err)
	assert.True(t, matched)

	matched, err = matcher.Matches(context.Background(), rule, models.TriggerEvent{
		Type:   models.TriggerInactivity,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1", "days_inactive": float64(7)},
	})
	assert.NoError(t, err)
	assert.False(t, matched)
}

func TestMatches_DateBased_FieldMustMatch(t *testing.T) {
	matcher := NewMatcher(fakes.NewFakeCRM())
	rule := &models.AutomationRule{
		ID:            "rule-1",
		UserID:        "tenant-1",
		TriggerType:   models.TriggerDateBased,
		TriggerConfig: mustJSON(map[string]any{"field": "created_at", "days": 30}),
		ActionType:    models.ActionAddTag,
		ActionConfig:  mustJSON(map[string]any{"tag": "t"}),
	}

	matched, err := matcher.Matches(context.Background(), rule, models.TriggerEvent{
		Type:   models.TriggerDateBased,
		UserID: "tenant-1",
		Data: map[string]interface{}{
			"business_id":  "lead-1",
			"field":        "updated_at",
			"days_elapsed": float64(45),
		},
	})
	assert.NoError(t, err)
	assert.False(t, matched)

	matched, err = matcher.Matches(context.Background(), rule, models.TriggerEvent{
		Type:   models.TriggerDateBased,
		UserID: "tenant-1",
		Data: map[string]interface{}{
			"business_id":  "lead-1",
			"field":        "created_at",
			"days_elapsed": float64(45),
		},
	})
	assert.NoError(t, err)
	assert.True(t, matched)
}

func TestMatches_MalformedConfig_ReturnsValidationError(t *testing.T) {
	matcher := NewMatcher(fakes.NewFakeCRM())
	rule := &models.AutomationRule{
		ID:            "rule-1",
		UserID:        "tenant-1",
		TriggerType:   models.TriggerScoreThreshold,
		TriggerConfig: json.RawMessage(`{"threshold": "high"}`),
		ActionType:    models.ActionAddTag,
		ActionConfig:  mustJSON(map[string]any{"tag": "t"}),
	}

	_, err := matcher.Matches(context.Background(), rule, models.TriggerEvent{
		Type:   models.TriggerScoreThreshold,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1"},
	})

	var vErr ValidationError
	assert.True(t, errors.As(err, &vErr))
}
