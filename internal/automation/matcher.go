package automation

import (
	"encoding/json"
	"fmt"

	"context"

	"github.com/relaycrm/relaycrm/internal/models"
)

// Matcher evaluates a rule's trigger configuration against a trigger event.
// score_threshold rules read the lead's current state, not just the event
// payload, so the matcher carries a LeadReader.
type Matcher struct {
	leads LeadReader
}

// NewMatcher creates a matcher backed by the given lead reader.
func NewMatcher(leads LeadReader) *Matcher {
	return &Matcher{leads: leads}
}

// Matches reports whether the rule's trigger condition holds for the event.
// A malformed trigger_config returns an error; the dispatcher records such
// rules as skipped without aborting sibling evaluations.
func (m *Matcher) Matches(ctx context.Context, rule *models.AutomationRule, event models.TriggerEvent) (bool, error) {
	if err := ValidateTriggerConfig(rule.TriggerType, rule.TriggerConfig); err != nil {
		return false, err
	}

	switch rule.TriggerType {
	case models.TriggerLeadCreated, models.TriggerLeadUpdated, models.TriggerFormSubmission:
		return matchFieldFilters(rule.TriggerConfig, event.Data)
	case models.TriggerStatusChanged:
		return matchStatusChanged(rule.TriggerConfig, event.Data)
	case models.TriggerScoreThreshold:
		return m.matchScoreThreshold(ctx, rule, event)
	case models.TriggerInactivity:
		return matchElapsedDays(rule.TriggerConfig, event.Data, "days_inactive")
	case models.TriggerDateBased:
		return matchDateBased(rule.TriggerConfig, event.Data)
	default:
		return false, NewValidationError("unsupported trigger type: %s", rule.TriggerType)
	}
}

// matchFieldFilters requires every configured key to equal the corresponding
// event field exactly. An empty config matches everything.
func matchFieldFilters(config json.RawMessage, data map[string]interface{}) (bool, error) {
	filters, err := decodeConfigMap(config)
	if err != nil {
		return false, err
	}

	for key, want := range filters {
		got, present := data[key]
		if !present {
			return false, nil
		}
		if !valuesEqual(want, got) {
			return false, nil
		}
	}
	return true, nil
}

func matchStatusChanged(config json.RawMessage, data map[string]interface{}) (bool, error) {
	var cfg models.StatusChangedTriggerConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return false, err
	}

	if cfg.To != "" {
		newStatus, _ := data["newStatus"].(string)
		if newStatus != cfg.To {
			return false, nil
		}
	}
	if cfg.From != "" {
		oldStatus, _ := data["oldStatus"].(string)
		if oldStatus != cfg.From {
			return false, nil
		}
	}
	return true, nil
}

func (m *Matcher) matchScoreThreshold(ctx context.Context, rule *models.AutomationRule, event models.TriggerEvent) (bool, error) {
	var cfg models.ScoreThresholdTriggerConfig
	if err := decodeConfig(rule.TriggerConfig, &cfg); err != nil {
		return false, err
	}

	businessID := event.BusinessID()
	if businessID == "" {
		return false, nil
	}

	lead, err := m.leads.GetLead(ctx, rule.UserID, businessID)
	if err != nil {
		return false, fmt.Errorf("read lead for score threshold: %w", err)
	}

	switch cfg.Direction {
	case models.DirectionAbove:
		return lead.Score >= cfg.Threshold, nil
	case models.DirectionBelow:
		return lead.Score <= cfg.Threshold, nil
	default:
		return false, NewValidationError("unknown threshold direction: %s", cfg.Direction)
	}
}

// matchElapsedDays compares the sweeper-computed elapsed days in the event
// payload against the configured minimum.
func matchElapsedDays(config json.RawMessage, data map[string]interface{}, key string) (bool, error) {
	var cfg models.InactivityTriggerConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return false, err
	}

	elapsed, ok := numericValue(data[key])
	if !ok {
		return false, nil
	}
	return int(elapsed) >= cfg.Days, nil
}

func matchDateBased(config json.RawMessage, data map[string]interface{}) (bool, error) {
	var cfg models.DateBasedTriggerConfig
	if err := decodeConfig(config, &cfg); err != nil {
		return false, err
	}

	if field, _ := data["field"].(string); field != cfg.Field {
		return false, nil
	}
	elapsed, ok := numericValue(data["days_elapsed"])
	if !ok {
		return false, nil
	}
	return int(elapsed) >= cfg.Days, nil
}

func decodeConfig(config json.RawMessage, out interface{}) error {
	if len(config) == 0 {
		return nil
	}
	if err := json.Unmarshal(config, out); err != nil {
		return NewValidationError("malformed trigger_config: %v", err)
	}
	return nil
}

func decodeConfigMap(config json.RawMessage) (map[string]interface{}, error) {
	if len(config) == 0 {
		return nil, nil
	}
	var filters map[string]interface{}
	if err := json.Unmarshal(config, &filters); err != nil {
		return nil, NewValidationError("malformed trigger_config: %v", err)
	}
	return filters, nil
}

// valuesEqual compares JSON-decoded values, treating all numeric types as
// equal when their values match.
func valuesEqual(a, b interface{}) bool {
	if an, ok := numericValue(a); ok {
		if bn, bok := numericValue(b); bok {
			return an == bn
		}
		return false
	}
	return a == b
}

func numericValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
