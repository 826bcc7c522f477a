package fakes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/relaycrm/relaycrm/internal/storage"
)

// FakeRuleStore is an in-memory implementation of the automation RuleStore.
type FakeRuleStore struct {
	mu    sync.Mutex
	rules map[string]models.AutomationRule
	seq   int
	order map[string]int // insertion order, stands in for created_at tiebreaks
}

func NewFakeRuleStore() *FakeRuleStore {
	return &FakeRuleStore{
		rules: make(map[string]models.AutomationRule),
		order: make(map[string]int),
	}
}

func (f *FakeRuleStore) CreateRule(_ context.Context, rule *models.AutomationRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := *rule
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.UpdatedAt = r.CreatedAt
	f.rules[r.ID] = r
	f.seq++
	f.order[r.ID] = f.seq
	return nil
}

func (f *FakeRuleStore) GetRule(_ context.Context, ruleID string) (*models.AutomationRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[ruleID]
	if !ok {
		return nil, storage.ErrRuleNotFound
	}
	return &r, nil
}

func (f *FakeRuleStore) ListActiveRulesByTrigger(_ context.Context, userID string, triggerType models.TriggerType) ([]models.AutomationRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]models.AutomationRule, 0)
	for _, r := range f.rules {
		if r.UserID == userID && r.TriggerType == triggerType && r.IsActive {
			list = append(list, r)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return f.order[list[i].ID] < f.order[list[j].ID]
	})
	return list, nil
}

func (f *FakeRuleStore) ListRules(_ context.Context, userID string, query models.ListRulesQuery) ([]models.AutomationRule, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]models.AutomationRule, 0)
	for _, r := range f.rules {
		if r.UserID != userID {
			continue
		}
		if query.TriggerType != "" && string(r.TriggerType) != query.TriggerType {
			continue
		}
		if query.ActionType != "" && string(r.ActionType) != query.ActionType {
			continue
		}
		if query.Active != "" && r.IsActive != (query.Active == "true") {
			continue
		}
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Priority != list[j].Priority {
			return list[i].Priority < list[j].Priority
		}
		return f.order[list[i].ID] < f.order[list[j].ID]
	})
	total := int64(len(list))
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}
	start := (query.Page - 1) * query.Limit
	if start > len(list) {
		return []models.AutomationRule{}, total, nil
	}
	end := start + query.Limit
	if end > len(list) {
		end = len(list)
	}
	return list[start:end], total, nil
}

func (f *FakeRuleStore) UpdateRule(_ context.Context, ruleID string, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[ruleID]
	if !ok {
		return storage.ErrRuleNotFound
	}
	for k, v := range updates {
		switch k {
		case "name":
			r.Name = v.(string)
		case "description":
			r.Description = v.(string)
		case "is_active":
			r.IsActive = v.(bool)
		case "priority":
			r.Priority = v.(int)
		case "trigger_config":
			r.TriggerConfig = []byte(v.(string))
		case "action_config":
			r.ActionConfig = []byte(v.(string))
		}
	}
	r.UpdatedAt = time.Now().UTC()
	f.rules[ruleID] = r
	return nil
}

func (f *FakeRuleStore) DeleteRule(_ context.Context, ruleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rules[ruleID]; !ok {
		return storage.ErrRuleNotFound
	}
	delete(f.rules, ruleID)
	delete(f.order, ruleID)
	return nil
}

func (f *FakeRuleStore) RecordRuleTriggered(_ context.Context, ruleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[ruleID]
	if !ok {
		return storage.ErrRuleNotFound
	}
	r.TriggerCount++
	now := time.Now().UTC()
	r.LastTriggeredAt = &now
	f.rules[ruleID] = r
	return nil
}
