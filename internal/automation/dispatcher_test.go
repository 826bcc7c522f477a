package automation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/relaycrm/relaycrm/internal/testutil/fakes"
	"github.com/relaycrm/relaycrm/pkg/clock"
	"github.com/stretchr/testify/assert"
)

type dispatcherDeps struct {
	rules     *fakes.FakeRuleStore
	logs      *fakes.FakeLogStore
	crm       *fakes.FakeCRM
	publisher *fakes.FakePublisher
}

func newTestDispatcher(t *testing.T) (*Dispatcher, dispatcherDeps) {
	t.Helper()
	deps := dispatcherDeps{
		rules:     fakes.NewFakeRuleStore(),
		logs:      fakes.NewFakeLogStore(),
		crm:       fakes.NewFakeCRM(),
		publisher: &fakes.FakePublisher{},
	}
	matcher := NewMatcher(deps.crm)
	executor := NewExecutor(deps.crm, fakes.NewFakeTaskStore(), deps.crm, &fakes.FakeEmailSender{}, &fakes.FakeNotifier{}, clock.NewFixed(fixed()), logging.NewNoOpLogger())
	dispatcher := NewDispatcher(deps.rules, deps.logs, matcher, executor, deps.publisher, clock.NewFixed(fixed()), logging.NewNoOpLogger())
	return dispatcher, deps
}

func seedRule(t *testing.T, store *fakes.FakeRuleStore, rule models.AutomationRule) {
	t.Helper()
	if rule.ActionConfig == nil {
		rule.ActionConfig = mustJSON(map[string]any{"tag": "t"})
	}
	assert.NoError(t, store.CreateRule(context.Background(), &rule))
}

func TestDispatch_RulesRunInPriorityOrder(t *testing.T) {
	dispatcher, deps := newTestDispatcher(t)
	deps.crm.SeedLead(models.Lead{ID: "lead-1", UserID: "tenant-1", BusinessName: "Acme", Status: "new"})

	// Inserted out of order on purpose: the low-priority rule runs first, the
	// high-priority rule runs last and owns the final status.
	seedRule(t, deps.rules, models.AutomationRule{
		ID: "rule-late", UserID: "tenant-1", Name: "late",
		TriggerType: models.TriggerLeadCreated,
		ActionType:  models.ActionUpdateStatus,
		ActionConfig: mustJSON(map[string]any{
			"status": "qualified",
		}),
		IsActive: true, Priority: 5,
	})
	seedRule(t, deps.rules, models.AutomationRule{
		ID: "rule-early", UserID: "tenant-1", Name: "early",
		TriggerType: models.TriggerLeadCreated,
		ActionType:  models.ActionUpdateStatus,
		ActionConfig: mustJSON(map[string]any{
			"status": "contacted",
		}),
		IsActive: true, Priority: 1,
	})

	err := dispatcher.Dispatch(context.Background(), models.TriggerEvent{
		Type:   models.TriggerLeadCreated,
		Source: models.SourceCRM,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1"},
	})

	assert.NoError(t, err)
	lead, _ := deps.crm.Lead("lead-1")
	assert.Equal(t, "qualified", lead.Status)
	assert.Len(t, deps.logs.EntriesForRule("rule-early"), 1)
	assert.Len(t, deps.logs.EntriesForRule("rule-late"), 1)
}

func TestDispatch_MatchedRuleGetsTerminalLogRow(t *testing.T) {
	dispatcher, deps := newTestDispatcher(t)
	deps.crm.SeedLead(models.Lead{ID: "lead-1", UserID: "tenant-1", BusinessName: "Acme"})
	seedRule(t, deps.rules, models.AutomationRule{
		ID: "rule-1", UserID: "tenant-1", Name: "tag it",
		TriggerType: models.TriggerLeadCreated,
		ActionType:  models.ActionAddTag,
		IsActive:    true,
	})

	err := dispatcher.Dispatch(context.Background(), models.TriggerEvent{
		Type:   models.TriggerLeadCreated,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1"},
	})

	assert.NoError(t, err)
	entries := deps.logs.EntriesForRule("rule-1")
	assert.Len(t, entries, 1)
	assert.Equal(t, models.LogStatusSuccess, entries[0].Status)
	assert.Equal(t, "tenant-1", entries[0].UserID)
	assert.NotNil(t, entries[0].CompletedAt)
	assert.NotNil(t, entries[0].BusinessID)
	assert.Equal(t, "lead-1", *entries[0].BusinessID)

	rule, err := deps.rules.GetRule(context.Background(), "rule-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), rule.TriggerCount)
	assert.NotNil(t, rule.LastTriggeredAt)
}

func TestDispatch_NonMatchingRuleLeavesNoLogRow(t *testing.T) {
	dispatcher, deps := newTestDispatcher(t)
	seedRule(t, deps.rules, models.AutomationRule{
		ID: "rule-1", UserID: "tenant-1", Name: "hot only",
		TriggerType:   models.TriggerLeadCreated,
		TriggerConfig: mustJSON(map[string]any{"lead_temperature": "hot"}),
		ActionType:    models.ActionAddTag,
		IsActive:      true,
	})

	err := dispatcher.Dispatch(context.Background(), models.TriggerEvent{
		Type:   models.TriggerLeadCreated,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1", "lead_temperature": "cold"},
	})

	assert.NoError(t, err)
	assert.Empty(t, deps.logs.Entries())
}

func TestDispatch_MalformedConfigSkipsRuleNotSiblings(t *testing.T) {
	dispatcher, deps := newTestDispatcher(t)
	deps.crm.SeedLead(models.Lead{ID: "lead-1", UserID: "tenant-1", BusinessName: "Acme"})

	seedRule(t, deps.rules, models.AutomationRule{
		ID: "rule-broken", UserID: "tenant-1", Name: "broken",
		TriggerType:   models.TriggerLeadCreated,
		TriggerConfig: json.RawMessage(`{not json`),
		ActionType:    models.ActionAddTag,
		IsActive:      true,
		Priority:      1,
	})
	seedRule(t, deps.rules, models.AutomationRule{
		ID: "rule-ok", UserID: "tenant-1", Name: "ok",
		TriggerType: models.TriggerLeadCreated,
		ActionType:  models.ActionAddTag,
		IsActive:    true,
		Priority:    2,
	})

	err := dispatcher.Dispatch(context.Background(), models.TriggerEvent{
		Type:   models.TriggerLeadCreated,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1"},
	})

	assert.NoError(t, err)

	broken := deps.logs.EntriesForRule("rule-broken")
	assert.Len(t, broken, 1)
	assert.Equal(t, models.LogStatusSkipped, broken[0].Status)
	assert.NotNil(t, broken[0].ErrorMessage)

	ok := deps.logs.EntriesForRule("rule-ok")
	assert.Len(t, ok, 1)
	assert.Equal(t, models.LogStatusSuccess, ok[0].Status)

	lead, _ := deps.crm.Lead("lead-1")
	assert.Equal(t, []string{"t"}, lead.Tags)
}

func TestDispatch_FailedActionRecordsFailureAndContinues(t *testing.T) {
	dispatcher, deps := newTestDispatcher(t)
	// No lead seeded: update_status fails, send of the second rule's tag
	// fails too, but both evaluations complete independently.
	seedRule(t, deps.rules, models.AutomationRule{
		ID: "rule-1", UserID: "tenant-1", Name: "status",
		TriggerType:  models.TriggerLeadCreated,
		ActionType:   models.ActionUpdateStatus,
		ActionConfig: mustJSON(map[string]any{"status": "contacted"}),
		IsActive:     true,
		Priority:     1,
	})
	seedRule(t, deps.rules, models.AutomationRule{
		ID: "rule-2", UserID: "tenant-1", Name: "tag",
		TriggerType: models.TriggerLeadCreated,
		ActionType:  models.ActionAddTag,
		IsActive:    true,
		Priority:    2,
	})

	err := dispatcher.Dispatch(context.Background(), models.TriggerEvent{
		Type:   models.TriggerLeadCreated,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "missing-lead"},
	})

	assert.NoError(t, err)
	for _, ruleID := range []string{"rule-1", "rule-2"} {
		entries := deps.logs.EntriesForRule(ruleID)
		assert.Len(t, entries, 1)
		assert.Equal(t, models.LogStatusFailed, entries[0].Status)
		assert.NotNil(t, entries[0].ErrorMessage)
	}
}

func TestDispatch_InactiveAndForeignRulesAreIgnored(t *testing.T) {
	dispatcher, deps := newTestDispatcher(t)
	deps.crm.SeedLead(models.Lead{ID: "lead-1", UserID: "tenant-1", BusinessName: "Acme"})
	seedRule(t, deps.rules, models.AutomationRule{
		ID: "rule-disabled", UserID: "tenant-1", Name: "off",
		TriggerType: models.TriggerLeadCreated,
		ActionType:  models.ActionAddTag,
		IsActive:    false,
	})
	seedRule(t, deps.rules, models.AutomationRule{
		ID: "rule-other-tenant", UserID: "tenant-2", Name: "other",
		TriggerType: models.TriggerLeadCreated,
		ActionType:  models.ActionAddTag,
		IsActive:    true,
	})

	err := dispatcher.Dispatch(context.Background(), models.TriggerEvent{
		Type:   models.TriggerLeadCreated,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1"},
	})

	assert.NoError(t, err)
	assert.Empty(t, deps.logs.Entries())
}

func TestDispatch_PublisherFailureDoesNotBlockRules(t *testing.T) {
	dispatcher, deps := newTestDispatcher(t)
	deps.crm.SeedLead(models.Lead{ID: "lead-1", UserID: "tenant-1", BusinessName: "Acme"})
	deps.publisher.FailNext = true
	seedRule(t, deps.rules, models.AutomationRule{
		ID: "rule-1", UserID: "tenant-1", Name: "tag",
		TriggerType: models.TriggerLeadCreated,
		ActionType:  models.ActionAddTag,
		IsActive:    true,
	})

	err := dispatcher.Dispatch(context.Background(), models.TriggerEvent{
		Type:   models.TriggerLeadCreated,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1"},
	})

	assert.NoError(t, err)
	entries := deps.logs.EntriesForRule("rule-1")
	assert.Len(t, entries, 1)
	assert.Equal(t, models.LogStatusSuccess, entries[0].Status)
}

func TestDispatch_EventsMirroredToBus(t *testing.T) {
	dispatcher, deps := newTestDispatcher(t)

	err := dispatcher.Dispatch(context.Background(), models.TriggerEvent{
		Type:   models.TriggerLeadCreated,
		Source: models.SourceCRM,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1"},
	})

	assert.NoError(t, err)
	assert.Len(t, deps.publisher.Events, 1)
	assert.Equal(t, models.TriggerLeadCreated, deps.publisher.Events[0].Type)
}

func TestDispatchDetached_RunsWithoutBlockingCaller(t *testing.T) {
	dispatcher, deps := newTestDispatcher(t)
	deps.crm.SeedLead(models.Lead{ID: "lead-1", UserID: "tenant-1", BusinessName: "Acme"})
	seedRule(t, deps.rules, models.AutomationRule{
		ID: "rule-1", UserID: "tenant-1", Name: "tag",
		TriggerType: models.TriggerLeadCreated,
		ActionType:  models.ActionAddTag,
		IsActive:    true,
	})

	dispatcher.DispatchDetached(models.TriggerEvent{
		Type:   models.TriggerLeadCreated,
		UserID: "tenant-1",
		Data:   map[string]interface{}{"business_id": "lead-1"},
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(deps.logs.EntriesForRule("rule-1")) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	entries := deps.logs.EntriesForRule("rule-1")
	assert.Len(t, entries, 1)
	assert.Equal(t, models.LogStatusSuccess, entries[0].Status)
}
