package sweeper

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/relaycrm/relaycrm/internal/logging"
	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/relaycrm/relaycrm/internal/testutil/fakes"
	"github.com/relaycrm/relaycrm/pkg/clock"
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

type stubRuleScanner struct {
	rules []models.AutomationRule
}

func (s *stubRuleScanner) ListActiveTimeBasedRules(_ context.Context) ([]models.AutomationRule, error) {
	return s.rules, nil
}

type stubLeadScanner struct {
	inactive map[string][]models.Lead // tenant -> leads
	byField  map[string][]models.Lead // tenant/field -> leads

	mu              sync.Mutex
	inactiveCutoffs []time.Time
}

func (s *stubLeadScanner) ListLeadsInactiveSince(_ context.Context, userID string, cutoff time.Time, _ int) ([]models.Lead, error) {
	s.mu.Lock()
	s.inactiveCutoffs = append(s.inactiveCutoffs, cutoff)
	s.mu.Unlock()
	return s.inactive[userID], nil
}

func (s *stubLeadScanner) ListLeadsPastDateField(_ context.Context, userID, field string, _, _ int) ([]models.Lead, error) {
	return s.byField[userID+"/"+field], nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []models.TriggerEvent
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event models.TriggerEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) dispatched() []models.TriggerEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.TriggerEvent(nil), d.events...)
}

type recordingRunner struct {
	mu     sync.Mutex
	ran    []string
	failOn map[string]error
}

func (r *recordingRunner) Run(_ context.Context, task *models.ScheduledTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, task.ID)
	if r.failOn != nil {
		if err, ok := r.failOn[task.ID]; ok {
			return err
		}
	}
	return nil
}

func (r *recordingRunner) runs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

func inactivityRule(id, tenant string, days int) models.AutomationRule {
	return models.AutomationRule{
		ID:            id,
		UserID:        tenant,
		TriggerType:   models.TriggerInactivity,
		TriggerConfig: mustJSON(map[string]any{"days": days}),
		ActionType:    models.ActionSendEmail,
		IsActive:      true,
	}
}

func dateRule(id, tenant, field string, days int) models.AutomationRule {
	return models.AutomationRule{
		ID:            id,
		UserID:        tenant,
		TriggerType:   models.TriggerDateBased,
		TriggerConfig: mustJSON(map[string]any{"field": field, "days": days}),
		ActionType:    models.ActionSendEmail,
		IsActive:      true,
	}
}

func TestSweep_Inactivity_OneEventPerLeadUsingLoosestRule(t *testing.T) {
	idle := fixed().AddDate(0, 0, -10)
	leads := &stubLeadScanner{
		inactive: map[string][]models.Lead{
			"tenant-1": {{
				ID:           "lead-1",
				UserID:       "tenant-1",
				BusinessName: "Acme",
				Status:       "contacted",
				UpdatedAt:    idle,
			}},
		},
	}
	dispatcher := &recordingDispatcher{}
	engine := NewEngine(
		&stubRuleScanner{rules: []models.AutomationRule{
			inactivityRule("rule-7", "tenant-1", 7),
			inactivityRule("rule-14", "tenant-1", 14),
		}},
		leads,
		fakes.NewFakeTaskStore(),
		&recordingRunner{},
		dispatcher,
		clock.NewFixed(fixed()),
		logging.NewNoOpLogger(),
	)

	engine.SweepTimeBasedRules(context.Background())

	// Both rules share the tenant's single scan: one event per lead, cut off
	// at the loosest (smallest) day threshold.
	assert.Equal(t, []time.Time{fixed().AddDate(0, 0, -7)}, leads.inactiveCutoffs)

	events := dispatcher.dispatched()
	assert.Len(t, events, 1)
	assert.Equal(t, models.TriggerInactivity, events[0].Type)
	assert.Equal(t, models.SourceSweeper, events[0].Source)
	assert.Equal(t, "tenant-1", events[0].UserID)
	assert.Equal(t, "lead-1", events[0].BusinessID())
	assert.Equal(t, 10, events[0].Data["days_inactive"])
}

func TestSweep_Inactivity_PrefersLastActivityOverUpdatedAt(t *testing.T) {
	lastActivity := fixed().AddDate(0, 0, -20)
	leads := &stubLeadScanner{
		inactive: map[string][]models.Lead{
			"tenant-1": {{
				ID:           "lead-1",
				UserID:       "tenant-1",
				BusinessName: "Acme",
				UpdatedAt:    fixed().AddDate(0, 0, -3),
				LastActivity: &lastActivity,
			}},
		},
	}
	dispatcher := &recordingDispatcher{}
	engine := NewEngine(
		&stubRuleScanner{rules: []models.AutomationRule{inactivityRule("rule-1", "tenant-1", 7)}},
		leads, fakes.NewFakeTaskStore(), &recordingRunner{}, dispatcher, clock.NewFixed(fixed()), logging.NewNoOpLogger(),
	)

	engine.SweepTimeBasedRules(context.Background())

	events := dispatcher.dispatched()
	assert.Len(t, events, 1)
	assert.Equal(t, 20, events[0].Data["days_inactive"])
}

func TestSweep_DateBased_OneScanPerFieldWithElapsedDays(t *testing.T) {
	created := fixed().AddDate(0, 0, -45)
	leads := &stubLeadScanner{
		byField: map[string][]models.Lead{
			"tenant-1/created_at": {{
				ID:           "lead-1",
				UserID:       "tenant-1",
				BusinessName: "Acme",
				Status:       "new",
				CreatedAt:    created,
			}},
		},
	}
	dispatcher := &recordingDispatcher{}
	engine := NewEngine(
		&stubRuleScanner{rules: []models.AutomationRule{
			dateRule("rule-30", "tenant-1", "created_at", 30),
			dateRule("rule-60", "tenant-1", "created_at", 60),
		}},
		leads, fakes.NewFakeTaskStore(), &recordingRunner{}, dispatcher, clock.NewFixed(fixed()), logging.NewNoOpLogger(),
	)

	engine.SweepTimeBasedRules(context.Background())

	events := dispatcher.dispatched()
	assert.Len(t, events, 1)
	assert.Equal(t, models.TriggerDateBased, events[0].Type)
	assert.Equal(t, "created_at", events[0].Data["field"])
	assert.Equal(t, 45, events[0].Data["days_elapsed"])
}

func TestSweep_MalformedRuleConfigsAreIgnored(t *testing.T) {
	broken := models.AutomationRule{
		ID:            "rule-broken",
		UserID:        "tenant-1",
		TriggerType:   models.TriggerInactivity,
		TriggerConfig: json.RawMessage(`{"days": "soon"}`),
		ActionType:    models.ActionSendEmail,
		IsActive:      true,
	}
	dispatcher := &recordingDispatcher{}
	engine := NewEngine(
		&stubRuleScanner{rules: []models.AutomationRule{broken}},
		&stubLeadScanner{}, fakes.NewFakeTaskStore(), &recordingRunner{}, dispatcher, clock.NewFixed(fixed()), logging.NewNoOpLogger(),
	)

	engine.SweepTimeBasedRules(context.Background())

	assert.Empty(t, dispatcher.dispatched())
}

func TestRunDueTasks_ClaimsAndRunsEachTaskOnce(t *testing.T) {
	tasks := fakes.NewFakeTaskStore()
	tasks.SetNow(fixed)
	assert.NoError(t, tasks.CreateScheduledTask(context.Background(), &models.ScheduledTask{
		ID:           "task-1",
		UserID:       "tenant-1",
		BusinessID:   "lead-1",
		TaskType:     "follow_up",
		Status:       models.TaskStatusPending,
		ScheduledFor: fixed().Add(-time.Hour),
	}))
	assert.NoError(t, tasks.CreateScheduledTask(context.Background(), &models.ScheduledTask{
		ID:           "task-future",
		UserID:       "tenant-1",
		BusinessID:   "lead-2",
		TaskType:     "follow_up",
		Status:       models.TaskStatusPending,
		ScheduledFor: fixed().Add(time.Hour),
	}))

	runner := &recordingRunner{}
	engine := NewEngine(
		&stubRuleScanner{}, &stubLeadScanner{}, tasks, runner, &recordingDispatcher{},
		clock.NewFixed(fixed()), logging.NewNoOpLogger(),
	)

	engine.RunDueTasks(context.Background())
	engine.RunDueTasks(context.Background())

	// Claim-once semantics: the due task's effect runs exactly once across
	// repeated sweeps, and the future task is untouched.
	assert.Equal(t, []string{"task-1"}, runner.runs())

	executed := 0
	for _, task := range tasks.Tasks() {
		switch task.ID {
		case "task-1":
			assert.Equal(t, models.TaskStatusExecuted, task.Status)
			assert.NotNil(t, task.ExecutedAt)
			executed++
		case "task-future":
			assert.Equal(t, models.TaskStatusPending, task.Status)
		}
	}
	assert.Equal(t, 1, executed)
}

func TestRunDueTasks_RunnerFailureMarksTaskFailed(t *testing.T) {
	tasks := fakes.NewFakeTaskStore()
	tasks.SetNow(fixed)
	assert.NoError(t, tasks.CreateScheduledTask(context.Background(), &models.ScheduledTask{
		ID:           "task-bad",
		UserID:       "tenant-1",
		BusinessID:   "lead-1",
		TaskType:     "follow_up",
		Status:       models.TaskStatusPending,
		ScheduledFor: fixed().Add(-time.Hour),
	}))
	assert.NoError(t, tasks.CreateScheduledTask(context.Background(), &models.ScheduledTask{
		ID:           "task-good",
		UserID:       "tenant-1",
		BusinessID:   "lead-2",
		TaskType:     "follow_up",
		Status:       models.TaskStatusPending,
		ScheduledFor: fixed().Add(-time.Hour),
	}))

	runner := &recordingRunner{failOn: map[string]error{"task-bad": errors.New("lead gone")}}
	engine := NewEngine(
		&stubRuleScanner{}, &stubLeadScanner{}, tasks, runner, &recordingDispatcher{},
		clock.NewFixed(fixed()), logging.NewNoOpLogger(),
	)

	engine.RunDueTasks(context.Background())

	for _, task := range tasks.Tasks() {
		switch task.ID {
		case "task-bad":
			assert.Equal(t, models.TaskStatusFailed, task.Status)
			assert.NotNil(t, task.ErrorMessage)
			assert.Equal(t, "lead gone", *task.ErrorMessage)
		case "task-good":
			assert.Equal(t, models.TaskStatusExecuted, task.Status)
		}
	}
}
