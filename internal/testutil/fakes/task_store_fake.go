package fakes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/relaycrm/relaycrm/internal/models"
)

// FakeTaskStore is an in-memory scheduled task store with the same
// claim-once semantics as the SQL layer.
type FakeTaskStore struct {
	mu    sync.Mutex
	tasks map[string]models.ScheduledTask
	now   func() time.Time
}

func NewFakeTaskStore() *FakeTaskStore {
	return &FakeTaskStore{
		tasks: make(map[string]models.ScheduledTask),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the store's notion of current time for due checks.
func (f *FakeTaskStore) SetNow(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

func (f *FakeTaskStore) CreateScheduledTask(_ context.Context, task *models.ScheduledTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := *task
	if t.CreatedAt.IsZero() {
		t.CreatedAt = f.now()
	}
	f.tasks[t.ID] = t
	return nil
}

func (f *FakeTaskStore) GetDueTasks(_ context.Context, limit int) ([]models.ScheduledTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	due := make([]models.ScheduledTask, 0)
	for _, t := range f.tasks {
		if t.Status == models.TaskStatusPending && !t.ScheduledFor.After(f.now()) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledFor.Before(due[j].ScheduledFor) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *FakeTaskStore) ClaimTask(_ context.Context, taskID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok || t.Status != models.TaskStatusPending {
		return false, nil
	}
	now := f.now()
	t.Status = models.TaskStatusExecuted
	t.ExecutedAt = &now
	f.tasks[taskID] = t
	return true, nil
}

func (f *FakeTaskStore) FailTask(_ context.Context, taskID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok {
		return nil
	}
	now := f.now()
	t.Status = models.TaskStatusFailed
	t.ErrorMessage = &message
	t.ExecutedAt = &now
	f.tasks[taskID] = t
	return nil
}

// Tasks returns all stored tasks for assertions.
func (f *FakeTaskStore) Tasks() []models.ScheduledTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.ScheduledTask, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, t)
	}
	return out
}
