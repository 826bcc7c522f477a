package fakes

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/relaycrm/relaycrm/internal/models"
)

// FakeLogStore is an in-memory automation log store enforcing the same
// lifecycle constraints the SQL layer does.
type FakeLogStore struct {
	mu   sync.Mutex
	logs map[string]models.AutomationLog
	seq  int
	ord  map[string]int
}

func NewFakeLogStore() *FakeLogStore {
	return &FakeLogStore{
		logs: make(map[string]models.AutomationLog),
		ord:  make(map[string]int),
	}
}

func (f *FakeLogStore) CreateAutomationLog(_ context.Context, log *models.AutomationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := *log
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now().UTC()
	}
	f.logs[entry.ID] = entry
	f.seq++
	f.ord[entry.ID] = f.seq
	return nil
}

func (f *FakeLogStore) MarkAutomationLogRunning(_ context.Context, logID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.logs[logID]
	if !ok {
		return errors.New("log not found")
	}
	if entry.Status != models.LogStatusPending {
		return nil
	}
	entry.Status = models.LogStatusRunning
	f.logs[logID] = entry
	return nil
}

func (f *FakeLogStore) CompleteAutomationLog(_ context.Context, logID string, status models.AutomationLogStatus, actionResult json.RawMessage, errorMessage *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !status.Terminal() {
		return errors.New("completion requires a terminal status")
	}
	entry, ok := f.logs[logID]
	if !ok {
		return errors.New("log not found")
	}
	if entry.CompletedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	entry.Status = status
	entry.ActionResult = actionResult
	entry.ErrorMessage = errorMessage
	entry.CompletedAt = &now
	f.logs[logID] = entry
	return nil
}

func (f *FakeLogStore) GetAutomationLog(_ context.Context, userID, logID string) (*models.AutomationLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.logs[logID]
	if !ok || entry.UserID != userID {
		return nil, nil
	}
	return &entry, nil
}

func (f *FakeLogStore) ListAutomationLogs(_ context.Context, userID string, query models.ListLogsQuery) ([]models.AutomationLog, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]models.AutomationLog, 0)
	for _, entry := range f.logs {
		if entry.UserID != userID {
			continue
		}
		if query.RuleID != "" && (entry.RuleID == nil || *entry.RuleID != query.RuleID) {
			continue
		}
		if query.BusinessID != "" && (entry.BusinessID == nil || *entry.BusinessID != query.BusinessID) {
			continue
		}
		if query.Status != "" && string(entry.Status) != query.Status {
			continue
		}
		list = append(list, entry)
	}
	sort.Slice(list, func(i, j int) bool { return f.ord[list[i].ID] > f.ord[list[j].ID] })
	total := int64(len(list))
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}
	start := (query.Page - 1) * query.Limit
	if start > len(list) {
		return []models.AutomationLog{}, total, nil
	}
	end := start + query.Limit
	if end > len(list) {
		end = len(list)
	}
	return list[start:end], total, nil
}

// Entries returns all stored logs for assertions, unordered.
func (f *FakeLogStore) Entries() []models.AutomationLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AutomationLog, 0, len(f.logs))
	for _, entry := range f.logs {
		out = append(out, entry)
	}
	return out
}

// EntriesForRule returns the logs referencing a rule.
func (f *FakeLogStore) EntriesForRule(ruleID string) []models.AutomationLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AutomationLog, 0)
	for _, entry := range f.logs {
		if entry.RuleID != nil && *entry.RuleID == ruleID {
			out = append(out, entry)
		}
	}
	return out
}
