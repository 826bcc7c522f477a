package automation

import (
	"context"
	"sync"

	"github.com/relaycrm/relaycrm/internal/models"
)

// AssignmentStrategy resolves the user a lead should be assigned to.
type AssignmentStrategy interface {
	Resolve(ctx context.Context, tenantID string) (string, error)
}

// LiteralAssignment always resolves to a fixed user id.
type LiteralAssignment struct {
	UserID string
}

func (a LiteralAssignment) Resolve(_ context.Context, _ string) (string, error) {
	return a.UserID, nil
}

// RoundRobinAssignment cycles deterministically through a tenant's active
// users. The cursor is per-tenant and guarded by a mutex; assignment needs
// fair cycling within a process, not a globally strict rotation.
type RoundRobinAssignment struct {
	users UserDirectory

	mu      sync.Mutex
	cursors map[string]int
}

// NewRoundRobinAssignment creates a rotation strategy over the directory.
func NewRoundRobinAssignment(users UserDirectory) *RoundRobinAssignment {
	return &RoundRobinAssignment{
		users:   users,
		cursors: make(map[string]int),
	}
}

func (a *RoundRobinAssignment) Resolve(ctx context.Context, tenantID string) (string, error) {
	active, err := a.users.ListActiveUsers(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if len(active) == 0 {
		return "", NewValidationError("no active users available for round-robin assignment")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cursor := a.cursors[tenantID] % len(active)
	a.cursors[tenantID] = cursor + 1
	return active[cursor], nil
}

// strategyFor maps an assign_user config to its strategy: the round_robin
// token selects rotation, anything else is a literal user id.
func strategyFor(cfg models.AssignUserActionConfig, roundRobin *RoundRobinAssignment) AssignmentStrategy {
	if cfg.AssignTo == models.RoundRobinToken {
		return roundRobin
	}
	return LiteralAssignment{UserID: cfg.AssignTo}
}
