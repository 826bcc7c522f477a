package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/relaycrm/relaycrm/internal/storage"
)

// FakeCRM is an in-memory CRM data layer covering leads, contacts, activities,
// campaign memberships, and the tenant user directory.
type FakeCRM struct {
	mu          sync.Mutex
	leads       map[string]models.Lead
	contacts    []models.Contact
	activities  []models.Activity
	memberships map[string]struct{} // campaignID + "/" + businessID
	users       map[string][]string // tenantID -> active user ids
	nextLeadID  int

	FailLeadWrites bool
}

func NewFakeCRM() *FakeCRM {
	return &FakeCRM{
		leads:       make(map[string]models.Lead),
		memberships: make(map[string]struct{}),
		users:       make(map[string][]string),
	}
}

// SeedLead inserts a lead directly, bypassing allowlist plumbing.
func (f *FakeCRM) SeedLead(lead models.Lead) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads[lead.ID] = lead
}

// SeedUsers sets a tenant's active user directory.
func (f *FakeCRM) SeedUsers(tenantID string, userIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[tenantID] = userIDs
}

// Lead returns a copy of a stored lead for assertions.
func (f *FakeCRM) Lead(leadID string) (models.Lead, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[leadID]
	return l, ok
}

// Contacts returns all stored contacts.
func (f *FakeCRM) Contacts() []models.Contact {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Contact(nil), f.contacts...)
}

// Activities returns all stored activities.
func (f *FakeCRM) Activities() []models.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Activity(nil), f.activities...)
}

func (f *FakeCRM) GetLead(_ context.Context, userID, leadID string) (*models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[leadID]
	if !ok || l.UserID != userID {
		return nil, storage.ErrLeadNotFound
	}
	return &l, nil
}

func (f *FakeCRM) CreateLead(_ context.Context, userID string, fields map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailLeadWrites {
		return "", fmt.Errorf("lead write failed")
	}
	f.nextLeadID++
	lead := models.Lead{
		ID:     fmt.Sprintf("lead-%d", f.nextLeadID),
		UserID: userID,
		Status: "new",
	}
	applyLeadFields(&lead, fields)
	f.leads[lead.ID] = lead
	return lead.ID, nil
}

func (f *FakeCRM) UpdateLeadFields(_ context.Context, userID, leadID string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailLeadWrites {
		return fmt.Errorf("lead write failed")
	}
	l, ok := f.leads[leadID]
	if !ok || l.UserID != userID {
		return storage.ErrLeadNotFound
	}
	applyLeadFields(&l, fields)
	f.leads[leadID] = l
	return nil
}

func (f *FakeCRM) UpdateLeadStatus(ctx context.Context, userID, leadID, status string) error {
	return f.UpdateLeadFields(ctx, userID, leadID, map[string]interface{}{"status": status})
}

func (f *FakeCRM) AssignLead(ctx context.Context, userID, leadID, assigneeID string) error {
	return f.UpdateLeadFields(ctx, userID, leadID, map[string]interface{}{"assigned_to": assigneeID})
}

func (f *FakeCRM) AdjustLeadScore(_ context.Context, userID, leadID string, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[leadID]
	if !ok || l.UserID != userID {
		return 0, storage.ErrLeadNotFound
	}
	l.Score += delta
	if l.Score > 100 {
		l.Score = 100
	}
	if l.Score < 0 {
		l.Score = 0
	}
	f.leads[leadID] = l
	return l.Score, nil
}

func (f *FakeCRM) AddLeadTag(_ context.Context, userID, leadID, tag string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[leadID]
	if !ok || l.UserID != userID {
		return false, storage.ErrLeadNotFound
	}
	for _, existing := range l.Tags {
		if existing == tag {
			return false, nil
		}
	}
	l.Tags = append(l.Tags, tag)
	f.leads[leadID] = l
	return true, nil
}

func (f *FakeCRM) AddToCampaign(_ context.Context, _, campaignID, businessID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := campaignID + "/" + businessID
	if _, ok := f.memberships[key]; ok {
		return false, nil
	}
	f.memberships[key] = struct{}{}
	return true, nil
}

func (f *FakeCRM) CreateContact(_ context.Context, contact *models.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contacts = append(f.contacts, *contact)
	return nil
}

func (f *FakeCRM) CreateActivity(_ context.Context, activity *models.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = append(f.activities, *activity)
	return nil
}

func (f *FakeCRM) ListActiveUsers(_ context.Context, tenantID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.users[tenantID]...), nil
}

func applyLeadFields(lead *models.Lead, fields map[string]interface{}) {
	for k, v := range fields {
		switch k {
		case "business_name":
			lead.BusinessName, _ = v.(string)
		case "contact_name":
			lead.ContactName = stringPtr(v)
		case "email":
			lead.Email = stringPtr(v)
		case "phone":
			lead.Phone = stringPtr(v)
		case "website":
			lead.Website = stringPtr(v)
		case "status":
			lead.Status, _ = v.(string)
		case "lead_score":
			if n, ok := v.(float64); ok {
				lead.Score = int(n)
			} else if n, ok := v.(int); ok {
				lead.Score = n
			}
		case "lead_temperature":
			lead.Temperature = stringPtr(v)
		case "lead_source":
			lead.Source = stringPtr(v)
		case "assigned_to":
			lead.AssignedTo = stringPtr(v)
		case "notes":
			lead.Notes = stringPtr(v)
		}
	}
}

func stringPtr(v interface{}) *string {
	if s, ok := v.(string); ok {
		return &s
	}
	return nil
}
