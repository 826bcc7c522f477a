package fakes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/relaycrm/relaycrm/internal/models"
	"github.com/relaycrm/relaycrm/internal/storage"
)

// FakeWebhookStore is an in-memory webhook config and delivery store.
type FakeWebhookStore struct {
	mu         sync.Mutex
	configs    map[string]models.WebhookConfig
	deliveries []models.WebhookDelivery
}

func NewFakeWebhookStore() *FakeWebhookStore {
	return &FakeWebhookStore{configs: make(map[string]models.WebhookConfig)}
}

func (f *FakeWebhookStore) CreateWebhookConfig(_ context.Context, cfg *models.WebhookConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *cfg
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.UpdatedAt = c.CreatedAt
	f.configs[c.ID] = c
	return nil
}

func (f *FakeWebhookStore) GetWebhookConfig(_ context.Context, webhookID string) (*models.WebhookConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.configs[webhookID]
	if !ok {
		return nil, storage.ErrWebhookNotFound
	}
	return &c, nil
}

func (f *FakeWebhookStore) GetInboundConfig(_ context.Context, webhookID string) (*models.WebhookConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.configs[webhookID]
	if !ok || c.Type != models.WebhookInbound || !c.IsActive {
		return nil, storage.ErrWebhookNotFound
	}
	return &c, nil
}

func (f *FakeWebhookStore) ListWebhookConfigs(_ context.Context, userID string) ([]models.WebhookConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]models.WebhookConfig, 0)
	for _, c := range f.configs {
		if c.UserID == userID {
			list = append(list, c)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (f *FakeWebhookStore) UpdateWebhookConfig(_ context.Context, webhookID string, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.configs[webhookID]
	if !ok {
		return storage.ErrWebhookNotFound
	}
	for k, v := range updates {
		switch k {
		case "name":
			c.Name = v.(string)
		case "url":
			url := v.(string)
			c.URL = &url
		case "is_active":
			c.IsActive = v.(bool)
		case "retry_count":
			c.RetryCount = v.(int)
		case "retry_delay":
			c.RetryDelay = v.(int)
		}
	}
	c.UpdatedAt = time.Now().UTC()
	f.configs[webhookID] = c
	return nil
}

func (f *FakeWebhookStore) DeleteWebhookConfig(_ context.Context, webhookID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.configs[webhookID]; !ok {
		return storage.ErrWebhookNotFound
	}
	delete(f.configs, webhookID)
	for i := range f.deliveries {
		if f.deliveries[i].WebhookID != nil && *f.deliveries[i].WebhookID == webhookID {
			f.deliveries[i].WebhookID = nil
		}
	}
	return nil
}

func (f *FakeWebhookStore) TouchWebhookTriggered(_ context.Context, webhookID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.configs[webhookID]
	if !ok {
		return storage.ErrWebhookNotFound
	}
	now := time.Now().UTC()
	c.LastTriggeredAt = &now
	f.configs[webhookID] = c
	return nil
}

func (f *FakeWebhookStore) CreateDelivery(_ context.Context, delivery *models.WebhookDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := *delivery
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	f.deliveries = append(f.deliveries, d)
	return nil
}

func (f *FakeWebhookStore) ListDeliveries(_ context.Context, webhookID string, query models.ListDeliveriesQuery) ([]models.WebhookDelivery, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]models.WebhookDelivery, 0)
	for _, d := range f.deliveries {
		if d.WebhookID == nil || *d.WebhookID != webhookID {
			continue
		}
		if query.Status != "" && string(d.Status) != query.Status {
			continue
		}
		list = append(list, d)
	}
	total := int64(len(list))
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}
	start := (query.Page - 1) * query.Limit
	if start > len(list) {
		return []models.WebhookDelivery{}, total, nil
	}
	end := start + query.Limit
	if end > len(list) {
		end = len(list)
	}
	return list[start:end], total, nil
}

// Deliveries returns every recorded delivery for assertions.
func (f *FakeWebhookStore) Deliveries() []models.WebhookDelivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.WebhookDelivery(nil), f.deliveries...)
}

// Config returns a stored config copy for assertions.
func (f *FakeWebhookStore) Config(webhookID string) (models.WebhookConfig, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.configs[webhookID]
	return c, ok
}
